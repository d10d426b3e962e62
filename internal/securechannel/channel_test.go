package securechannel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"io"
	"testing"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

// clientSide performs the client half of the handshake against a server
// channel and returns the derived MAC key.
func clientSide(t *testing.T, server *Channel, verifyKey []byte) []byte {
	t.Helper()

	scheme := mlkem768.Scheme()
	pub, priv, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	pubBytes, err := pub.MarshalBinary()
	require.NoError(t, err)

	ciphertext, digestSig, err := server.Establish(pubBytes)
	require.NoError(t, err)

	sharedSecret, err := scheme.Decapsulate(priv, ciphertext)
	require.NoError(t, err)

	digest := sha256.Sum256(sharedSecret)
	require.NoError(t, VerifyServerSignature(verifyKey, digest[:], digestSig))

	macKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, sharedSecret, nil, []byte(macKeyInfo))
	_, err = io.ReadFull(kdf, macKey)
	require.NoError(t, err)
	return macKey
}

func clientTag(macKey, digest []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(digest)
	return mac.Sum(nil)
}

func TestHandshakeRoundTrip(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	_, verifyKey, err := server.InitKeys()
	require.NoError(t, err)

	assert.False(t, server.Established())
	macKey := clientSide(t, server, verifyKey)
	assert.True(t, server.Established())

	// Both ends must agree on the MAC key.
	digest := SubmissionDigest("quiz-1", "q1", json.RawMessage(`"a"`))
	serverTag, err := server.Tag(digest)
	require.NoError(t, err)
	assert.Equal(t, serverTag, clientTag(macKey, digest))

	assert.NoError(t, server.VerifyTag(digest, clientTag(macKey, digest)))
}

func TestVerifyTagRejectsTampering(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	_, verifyKey, err := server.InitKeys()
	require.NoError(t, err)
	macKey := clientSide(t, server, verifyKey)

	digest := SubmissionDigest("quiz-1", "q1", json.RawMessage(`"a"`))
	tag := clientTag(macKey, digest)
	tag[0] ^= 0xff
	assert.ErrorIs(t, server.VerifyTag(digest, tag), ErrInvalidSignature)

	otherDigest := SubmissionDigest("quiz-1", "q1", json.RawMessage(`"b"`))
	assert.ErrorIs(t, server.VerifyTag(otherDigest, clientTag(macKey, digest)), ErrInvalidSignature)
}

func TestEstablishRejectsBadPublicKey(t *testing.T) {
	server, err := New()
	require.NoError(t, err)

	_, _, err = server.Establish([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
	assert.False(t, server.Established())
}

func TestEstablishOnlyOnce(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	_, verifyKey, err := server.InitKeys()
	require.NoError(t, err)
	clientSide(t, server, verifyKey)

	pub, _, err := mlkem768.Scheme().GenerateKeyPair()
	require.NoError(t, err)
	pubBytes, err := pub.MarshalBinary()
	require.NoError(t, err)

	_, _, err = server.Establish(pubBytes)
	assert.ErrorIs(t, err, ErrAlreadyEstablished)
}

func TestTagRequiresEstablishedChannel(t *testing.T) {
	server, err := New()
	require.NoError(t, err)

	digest := SubmitQuizDigest("quiz-1")
	_, err = server.Tag(digest)
	assert.ErrorIs(t, err, ErrNotEstablished)
	assert.ErrorIs(t, server.VerifyTag(digest, nil), ErrNotEstablished)
}

func TestSignDigestVerifiesWithAdvertisedKey(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	_, verifyKey, err := server.InitKeys()
	require.NoError(t, err)

	digest := ScoreDigest("quiz-1", "participant-1", 50)
	sig := server.SignDigest(digest)
	assert.NoError(t, VerifyServerSignature(verifyKey, digest, sig))

	other := ScoreDigest("quiz-1", "participant-1", 100)
	assert.ErrorIs(t, VerifyServerSignature(verifyKey, other, sig), ErrInvalidSignature)
}

func TestWipeDropsEstablishment(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	_, verifyKey, err := server.InitKeys()
	require.NoError(t, err)
	clientSide(t, server, verifyKey)

	server.Wipe()
	assert.False(t, server.Established())
	assert.ErrorIs(t, server.VerifyTag(SubmitQuizDigest("quiz-1"), nil), ErrNotEstablished)
}

func TestCanonicalDigestsAreStable(t *testing.T) {
	a := SubmissionDigest("quiz-1", "q1", json.RawMessage(`"a"`))
	b := SubmissionDigest("quiz-1", "q1", json.RawMessage(`"a"`))
	assert.Equal(t, a, b)
	assert.Len(t, a, sha256.Size)

	assert.NotEqual(t, a, SubmissionDigest("quiz-2", "q1", json.RawMessage(`"a"`)))
	assert.NotEqual(t, a, SubmissionDigest("quiz-1", "q2", json.RawMessage(`"a"`)))
	assert.NotEqual(t, a, SubmissionDigest("quiz-1", "q1", json.RawMessage(`"b"`)))
	assert.NotEqual(t, SubmitQuizDigest("quiz-1"), SubmitQuizDigest("quiz-2"))
}
