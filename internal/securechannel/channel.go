// Package securechannel implements the per-connection authenticated channel
// established before any quiz traffic is trusted. Key encapsulation uses
// ML-KEM-768 and server signatures ML-DSA-65, both quantum-resistant.
package securechannel

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrNotEstablished     = errors.New("secure channel not established")
	ErrAlreadyEstablished = errors.New("secure channel already established")
	ErrInvalidPublicKey   = errors.New("invalid client public key")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// macKeyInfo binds the derived MAC key to this protocol version.
const macKeyInfo = "quiz-engine/channel-mac/v1"

// Channel holds one connection's key material. Both keypairs are fresh per
// connection; nothing survives a disconnect. Channel is not safe for
// concurrent use; each connection's read loop owns it.
type Channel struct {
	kemScheme kem.Scheme
	sigScheme sign.Scheme

	kemPub  kem.PublicKey
	kemPriv kem.PrivateKey
	sigPub  sign.PublicKey
	sigPriv sign.PrivateKey

	sharedSecret []byte
	macKey       []byte
	established  bool
}

// New generates fresh encapsulation and signature keypairs for a connection.
func New() (*Channel, error) {
	kemScheme := mlkem768.Scheme()
	sigScheme := mldsa65.Scheme()

	kemPub, kemPriv, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate kem keypair: %w", err)
	}
	sigPub, sigPriv, err := sigScheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate signature keypair: %w", err)
	}

	return &Channel{
		kemScheme: kemScheme,
		sigScheme: sigScheme,
		kemPub:    kemPub,
		kemPriv:   kemPriv,
		sigPub:    sigPub,
		sigPriv:   sigPriv,
	}, nil
}

// InitKeys returns the server's encapsulation public key and signature
// verification key for the handshake_init message.
func (c *Channel) InitKeys() (serverPublicKey, verifyKey []byte, err error) {
	serverPublicKey, err = c.kemPub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal kem public key: %w", err)
	}
	verifyKey, err = c.sigPub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal verify key: %w", err)
	}
	return serverPublicKey, verifyKey, nil
}

// Establish encapsulates against the client's public key, signs the SHA-256
// digest of the shared secret, and derives the channel MAC key. The returned
// ciphertext and signature form the handshake_complete message. Any error
// means the handshake failed and the connection must be closed.
func (c *Channel) Establish(clientPublicKey []byte) (ciphertext, digestSignature []byte, err error) {
	if c.established {
		return nil, nil, ErrAlreadyEstablished
	}
	if len(clientPublicKey) != c.kemScheme.PublicKeySize() {
		return nil, nil, ErrInvalidPublicKey
	}

	pk, err := c.kemScheme.UnmarshalBinaryPublicKey(clientPublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	ciphertext, sharedSecret, err := c.kemScheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("encapsulate: %w", err)
	}

	digest := sha256.Sum256(sharedSecret)
	digestSignature = c.sigScheme.Sign(c.sigPriv, digest[:], nil)

	macKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, sharedSecret, nil, []byte(macKeyInfo))
	if _, err := io.ReadFull(kdf, macKey); err != nil {
		return nil, nil, fmt.Errorf("derive mac key: %w", err)
	}

	c.sharedSecret = sharedSecret
	c.macKey = macKey
	c.established = true
	return ciphertext, digestSignature, nil
}

// Established reports whether the handshake has completed.
func (c *Channel) Established() bool {
	return c.established
}

// VerifyTag checks a client HMAC tag over a canonical digest. The tag must
// be computed under the channel MAC key; anything else is rejected.
func (c *Channel) VerifyTag(digest, tag []byte) error {
	if !c.established {
		return ErrNotEstablished
	}
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(digest)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return ErrInvalidSignature
	}
	return nil
}

// Tag computes the HMAC over a canonical digest under the channel MAC key.
// The client side of the protocol does the same; exported for tests and
// client implementations.
func (c *Channel) Tag(digest []byte) ([]byte, error) {
	if !c.established {
		return nil, ErrNotEstablished
	}
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(digest)
	return mac.Sum(nil), nil
}

// SignDigest signs a canonical digest with the channel's signature key,
// used for server-attested results such as scores.
func (c *Channel) SignDigest(digest []byte) []byte {
	return c.sigScheme.Sign(c.sigPriv, digest, nil)
}

// VerifyServerSignature verifies a server signature against a marshaled
// verification key, the check the client performs after handshake_complete.
func VerifyServerSignature(verifyKey, digest, signature []byte) error {
	scheme := mldsa65.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(verifyKey)
	if err != nil {
		return fmt.Errorf("unmarshal verify key: %w", err)
	}
	if !scheme.Verify(pk, digest, signature, nil) {
		return ErrInvalidSignature
	}
	return nil
}

// Wipe zeroes the channel's secret material. Called on disconnect.
func (c *Channel) Wipe() {
	for i := range c.sharedSecret {
		c.sharedSecret[i] = 0
	}
	for i := range c.macKey {
		c.macKey[i] = 0
	}
	c.established = false
}
