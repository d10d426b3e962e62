package attempt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() Result {
	return Result{
		QuizID:        "quiz-1",
		ParticipantID: uuid.New(),
		Score:         50,
		Passed:        false,
		EarnedPoints:  10,
		TotalPoints:   20,
		AnswerCount:   1,
		Reason:        ReasonSubmitted,
		StartedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt:   time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestPublisherEmitsCompletionEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	sub := client.Subscribe(ctx, "attempt:completed")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewPublisher(client, "", zerolog.Nop())
	want := sampleResult()
	require.NoError(t, publisher.Publish(ctx, want))

	select {
	case msg := <-sub.Channel():
		var got Result
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no completion event received")
	}
}

type failingSink struct{}

func (failingSink) Record(context.Context, Result) error {
	return assert.AnError
}

func TestRecorderSwallowsFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	// Both the sink and the publisher fail; Record must not panic or block.
	recorder := NewRecorder(failingSink{}, NewPublisher(client, "", zerolog.Nop()), zerolog.Nop())
	recorder.Record(context.Background(), sampleResult())
}

func TestRecorderWithoutCollaborators(t *testing.T) {
	recorder := NewRecorder(nil, nil, zerolog.Nop())
	recorder.Record(context.Background(), sampleResult())
}
