package attempt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultCompletionsChannel = "attempt:completed"

// Publisher emits completion events on a Redis Pub/Sub channel so the
// attempt-persistence collaborator (and anything else interested) can
// subscribe without coupling to the engine process.
type Publisher struct {
	redis   *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewPublisher creates a Pub/Sub completion event publisher.
func NewPublisher(redis *redis.Client, channel string, logger zerolog.Logger) *Publisher {
	if channel == "" {
		channel = defaultCompletionsChannel
	}
	return &Publisher{
		redis:   redis,
		channel: channel,
		logger:  logger.With().Str("component", "attempt_publisher").Logger(),
	}
}

// Publish sends one completion event.
func (p *Publisher) Publish(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}
	if err := p.redis.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish completion event: %w", err)
	}
	return nil
}

// Recorder fans a completion out to the sink and the event channel. Failures
// are logged and swallowed; reporting problems must never corrupt or abort a
// session.
type Recorder struct {
	sink      Sink
	publisher *Publisher
	logger    zerolog.Logger
}

func NewRecorder(sink Sink, publisher *Publisher, logger zerolog.Logger) *Recorder {
	return &Recorder{
		sink:      sink,
		publisher: publisher,
		logger:    logger.With().Str("component", "attempt_recorder").Logger(),
	}
}

// Record persists and publishes one completed attempt.
func (r *Recorder) Record(ctx context.Context, result Result) {
	if r.sink != nil {
		if err := r.sink.Record(ctx, result); err != nil {
			r.logger.Error().Err(err).
				Str("quiz_id", result.QuizID).
				Str("participant_id", result.ParticipantID.String()).
				Msg("failed to record attempt")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, result); err != nil {
			r.logger.Warn().Err(err).
				Str("quiz_id", result.QuizID).
				Msg("failed to publish completion event")
		}
	}
}
