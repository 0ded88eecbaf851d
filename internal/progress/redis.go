package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/types"
)

// Publisher pushes progress events somewhere a frontend can poll or
// subscribe to. Publish must not block the pipeline; implementations are
// expected to drop events rather than stall.
type Publisher interface {
	Publish(ctx context.Context, jobID string, event Event)
}

// Event is the serialized shape of one progress notification.
type Event struct {
	JobID       string        `json:"job_id"`
	Stage       types.StageID `json:"stage"`
	CurrentStep *int          `json:"current_step,omitempty"`
	TotalSteps  *int          `json:"total_steps,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Fraction    float64       `json:"fraction"`
}

// RedisPublisher publishes progress events to a per-job Redis channel and
// mirrors the latest event into a keyed value the status endpoint can read
// without a subscription.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPublisher builds a RedisPublisher. ttl bounds how long the
// latest-event mirror outlives the job.
func NewRedisPublisher(client *redis.Client, ttl time.Duration) *RedisPublisher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisPublisher{client: client, ttl: ttl}
}

func progressChannel(jobID string) string { return "trainforge:progress:" + jobID }
func progressKey(jobID string) string     { return "trainforge:progress:latest:" + jobID }

// Publish implements Publisher. Errors are logged, never returned: a dead
// Redis must not slow the pipeline down.
func (p *RedisPublisher) Publish(ctx context.Context, jobID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if err := p.client.Publish(pubCtx, progressChannel(jobID), data).Err(); err != nil {
		logger.GetLogger(ctx).Debugf("progress publish failed: %v", err)
	}
	if err := p.client.Set(pubCtx, progressKey(jobID), data, p.ttl).Err(); err != nil {
		logger.GetLogger(ctx).Debugf("progress mirror failed: %v", err)
	}
}

// Latest returns the most recent event published for jobID, if any.
func (p *RedisPublisher) Latest(ctx context.Context, jobID string) (*Event, error) {
	data, err := p.client.Get(ctx, progressKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("progress: read latest: %w", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("progress: decode latest: %w", err)
	}
	return &event, nil
}

// NewPublisherSink adapts a Publisher to the Sink the pipeline notifies.
// Publishing happens on a separate goroutine per event so a slow publisher
// never blocks a stage.
func NewPublisherSink(ctx context.Context, publisher Publisher, jobID string) Sink {
	return SinkFunc(func(d types.StageDescriptor, fraction float64) {
		event := Event{
			JobID:       jobID,
			Stage:       d.Stage,
			CurrentStep: d.CurrentStep,
			TotalSteps:  d.TotalSteps,
			Detail:      d.Detail,
			Fraction:    fraction,
		}
		go publisher.Publish(ctx, jobID, event)
	})
}
