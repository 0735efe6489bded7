package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

const (
	defaultPrefix = "emailscope:job:"
	defaultTTL    = 24 * time.Hour
)

type statusClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisStatusSink stores job status JSON in Redis under a prefix with a TTL
type RedisStatusSink struct {
	client statusClient
	prefix string
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisStatusSink connects to cfg.Addr
func NewRedisStatusSink(cfg config.RedisConfig, log *logrus.Entry) *RedisStatusSink {
	return newRedisStatusSink(redis.NewClient(&redis.Options{Addr: cfg.Addr}), cfg, log)
}

func newRedisStatusSink(client statusClient, cfg config.RedisConfig, log *logrus.Entry) *RedisStatusSink {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStatusSink{client: client, prefix: prefix, ttl: ttl, log: log.WithField("component", "redis")}
}

// SetStatus writes status under prefix+JobID
func (s *RedisStatusSink) SetStatus(ctx context.Context, status models.JobStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("%w: encoding status JSON: %w", utils.ErrParsing, err)
	}
	if err := s.client.Set(ctx, s.prefix+status.JobID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", utils.ErrSink, err)
	}
	return nil
}

// GetStatus reads a job status; ok is false when the key does not exist
func (s *RedisStatusSink) GetStatus(ctx context.Context, jobID string) (status models.JobStatus, ok bool, err error) {
	val, err := s.client.Get(ctx, s.prefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.JobStatus{}, false, nil
		}
		return models.JobStatus{}, false, fmt.Errorf("%w: redis get: %w", utils.ErrSink, err)
	}
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return models.JobStatus{}, false, fmt.Errorf("%w: decoding status JSON: %w", utils.ErrParsing, err)
	}
	return status, true, nil
}

// Close closes the Redis client
func (s *RedisStatusSink) Close() error {
	return s.client.Close()
}

// Tracker returns an observer that applies each event to a status for jobID
// and writes it to Redis. Write failures are logged.
func (s *RedisStatusSink) Tracker(jobID, domain string) *StatusTracker {
	return &StatusTracker{
		sink:   s,
		status: models.JobStatus{JobID: jobID, Domain: domain, Step: models.StepQueued, UpdatedAt: time.Now()},
	}
}

// StatusTracker mirrors one job's progress into a RedisStatusSink
type StatusTracker struct {
	sink   *RedisStatusSink
	mu     sync.Mutex
	status models.JobStatus
}

// OnEvent implements the pipeline observer contract
func (t *StatusTracker) OnEvent(e models.Event) {
	t.mu.Lock()
	t.status.Apply(e)
	snapshot := t.status
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.sink.SetStatus(ctx, snapshot); err != nil {
		t.sink.log.WithField("job_id", snapshot.JobID).Warnf("Status not stored: %v", err)
	}
}

// Status returns the latest status
func (t *StatusTracker) Status() models.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
