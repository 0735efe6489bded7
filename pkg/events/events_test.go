package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_PublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, testLogger())

	err := p.PublishEvent(context.Background(), models.Event{Type: models.EventCrawlCompleted, Domain: "acme.com", URLCount: 4})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "acme.com", string(w.msgs[0].Key))
	assert.Equal(t, KindEvent, header(w.msgs[0], "kind"))
	var got models.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.EventCrawlCompleted, got.Type)
	assert.Equal(t, 4, got.URLCount)
}

func TestKafkaPublisher_PublishRecords(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, testLogger())
	records := []models.Record{
		{Email: "info@acme.com", Confidence: 80, IsValid: true, Source: models.SourceObserved},
		{Email: "sales@acme.com", Confidence: 90, IsValid: true, Source: models.SourceMailto},
	}

	require.NoError(t, p.PublishRecords(context.Background(), "acme.com", "s-1", records))
	require.NoError(t, p.PublishRecords(context.Background(), "acme.com", "s-1", nil))

	require.Len(t, w.msgs, 2)
	var got RecordMessage
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &got))
	assert.Equal(t, "sales@acme.com", got.Email)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, KindRecord, header(w.msgs[1], "kind"))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(w, testLogger())

	err := p.PublishEvent(context.Background(), models.Event{Type: models.EventCrawlStarted, Domain: "acme.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSink)
	assert.NotPanics(t, func() { p.OnEvent(models.Event{Type: models.EventCrawlStarted}) })
}

// fakeRedis stores values in a map using go-redis result constructors
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStatusSink_SetGet(t *testing.T) {
	fake := newFakeRedis()
	sink := newRedisStatusSink(fake, config.RedisConfig{}, testLogger())
	status := models.JobStatus{JobID: "j1", Domain: "acme.com", Step: models.StepVerifying, Progress: 60}

	require.NoError(t, sink.SetStatus(context.Background(), status))
	assert.Equal(t, defaultTTL, fake.ttls[defaultPrefix+"j1"])

	got, ok, err := sink.GetStatus(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.StepVerifying, got.Step)
	assert.Equal(t, 60, got.Progress)

	_, ok, err = sink.GetStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStatusSink_CustomPrefixAndTTL(t *testing.T) {
	fake := newFakeRedis()
	sink := newRedisStatusSink(fake, config.RedisConfig{Prefix: "es:", TTL: time.Hour}, testLogger())

	require.NoError(t, sink.SetStatus(context.Background(), models.JobStatus{JobID: "j2"}))
	assert.Contains(t, fake.values, "es:j2")
	assert.Equal(t, time.Hour, fake.ttls["es:j2"])
}

func TestRedisStatusSink_SetError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	sink := newRedisStatusSink(fake, config.RedisConfig{}, testLogger())

	err := sink.SetStatus(context.Background(), models.JobStatus{JobID: "j3"})
	assert.ErrorIs(t, err, utils.ErrSink)
}

func TestStatusTracker_MirrorsEvents(t *testing.T) {
	fake := newFakeRedis()
	sink := newRedisStatusSink(fake, config.RedisConfig{}, testLogger())
	tracker := sink.Tracker("j4", "acme.com")

	tracker.OnEvent(models.Event{Type: models.EventCrawlStarted, Domain: "acme.com"})
	tracker.OnEvent(models.Event{Type: models.EventPipelineCompleted, Domain: "acme.com"})

	assert.Equal(t, models.StepComplete, tracker.Status().Step)
	stored, ok, err := sink.GetStatus(context.Background(), "j4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, "acme.com", stored.Domain)
}

func TestLogObserver_AllEventTypes(t *testing.T) {
	o := NewLogObserver(testLogger())
	for _, et := range []models.EventType{
		models.EventCrawlStarted, models.EventCrawlCompleted, models.EventExtractionCompleted,
		models.EventVerificationProgress, models.EventPipelineCompleted, models.EventPipelineStopped,
		models.EventPipelineError,
	} {
		assert.NotPanics(t, func() { o.OnEvent(models.Event{Type: et, Domain: "acme.com"}) })
	}
}
