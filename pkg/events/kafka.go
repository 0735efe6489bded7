package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/config"
	pkglog "github.com/Sriram-PR/emailscope/pkg/log"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// Message kinds carried in the "kind" header
const (
	KindEvent  = "event"
	KindRecord = "record"
)

const defaultTopic = "emailscope.results"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordMessage is the payload of a record message
type RecordMessage struct {
	Domain    string `json:"domain"`
	SessionID string `json:"session_id,omitempty"`
	models.Record
}

// KafkaPublisher publishes pipeline events and result records as JSON keyed by domain
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *logrus.Entry
}

// NewKafkaPublisher creates a publisher for cfg.Brokers. An empty topic
// falls back to "emailscope.results".
func NewKafkaPublisher(cfg config.KafkaConfig, log *logrus.Entry) *KafkaPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	kafkaLog := log.WithField("component", "kafka")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			Logger:       pkglog.KafkaLogger(kafkaLog),
			ErrorLogger:  pkglog.KafkaErrorLogger(kafkaLog),
		},
		timeout: 5 * time.Second,
		log:     kafkaLog,
	}
}

// NewKafkaPublisherWithWriter builds a publisher around a custom writer (tests)
func NewKafkaPublisherWithWriter(writer messageWriter, log *logrus.Entry) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, timeout: 5 * time.Second, log: log}
}

// PublishEvent writes one event message
func (p *KafkaPublisher) PublishEvent(ctx context.Context, e models.Event) error {
	msg, err := newMessage(e.Domain, KindEvent, e)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

// PublishRecords writes one message per record in a single batch
func (p *KafkaPublisher) PublishRecords(ctx context.Context, domain, sessionID string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msg, err := newMessage(domain, KindRecord, RecordMessage{Domain: domain, SessionID: sessionID, Record: r})
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, msgs...)
}

// OnEvent publishes e, logging failures. Publishing is bounded by the publisher timeout.
func (p *KafkaPublisher) OnEvent(e models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.PublishEvent(ctx, e); err != nil {
		p.log.WithField("error_type", utils.CategorizeError(err)).Warnf("Event not published: %v", err)
	}
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) write(ctx context.Context, msgs ...kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("%w: kafka write: %w", utils.ErrSink, err)
	}
	return nil
}

func newMessage(domain, kind string, payload interface{}) (kafka.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: encoding %s message JSON: %w", utils.ErrParsing, kind, err)
	}
	return kafka.Message{
		Key:     []byte(domain),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
		Time:    time.Now().UTC(),
	}, nil
}
