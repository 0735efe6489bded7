package log

import (
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger interface using logrus
type BadgerLogrusAdapter struct {
	*logrus.Entry // Embed logrus Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

// Errorf logs an error message
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof logs an info message
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Infof(f, v...) }

// Debugf logs a debug message at trace level; badger is chatty at debug
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }

// KafkaLogger returns a kafka-go logger writing to entry at debug level
func KafkaLogger(entry *logrus.Entry) kafka.LoggerFunc {
	return func(f string, v ...interface{}) { entry.Debugf(f, v...) }
}

// KafkaErrorLogger returns a kafka-go logger writing to entry at error level
func KafkaErrorLogger(entry *logrus.Entry) kafka.LoggerFunc {
	return func(f string, v ...interface{}) { entry.Errorf(f, v...) }
}
