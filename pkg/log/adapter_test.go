package log

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newDiscardEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newBufferEntry(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logrus.NewEntry(logger), &buf
}

func TestNewBadgerLogrusAdapter(t *testing.T) {
	adapter := NewBadgerLogrusAdapter(newDiscardEntry())
	assert.NotNil(t, adapter)
}

func TestBadgerLogrusAdapter_Methods(t *testing.T) {
	adapter := NewBadgerLogrusAdapter(newDiscardEntry())

	assert.NotPanics(t, func() { adapter.Errorf("error %s", "test") })
	assert.NotPanics(t, func() { adapter.Warningf("warning %d", 42) })
	assert.NotPanics(t, func() { adapter.Infof("info %v", true) })
	assert.NotPanics(t, func() { adapter.Debugf("debug") })
}

func TestBadgerLogrusAdapter_DebugIsTrace(t *testing.T) {
	entry, buf := newBufferEntry(logrus.DebugLevel)
	NewBadgerLogrusAdapter(entry).Debugf("compaction %d", 1)
	assert.Empty(t, buf.String())
}

func TestKafkaLoggers(t *testing.T) {
	entry, buf := newBufferEntry(logrus.InfoLevel)

	KafkaLogger(entry)("writing %d messages", 3)
	assert.Empty(t, buf.String(), "debug output suppressed at info level")

	KafkaErrorLogger(entry)("broker %s unreachable", "b1:9092")
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "broker b1:9092 unreachable")
}
