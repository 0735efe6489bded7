package events

import (
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/models"
)

// LogObserver writes pipeline events to a logrus entry
type LogObserver struct {
	log *logrus.Entry
}

// NewLogObserver creates a LogObserver
func NewLogObserver(log *logrus.Entry) *LogObserver {
	return &LogObserver{log: log}
}

// OnEvent logs e; verification progress is logged at debug level
func (o *LogObserver) OnEvent(e models.Event) {
	entry := o.log.WithFields(logrus.Fields{"domain": e.Domain, "event": e.Type})
	switch e.Type {
	case models.EventCrawlStarted:
		entry.Info("Crawl started")
	case models.EventCrawlCompleted:
		entry.WithField("urls", e.URLCount).Info("Crawl completed")
	case models.EventExtractionCompleted:
		entry.WithFields(logrus.Fields{"found": e.FoundCount, "generated": e.GeneratedCount}).Info("Extraction completed")
	case models.EventVerificationProgress:
		entry.Debugf("Verified %d/%d", e.Completed, e.Total)
	case models.EventPipelineError:
		entry.Errorf("Pipeline error: %s", e.Message)
	case models.EventPipelineStopped:
		entry.WithField("records", e.Completed).Warn("Pipeline stopped")
	default:
		entry.WithField("records", e.Completed).Info("Pipeline completed")
	}
}
