package pipeline

import (
	"time"

	"github.com/Sriram-PR/emailscope/pkg/models"
)

// Observer receives progress events. Calls for one run are serialized.
type Observer interface {
	OnEvent(event models.Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(event models.Event)

// OnEvent calls f(event)
func (f ObserverFunc) OnEvent(event models.Event) { f(event) }

// MultiObserver fans an event out to several observers in order
type MultiObserver []Observer

// OnEvent forwards event to every non-nil observer
func (m MultiObserver) OnEvent(event models.Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(event)
		}
	}
}

type noopObserver struct{}

func (noopObserver) OnEvent(models.Event) {}

// newEvent stamps an event for domain
func newEvent(t models.EventType, domain string) models.Event {
	return models.Event{Type: t, Domain: domain, At: time.Now()}
}
