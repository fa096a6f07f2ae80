package interfaces

import "github.com/donmikel/mediaupload/applications/backend/domain"

// Observer receives pipeline events for metrics.
type Observer interface {
	IntentIssued(purpose string)
	IntentRejected(purpose string)
	ObjectStored(purpose string, size int64)
	Resolved(purpose string, status domain.Status)
}

type NopObserver struct{}

func (NopObserver) IntentIssued(string) {}

func (NopObserver) IntentRejected(string) {}

func (NopObserver) ObjectStored(string, int64) {}

func (NopObserver) Resolved(string, domain.Status) {}
