package prometheus

import (
	"errors"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

// Observer exports upload pipeline counters.
type Observer struct {
	intents     *promclient.CounterVec
	storedBytes *promclient.CounterVec
	resolved    *promclient.CounterVec
}

func NewObserver(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "media_uploads"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	o := &Observer{
		intents: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Upload intents by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		storedBytes: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written to storage by purpose.",
		}, []string{"purpose"}),
		resolved: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "resolved_total",
			Help:      "Uploads reaching a terminal status.",
		}, []string{"purpose", "status"}),
	}

	var err error
	if o.intents, err = register(reg, o.intents); err != nil {
		return nil, err
	}
	if o.storedBytes, err = register(reg, o.storedBytes); err != nil {
		return nil, err
	}
	if o.resolved, err = register(reg, o.resolved); err != nil {
		return nil, err
	}

	return o, nil
}

// register returns the already registered collector when the same metric exists.
func register(reg promclient.Registerer, c *promclient.CounterVec) (*promclient.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promclient.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register upload counter: %w", err)
	}
	return c, nil
}

func (o *Observer) IntentIssued(purpose string) {
	o.intents.WithLabelValues(purpose, "issued").Inc()
}

func (o *Observer) IntentRejected(purpose string) {
	o.intents.WithLabelValues(purpose, "rejected").Inc()
}

func (o *Observer) ObjectStored(purpose string, size int64) {
	o.storedBytes.WithLabelValues(purpose).Add(float64(size))
}

func (o *Observer) Resolved(purpose string, status domain.Status) {
	o.resolved.WithLabelValues(purpose, string(status)).Inc()
}

var _ interfaces.Observer = (*Observer)(nil)
