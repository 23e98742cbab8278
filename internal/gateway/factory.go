package gateway

import (
	"fmt"
	"time"

	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the per-provider circuit breaker. OnStateChange,
// when set, is called on every breaker state change.
type BreakerSettings struct {
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MinRequests   uint32
	FailureRatio  float64
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  10,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Factory resolves gateway providers by name and wraps each in its own
// circuit breaker so one flapping gateway cannot consume the whole worker.
type Factory struct {
	providers map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker[*Response]
	settings  BreakerSettings
}

// NewFactory builds a factory over the given providers. With no providers it
// registers the sandbox and a mildly unreliable mock, which is what dev and
// test environments run against.
func NewFactory(settings BreakerSettings, providerList ...Provider) *Factory {
	f := &Factory{
		providers: make(map[string]Provider),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*Response]),
		settings:  settings,
	}
	if len(providerList) == 0 {
		f.Register(NewSandboxProvider())
		f.Register(NewMockProvider("worldpay", WithFailureRate(0.05)))
	} else {
		for _, p := range providerList {
			f.Register(p)
		}
	}
	return f
}

func (f *Factory) Register(p Provider) {
	f.providers[p.Name()] = p
	f.breakers[p.Name()] = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: f.settings.MaxRequests,
		Interval:    f.settings.Interval,
		Timeout:     f.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= f.settings.MinRequests && failureRatio >= f.settings.FailureRatio
		},
		OnStateChange: f.settings.OnStateChange,
	})
}

// Get resolves a provider and its breaker by gateway name.
func (f *Factory) Get(name string) (Provider, *gobreaker.CircuitBreaker[*Response], error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, nil, fmt.Errorf("gateway %q: %w", name, domainErrors.ErrGatewayNotFound)
	}
	return p, f.breakers[name], nil
}
