package limiter

import (
	"errors"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/samber/do/v2"
)

// ProvideFactory is the do provider of *Factory. SharedStore, *OTelMetrics, EventBus and
// *logger.Manager are picked up when registered; a registered one that fails to build
// fails the factory.
func ProvideFactory(i do.Injector) (*Factory, error) {
	var opts []Option

	if mgr, err := do.Invoke[*logger.Manager](i); err == nil && mgr != nil {
		opts = append(opts, WithLogger(mgr.GetLogger("limiter")))
	}

	store, err := do.Invoke[SharedStore](i)
	if err = optional(err); err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, WithStore(store))
	}

	metrics, err := do.Invoke[*OTelMetrics](i)
	if err = optional(err); err != nil {
		return nil, err
	}
	if metrics != nil {
		opts = append(opts, WithMetrics(metrics))
	}

	bus, err := do.Invoke[EventBus](i)
	if err = optional(err); err != nil {
		return nil, err
	}
	if bus != nil {
		opts = append(opts, WithEventBus(bus))
	}

	return NewFactory(opts...), nil
}

func optional(err error) error {
	if errors.Is(err, do.ErrServiceNotFound) {
		return nil
	}
	return err
}
