package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

type retryingDriver struct {
	name     string
	driver   Driver
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryingDriver wraps a driver so that a failed read is retried up to attempts times,
// waiting delay*attempt between tries
func NewRetryingDriver(name string, driver Driver, attempts int, delay time.Duration) *retryingDriver {
	if attempts < 1 {
		attempts = 1
	}

	return &retryingDriver{
		name:     name,
		driver:   driver,
		attempts: attempts,
		delay:    delay,
		sleep:    sleepContext,
	}
}

// ReadData calls the wrapped driver until it succeeds, the attempts run out or the context is done
func (r *retryingDriver) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		data, err := r.driver.ReadData(ctx)
		if err == nil {
			return data, nil
		}

		lastErr = err
		log.Debug("sensor read failed", "sensor", r.name, "attempt", attempt, "error", err)
		if attempt == r.attempts {
			break
		}

		err = r.sleep(ctx, r.delay*time.Duration(attempt))
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", lastErr, r.attempts)
}

// Close closes the wrapped driver
func (r *retryingDriver) Close() error {
	return r.driver.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (r *retryingDriver) IsInterfaceNil() bool {
	return r == nil
}
