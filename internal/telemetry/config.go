package telemetry

import "codeberg.org/mutker/tempstation/internal/errors"

const defaultNamespace = "tempstation"

type Config struct {
	Namespace string
	// DurationBuckets are the attempt duration histogram buckets in seconds.
	DurationBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		Namespace:       defaultNamespace,
		DurationBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Namespace == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "namespace is empty")
	}
	for i := 1; i < len(c.DurationBuckets); i++ {
		if c.DurationBuckets[i] <= c.DurationBuckets[i-1] {
			return errFactory.WithData(ErrInvalidConfig, c.DurationBuckets)
		}
	}
	return nil
}
