package tss

// ThresholdConfig is the fixed (n, t) pair a deployment runs with. The zero
// value is not usable; construct with NewThresholdConfig.
type ThresholdConfig struct {
	n int
	t int
}

func NewThresholdConfig(n, t int) (ThresholdConfig, error) {
	switch {
	case n < 1:
		return ThresholdConfig{}, &ConfigError{N: n, T: t, msg: "total must be at least 1"}
	case t < 1:
		return ThresholdConfig{}, &ConfigError{N: n, T: t, msg: "threshold must be at least 1"}
	case t > n:
		return ThresholdConfig{}, &ConfigError{N: n, T: t, msg: "threshold exceeds total"}
	case n > maxParticipants:
		return ThresholdConfig{}, &ConfigError{N: n, T: t, msg: "too many participants"}
	}
	return ThresholdConfig{n: n, t: t}, nil
}

// MustThresholdConfig panics on an invalid pair. For tests and constants.
func MustThresholdConfig(n, t int) ThresholdConfig {
	cfg, err := NewThresholdConfig(n, t)
	if err != nil {
		panic(err)
	}
	return cfg
}

// maxParticipants keeps participant ids well inside int64 for the Lagrange math.
const maxParticipants = 1 << 16

func (c ThresholdConfig) N() int { return c.n }

func (c ThresholdConfig) T() int { return c.t }

func (c ThresholdConfig) valid() bool { return c.t >= 1 && c.t <= c.n }

// ValidID reports whether id names a participant of this deployment.
func (c ThresholdConfig) ValidID(id int) bool { return id >= 1 && id <= c.n }
