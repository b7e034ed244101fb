package policy

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/domain/audio"
)

// Session is the hardware audio session the configuration is applied to.
type Session interface {
	ApplyConfig(cfg audio.SessionConfig) error
}

// Applier applies session configurations, skipping ones equal to the last applied.
// Not safe for concurrent use; callers confine it to one goroutine.
type Applier struct {
	session Session
	last    *audio.SessionConfig
}

// NewApplier creates an applier. The first Apply always reaches the hardware.
func NewApplier(session Session) *Applier {
	return &Applier{session: session}
}

// Apply pushes cfg to the hardware unless it equals the last applied configuration.
// changed is true only when the hardware accepted a different configuration.
// On rejection the previous configuration is kept and the error is returned; the call continues.
func (a *Applier) Apply(cfg audio.SessionConfig) (changed bool, err error) {
	if a.last != nil && a.last.Equal(cfg) {
		return false, nil
	}

	if err := a.session.ApplyConfig(cfg); err != nil {
		zlog.Error().Err(err).Msgf("policy: hardware rejected session config: target=%s retained=%s", cfg, a.describeLast())
		return false, errors.Wrapf(err, "failed to apply session config %s", cfg)
	}

	zlog.Debug().Msgf("policy: session config applied: %s -> %s", a.describeLast(), cfg)
	applied := cfg
	a.last = &applied
	return true, nil
}

// Current returns the last configuration the hardware accepted.
func (a *Applier) Current() (audio.SessionConfig, bool) {
	if a.last == nil {
		return audio.SessionConfig{}, false
	}
	return *a.last, true
}

func (a *Applier) describeLast() string {
	if a.last == nil {
		return "unset"
	}
	return a.last.String()
}
