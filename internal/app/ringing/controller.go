// Package ringing provides the incoming-call ringing controller: a repeating vibration
// pulse and a looping ringtone gated by the device's ringer switch.
package ringing

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/dispatch"
	"github.com/osa030/callaudio/internal/app/notification"
	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/domain/audio"
)

const (
	DefaultVibrateRepeat = 1600 * time.Millisecond
	DefaultPulse         = 200 * time.Millisecond
)

// SilenceSource reports whether the hardware ringer switch silences the device.
// Subscribers receive the current value immediately, then every change, on any goroutine.
type SilenceSource interface {
	SubscribeSilenced(fn func(silenced bool)) (*notification.Subscription, error)
}

// Vibrator triggers one vibration pulse.
type Vibrator interface {
	Vibrate()
}

// Config holds controller configuration.
type Config struct {
	VibrateRepeat time.Duration // Interval between pulse pairs
	Pulse         time.Duration // Gap between the two pulses of a pair
	Owned         bool          // False when a platform call-management facility rings instead
}

// Controller owns the ringing sub-state.
// All methods must be called on the queue it was created with.
type Controller struct {
	queue    *dispatch.Queue
	engine   playback.Engine
	silence  SilenceSource
	vibrator Vibrator
	config   Config

	// Ringing session
	ringing    bool
	generation uint64
	pulseTimer *dispatch.Task
	echoPulse  *dispatch.Task
	ringtone   playback.Handle
	silenceSub *notification.Subscription
	silenced   bool

	closed bool
}

// NewController creates a ringing controller.
func NewController(queue *dispatch.Queue, engine playback.Engine, silence SilenceSource, vibrator Vibrator, config Config) *Controller {
	if config.VibrateRepeat <= 0 {
		config.VibrateRepeat = DefaultVibrateRepeat
	}
	if config.Pulse <= 0 {
		config.Pulse = DefaultPulse
	}
	return &Controller{
		queue:    queue,
		engine:   engine,
		silence:  silence,
		vibrator: vibrator,
		config:   config,
	}
}

// Owned reports whether this controller drives ringing.
func (c *Controller) Owned() bool {
	return c.config.Owned
}

// SetOwned hands ringing to or from an external call-management facility.
// Giving ownership away stops any ringing in progress.
func (c *Controller) SetOwned(owned bool) {
	if !owned {
		c.Stop()
	}
	c.config.Owned = owned
}

// IsRinging reports whether a ringing session is active.
func (c *Controller) IsRinging() bool {
	return c.ringing
}

// IsSilenced reports the last ringer switch value delivered during this ringing session.
func (c *Controller) IsSilenced() bool {
	return c.silenced
}

// Start begins vibrating and ringing.
// onSilenceChanged runs before every ringtone play/pause toggle so the caller can
// re-request its session configuration; an intervening session change could otherwise
// make playback fail silently.
func (c *Controller) Start(onSilenceChanged func()) {
	if !c.config.Owned {
		zlog.Info().Msg("ringing: delegated to the platform, not starting")
		return
	}
	if c.closed {
		zlog.Warn().Msg("ringing: controller closed, not starting")
		return
	}
	if c.ringing {
		zlog.Debug().Msg("ringing: already ringing")
		return
	}

	c.ringing = true
	c.generation++
	c.silenced = false
	generation := c.generation
	zlog.Debug().Msgf("ringing: started: vibrate_repeat=%v pulse=%v", c.config.VibrateRepeat, c.config.Pulse)

	c.pulseTimer = c.queue.Every(c.config.VibrateRepeat, c.vibratePair)
	c.vibratePair()

	handle, err := c.engine.Prepare(audio.EffectRingtone, playback.BehaviorLoop)
	if err == nil && handle == nil {
		err = playback.ErrNoPlayer
	}
	if err != nil {
		zlog.Error().Err(err).Msg("ringing: no ringtone player, vibrating only")
	} else {
		c.ringtone = handle
	}

	sub, err := c.silence.SubscribeSilenced(func(silenced bool) {
		c.queue.Async(func() {
			c.silenceDidChange(generation, silenced, onSilenceChanged)
		})
	})
	if err != nil {
		zlog.Error().Err(errors.Wrap(err, "failed to observe ringer switch")).Msg("ringing: assuming not silenced")
		c.silenceDidChange(generation, false, onSilenceChanged)
		return
	}
	c.silenceSub = sub
}

// Stop cancels the vibration pulse, stops the ringtone and stops observing the ringer switch.
// Safe to call when not ringing.
func (c *Controller) Stop() {
	if !c.ringing {
		return
	}
	c.ringing = false
	c.generation++

	c.pulseTimer.Cancel()
	c.pulseTimer = nil
	c.echoPulse.Cancel()
	c.echoPulse = nil

	if c.ringtone != nil {
		c.ringtone.Stop()
		c.ringtone = nil
	}

	c.silenceSub.Cancel()
	c.silenceSub = nil

	zlog.Debug().Msg("ringing: stopped")
}

// Close stops ringing and refuses further starts.
func (c *Controller) Close() {
	c.Stop()
	c.closed = true
}

func (c *Controller) vibratePair() {
	if !c.ringing {
		return
	}
	c.echoPulse.Cancel()
	c.echoPulse = c.queue.After(c.config.Pulse, func() {
		c.echoPulse = nil
		if c.ringing {
			c.vibrator.Vibrate()
		}
	})
	c.vibrator.Vibrate()
}

func (c *Controller) silenceDidChange(generation uint64, silenced bool, onSilenceChanged func()) {
	// Deliveries can still be in flight after Stop.
	if !c.ringing || generation != c.generation {
		return
	}
	c.silenced = silenced

	if onSilenceChanged != nil {
		onSilenceChanged()
	}

	if c.ringtone == nil {
		return
	}
	if silenced {
		zlog.Debug().Msg("ringing: device silenced, pausing ringtone")
		c.ringtone.Pause()
	} else {
		zlog.Debug().Msg("ringing: device not silenced, playing ringtone")
		c.ringtone.Play()
	}
}
