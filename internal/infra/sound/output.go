package sound

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gen2brain/malgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/infra/tone"
)

// Output is an audio device pulling S16 frames through render.
type Output interface {
	Start(format tone.Format, render func(out []byte)) error
	Close() error
}

// MalgoOutput plays through the default miniaudio playback device.
type MalgoOutput struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoOutput creates an output. The device is opened by Start.
func NewMalgoOutput() *MalgoOutput {
	return &MalgoOutput{}
}

// Start opens and starts the playback device.
func (o *MalgoOutput) Start(format tone.Format, render func(out []byte)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device != nil {
		return errors.New("output already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		zlog.Debug().Msgf("sound: malgo: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return errors.Wrap(err, "failed to init malgo context")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)

	onPlay := func(pOutputSamples, pInputSamples []byte, frameCount uint32) {
		render(pOutputSamples)
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onPlay})
	if err != nil {
		releaseContext(ctx)
		return errors.Wrap(err, "failed to open playback device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return errors.Wrap(err, "failed to start playback device")
	}

	o.ctx, o.device = ctx, device
	zlog.Debug().Msgf("sound: playback device started: sample_rate=%d channels=%d", format.SampleRate, format.Channels)
	return nil
}

// Close stops the device and releases the context. Safe to call when not started.
func (o *MalgoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device == nil {
		return nil
	}
	if err := o.device.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("sound: failed to stop playback device")
	}
	o.device.Uninit()
	o.device = nil
	releaseContext(o.ctx)
	o.ctx = nil
	return nil
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		zlog.Warn().Err(err).Msg("sound: failed to uninit malgo context")
	}
	ctx.Free()
}
