// SPDX-License-Identifier: EPL-2.0

package output

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// minUpdateWait bounds how long Update blocks when the device is silent, so the
// engine still notices shutdown requests.
const minUpdateWait = 200 * time.Millisecond

// MalgoConfig selects the playback device.
type MalgoConfig struct {
	// DeviceIndex picks an entry of ListDevices; a negative index is the
	// system default.
	DeviceIndex int
	// Latency is the device period.
	Latency time.Duration
	// Channels is 1 or 2. A mono device gets a downmix of the stereo graph;
	// zero follows the graph.
	Channels int
}

// Device describes a playback device.
type Device struct {
	Index   int
	Name    string
	Default bool
}

// Malgo plays through the system audio device. Samples are produced on the
// device callback thread; Update waits for the next period and reports the
// first error the callback ran into.
type Malgo struct {
	logger golog.Logger
	cfg    MalgoConfig

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	disposed bool

	// used only on the callback thread once the device runs
	read func([]float32) (int, error)
	buf  []float32

	period  chan struct{}
	errOnce sync.Once
	err     atomic.Pointer[error]
}

var _ Sink = (*Malgo)(nil)

func NewMalgo(cfg MalgoConfig, logger golog.Logger) *Malgo {
	if logger == nil {
		logger = golog.Global().Named("device sink")
	}
	if cfg.Latency <= 0 {
		cfg.Latency = DefaultLatency
	}

	return &Malgo{
		logger: logger.With("sink", uuid.NewString()),
		cfg:    cfg,
		period: make(chan struct{}, 1),
	}
}

// ListDevices enumerates the playback devices in index order.
func ListDevices(logger golog.Logger) ([]Device, error) {
	if logger == nil {
		logger = golog.Global()
	}

	ctx, err := initContext(logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ctx.Uninit(); err != nil {
			logger.Warnw("releasing audio context", "error", err)
		}
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.Wrap(err, "listing playback devices")
	}

	devices := make([]Device, len(infos))
	for i := range infos {
		devices[i] = Device{Index: i, Name: infos[i].Name(), Default: infos[i].IsDefault != 0}
	}

	return devices, nil
}

func initContext(logger golog.Logger) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debugw("miniaudio", "message", message)
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing audio context")
	}

	return ctx, nil
}

// bind prepares the sample path from p to device frames.
func (m *Malgo) bind(p mix.Provider) error {
	f, err := checkProvider(p)
	if err != nil {
		return err
	}

	channels := m.cfg.Channels
	if channels == 0 {
		channels = f.Channels
	}

	switch {
	case channels == f.Channels:
		m.read = p.Read
	case channels == 1:
		m.read = audio.NewMonoMixer(providerSource{p, f}).ReadSamples
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "%d device channels for %s", channels, f)
	}

	m.format = audio.Format{SampleRate: f.SampleRate, Channels: channels}
	m.buf = make([]float32, BlockSize(m.format, m.cfg.Latency))

	return nil
}

func (m *Malgo) Init(p mix.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return ErrDisposed
	}
	if m.device != nil {
		return ErrAlreadyInitialized
	}
	if err := m.bind(p); err != nil {
		return err
	}

	ctx, err := initContext(m.logger)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(len(m.buf) / m.format.Channels)

	if m.cfg.DeviceIndex >= 0 {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			return multierr.Append(errors.Wrap(err, "listing playback devices"), releaseContext(ctx))
		}
		if m.cfg.DeviceIndex >= len(infos) {
			return multierr.Append(
				errors.Wrapf(ErrDeviceNotFound, "index %d of %d", m.cfg.DeviceIndex, len(infos)),
				releaseContext(ctx),
			)
		}
		cfg.Playback.DeviceID = infos[m.cfg.DeviceIndex].ID.Pointer()
		m.logger.Infow("using playback device", "index", m.cfg.DeviceIndex, "name", infos[m.cfg.DeviceIndex].Name())
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: m.onData})
	if err != nil {
		return multierr.Append(errors.Wrap(err, "initializing playback device"), releaseContext(ctx))
	}

	m.ctx, m.device = ctx, device
	m.logger.Debugw("device sink bound",
		"format", m.format.String(),
		"period_frames", cfg.PeriodSizeInFrames,
	)

	return nil
}

func releaseContext(ctx *malgo.AllocatedContext) error {
	err := ctx.Uninit()
	ctx.Free()
	return errors.Wrap(err, "releasing audio context")
}

func (m *Malgo) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotInitialized
	}

	return errors.Wrap(m.device.Start(), "starting playback device")
}

// Update waits for the device to consume a period, then returns the first error
// raised on the callback thread, if any.
func (m *Malgo) Update() error {
	wait := max(4*m.cfg.Latency, minUpdateWait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-m.period:
	case <-timer.C:
	}

	return m.Err()
}

// Err is the first error raised while producing samples for the device.
func (m *Malgo) Err() error {
	if err := m.err.Load(); err != nil {
		return *err
	}
	return nil
}

func (m *Malgo) setErr(err error) {
	m.errOnce.Do(func() {
		m.err.Store(&err)
		m.logger.Errorw("device callback failed", "error", err)
	})
}

func (m *Malgo) onData(out, _ []byte, frames uint32) {
	samples := min(int(frames)*m.format.Channels, len(out)/4)
	if cap(m.buf) < samples {
		m.buf = make([]float32, samples)
	}
	buf := m.buf[:samples]

	var n int
	if m.Err() == nil {
		var err error
		n, err = m.read(buf)
		if err != nil {
			m.setErr(errors.Wrap(err, "reading from provider"))
		}
		n = min(max(n, 0), samples)
	}
	clear(buf[n:])
	encodeFloat32LE(out, buf)

	select {
	case m.period <- struct{}{}:
	default:
	}
}

func encodeFloat32LE(out []byte, samples []float32) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
}

// Dispose stops and releases the device.
func (m *Malgo) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}
	m.disposed = true

	var err error
	if m.device != nil {
		err = errors.Wrap(m.device.Stop(), "stopping playback device")
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		err = multierr.Append(err, releaseContext(m.ctx))
		m.ctx = nil
	}

	return err
}

// providerSource adapts a graph provider to the decoder-facing audio.Source so
// the channel converters in package audio can wrap it.
type providerSource struct {
	p mix.Provider
	f audio.Format
}

func (s providerSource) SampleRate() int                        { return s.f.SampleRate }
func (s providerSource) Channels() int                          { return s.f.Channels }
func (s providerSource) BufSize() int                           { return audio.ReadBufferSize }
func (s providerSource) Close() error                           { return nil }
func (s providerSource) ReadSamples(dst []float32) (int, error) { return s.p.Read(dst) }
