// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ik5/audmix/output"
	"github.com/ik5/audmix/sources"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Output kinds accepted in Config.Output.
const (
	OutputDevice = "device"
	OutputWav    = "wav"
	OutputNull   = "null"
)

// EnvPrefix prefixes environment overrides, e.g. AUDMIX_MASTER_VOLUME.
const EnvPrefix = "AUDMIX"

// Config holds everything Initialize and the command line need.
type Config struct {
	MasterVolume float32
	// Volumes has one entry per category mixer created at start.
	Volumes map[Category]float32

	// DeviceIndex picks a playback device; -1 is the system default.
	DeviceIndex int
	Latency     time.Duration

	BufferSeconds   float64
	ResampleQuality int

	LogLevel string
	// Output is OutputDevice, OutputWav or OutputNull.
	Output string
}

// DefaultConfig is what LoadConfig returns when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		MasterVolume:  1,
		Volumes:       map[Category]float32{CategoryMusic: 1, CategorySFX: 1},
		DeviceIndex:   -1,
		Latency:       output.DefaultLatency,
		BufferSeconds: sources.DefaultBufferSeconds,
		LogLevel:      "info",
		Output:        OutputDevice,
	}
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("master_volume", d.MasterVolume)
	for cat, volume := range d.Volumes {
		v.SetDefault("volumes."+string(cat), volume)
	}
	v.SetDefault("device_index", d.DeviceIndex)
	v.SetDefault("latency_ms", d.Latency.Milliseconds())
	v.SetDefault("buffer_seconds", d.BufferSeconds)
	v.SetDefault("resample_quality", d.ResampleQuality)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("output", d.Output)
}

// NewViper returns a viper instance with defaults and AUDMIX_ environment
// overrides, reading path when it names an existing file. A missing file is not
// an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	return v, nil
}

// LoadConfig reads path on top of the defaults.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}

	return ConfigFrom(v)
}

// ConfigFrom decodes a Config out of v.
func ConfigFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		MasterVolume:    float32(v.GetFloat64("master_volume")),
		Volumes:         make(map[Category]float32),
		DeviceIndex:     v.GetInt("device_index"),
		Latency:         time.Duration(v.GetInt64("latency_ms")) * time.Millisecond,
		BufferSeconds:   v.GetFloat64("buffer_seconds"),
		ResampleQuality: v.GetInt("resample_quality"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		Output:          strings.ToLower(v.GetString("output")),
	}

	for _, key := range v.AllKeys() {
		name, ok := strings.CutPrefix(key, "volumes.")
		if !ok || name == "" {
			continue
		}
		cfg.Volumes[Category(name)] = float32(v.GetFloat64(key))
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MasterVolume < 0:
		return errors.Errorf("master volume %v is negative", c.MasterVolume)
	case c.Latency <= 0:
		return errors.Errorf("latency %v must be positive", c.Latency)
	case c.ResampleQuality < 0 || c.ResampleQuality > 10:
		return errors.Errorf("resample quality %d is outside 0..10", c.ResampleQuality)
	case !slices.Contains([]string{OutputDevice, OutputWav, OutputNull}, c.Output):
		return errors.Wrapf(ErrUnsupportedSink, "%q", c.Output)
	}

	for cat, volume := range c.Volumes {
		if volume < 0 {
			return errors.Errorf("volume %v of %s is negative", volume, cat)
		}
	}

	return nil
}

// SourceOptions are the decoding options implied by the config.
func (c Config) SourceOptions() sources.Options {
	return sources.Options{ResampleQuality: c.ResampleQuality}
}
