// SPDX-License-Identifier: EPL-2.0

// Command audmix plays or renders audio files through the mixing engine.
//
//	audmix [flags] <file>...
//	audmix --bank ./assets [flags] <sound id>...
//
// Files are played as music; with --bank the arguments are ids of the bank's
// manifest. Output goes to the sound device, a WAV file or nowhere, as chosen by
// --output or the config file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/ik5/audmix"
	"github.com/ik5/audmix/bank"
	"github.com/ik5/audmix/output"
	"github.com/ik5/audmix/sources"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type options struct {
	configPath  string
	listDevices bool
	outPath     string
	duration    time.Duration
	bankDir     string
	cached      bool
	volume      float32
	filters     filterFlags
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "audmix:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, *viper.Viper, []string, error) {
	var opts options

	fs := pflag.NewFlagSet("audmix", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "audmix.yaml", "config file")
	fs.BoolVar(&opts.listDevices, "list-devices", false, "list playback devices and exit")
	fs.StringVarP(&opts.outPath, "out", "o", "out.wav", "file written by the wav output")
	fs.DurationVar(&opts.duration, "duration", 0, "stop after this much audio (0 plays to the end)")
	fs.StringVar(&opts.bankDir, "bank", "", "folder holding a sound bank; arguments become sound ids")
	fs.BoolVar(&opts.cached, "cached", false, "decode files fully before playing instead of streaming")
	fs.Float32Var(&opts.volume, "volume", 1, "volume of every played sound")
	opts.filters.register(fs)

	fs.String("output", audmix.OutputDevice, "device, wav or null")
	fs.Int("device", -1, "playback device index, -1 for the default")
	fs.Int("latency-ms", int(output.DefaultLatency/time.Millisecond), "output latency in milliseconds")
	fs.Int("resample-quality", 0, "0 for cubic, 1-10 for windowed sinc")
	fs.Float32("master-volume", 1, "master volume")
	fs.String("log-level", "info", "info or debug")

	if err := fs.Parse(args); err != nil {
		return opts, nil, nil, err
	}

	v, err := audmix.NewViper(opts.configPath)
	if err != nil {
		return opts, nil, nil, err
	}
	for key, flag := range map[string]string{
		"output":           "output",
		"device_index":     "device",
		"latency_ms":       "latency-ms",
		"resample_quality": "resample-quality",
		"master_volume":    "master-volume",
		"log_level":        "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return opts, nil, nil, errors.Wrapf(err, "binding --%s", flag)
		}
	}

	return opts, v, fs.Args(), nil
}

func newLogger(level string) golog.Logger {
	if level == "debug" {
		return golog.NewDebugLogger("audmix")
	}
	return golog.NewLogger("audmix")
}

func run(ctx context.Context, args []string) error {
	opts, v, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := audmix.ConfigFrom(v)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if opts.listDevices {
		return listDevices(logger)
	}
	if len(rest) == 0 {
		return errors.New("nothing to play")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return play(ctx, cfg, opts, rest, logger)
}

func listDevices(logger golog.Logger) error {
	devices, err := output.ListDevices(logger)
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %2d  %s\n", mark, d.Index, d.Name)
	}

	return nil
}

// newSink builds the configured output. done is closed when a bounded render
// has finished, and is nil otherwise.
func newSink(cfg audmix.Config, opts options, logger golog.Logger) (sink output.Sink, done <-chan struct{}, err error) {
	switch cfg.Output {
	case audmix.OutputDevice:
		return output.NewMalgo(output.MalgoConfig{
			DeviceIndex: cfg.DeviceIndex,
			Latency:     cfg.Latency,
		}, logger), nil, nil
	case audmix.OutputWav:
		w, err := output.CreateWav(opts.outPath,
			output.WithWavLatency(cfg.Latency),
			output.WithDuration(opts.duration),
			output.WithWavLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		if opts.duration > 0 {
			done = w.Done()
		}
		return w, done, nil
	case audmix.OutputNull:
		return output.NewNull(
			output.WithNullLatency(cfg.Latency),
			output.WithPacing(true),
			output.WithNullLogger(logger),
		), nil, nil
	default:
		return nil, nil, errors.Wrapf(audmix.ErrUnsupportedSink, "%q", cfg.Output)
	}
}

func play(ctx context.Context, cfg audmix.Config, opts options, args []string, logger golog.Logger) error {
	sink, rendered, err := newSink(cfg, opts, logger)
	if err != nil {
		return err
	}

	var (
		started atomic.Bool
		sounds  []*audmix.Sound
	)
	finished := func() bool {
		if rendered != nil {
			select {
			case <-rendered:
				return true
			default:
			}
		}
		if !started.Load() {
			return false
		}
		for _, s := range sounds {
			if s.Playing() {
				return false
			}
		}
		return true
	}

	e, err := audmix.Initialize(finished, cfg, sink,
		audmix.WithContext(ctx),
		audmix.WithLogger(logger),
	)
	if err != nil {
		return multierr.Append(err, sink.Dispose())
	}

	sounds, err = startSounds(e, cfg, opts, args, logger)
	if err != nil {
		return multierr.Append(err, e.Shutdown())
	}
	started.Store(true)

	for {
		select {
		case verr := <-e.VoiceErrors():
			logger.Warnw("sound failed", "category", verr.Category, "error", verr.Err)
		case <-e.Done():
			return e.Wait()
		}
	}
}

func startSounds(e *audmix.Engine, cfg audmix.Config, opts options, args []string, logger golog.Logger) ([]*audmix.Sound, error) {
	var b *bank.Bank
	if opts.bankDir != "" {
		var err error
		b, err = bank.LoadFolder(opts.bankDir, cfg.SourceOptions(), logger.Named("bank"))
		if err != nil {
			return nil, err
		}
	}

	sounds := make([]*audmix.Sound, 0, len(args))
	for _, arg := range args {
		s, err := newSound(e, b, cfg, opts, arg)
		if err != nil {
			return nil, multierr.Append(err, closeAll(sounds))
		}
		sounds = append(sounds, s)
	}

	return sounds, nil
}

func newSound(e *audmix.Engine, b *bank.Bank, cfg audmix.Config, opts options, arg string) (*audmix.Sound, error) {
	var (
		s   *audmix.Sound
		err error
	)
	switch {
	case b != nil:
		s, err = b.Play(e, arg)
		if err != nil {
			return nil, err
		}
	case opts.cached:
		c, lerr := sources.LoadFile(arg, cfg.SourceOptions())
		if lerr != nil {
			return nil, lerr
		}
		if s, err = e.NewSound(c.NewReader(), audmix.CategoryMusic); err != nil {
			return nil, err
		}
	default:
		if s, err = e.StreamFile(arg, audmix.CategoryMusic); err != nil {
			return nil, err
		}
	}

	if opts.filters.loop {
		s.Source().SetLooped(true)
	}
	if opts.volume != 1 {
		s.SetVolume(opts.volume)
	}
	for _, f := range opts.filters.build() {
		if err := s.AddFilter(f); err != nil {
			return nil, multierr.Append(err, s.Close())
		}
	}

	if b == nil {
		if err := s.Play(); err != nil {
			return nil, multierr.Append(err, s.Close())
		}
	}

	return s, nil
}

func closeAll(sounds []*audmix.Sound) error {
	var err error
	for _, s := range sounds {
		err = multierr.Append(err, s.Close())
	}
	return err
}
