// SPDX-License-Identifier: EPL-2.0

// Package audmix is a real-time audio mixing engine.
//
// An Engine owns a master mixer with one sub-mixer per Category, an output
// sink and the goroutine that drives them. Sounds are sources from package
// sources wrapped in a voice, so each one has its own volume and filter chain:
//
//	cfg, err := audmix.LoadConfig("audmix.yaml")
//	if err != nil {
//	    return err
//	}
//
//	engine, err := audmix.Initialize(quit.Load, cfg, output.NewMalgo(output.MalgoConfig{
//	    DeviceIndex: cfg.DeviceIndex,
//	    Latency:     cfg.Latency,
//	}, logger))
//	if err != nil {
//	    return err
//	}
//
//	music, err := engine.StreamFile("theme.ogg", audmix.CategoryMusic)
//	if err != nil {
//	    return err
//	}
//	_ = music.AddFilter(filters.NewLowPassAt(800, 0.7))
//	_ = music.Play()
//
// # Playback and reconciliation
//
// The playback goroutine calls the sink's Play once and then Update until the
// shutdown predicate returns true. Update lets the sink pump audio and then
// closes every input that has stopped; a sound that reaches the end of its
// source is stopped by its mixer and released there. Stop only changes state,
// while Close and RemoveInput unlink a sound at once.
//
// # Errors
//
// A failure in the playback goroutine, including a panic in a sink, ends
// playback and is kept as the pending error. Hosts poll ThrowIfErrored from
// their own frame loop. A sound whose source fails is stopped without
// disturbing the rest of the mix and reported on VoiceErrors.
package audmix
