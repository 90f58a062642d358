// SPDX-License-Identifier: EPL-2.0

// Package bank loads a set of short sounds described by a JSON manifest and
// plays them by id.
//
// The manifest sits at the root of a virtual file system, so a bank can come
// from a folder, an archive or memory:
//
//	{"sounds": [
//	    {"id": "jump", "file": "sfx/jump.wav", "volume": 0.8},
//	    {"id": "theme", "file": "music/theme.ogg", "category": "music", "looped": true}
//	]}
package bank

import (
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/ik5/audmix"
	"github.com/ik5/audmix/sources"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/tools/godoc/vfs"
)

// ManifestName is the manifest file looked up at the root of the file system.
const ManifestName = "sounds.json"

// Entry is one manifest line.
type Entry struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Category string   `json:"category,omitempty"`
	Volume   *float32 `json:"volume,omitempty"`
	Looped   bool     `json:"looped,omitempty"`
}

// Manifest is the content of ManifestName.
type Manifest struct {
	Sounds []Entry `json:"sounds"`
}

// Sound is a decoded manifest entry.
type Sound struct {
	ID       string
	Category audmix.Category
	Volume   float32
	Looped   bool
	Audio    *sources.Cached
}

// Bank holds decoded sounds by id. It is safe for concurrent use.
type Bank struct {
	logger golog.Logger

	mu     sync.RWMutex
	sounds map[string]*Sound
}

// LoadFolder loads the bank whose manifest is at the root of folder.
func LoadFolder(folder string, opts sources.Options, logger golog.Logger) (*Bank, error) {
	return Load(vfs.OS(folder), opts, logger)
}

// Load reads ManifestName from fs and decodes every sound it lists. A file used
// by several entries is decoded once. Entries whose file cannot be read or
// decoded are logged and skipped; a malformed manifest fails the load.
func Load(fs vfs.Opener, opts sources.Options, logger golog.Logger) (*Bank, error) {
	if logger == nil {
		logger = golog.Global().Named("bank")
	}
	start := time.Now()

	manifest, err := loadManifest(fs, ManifestName)
	if err != nil {
		return nil, err
	}

	b := &Bank{logger: logger, sounds: make(map[string]*Sound, len(manifest.Sounds))}
	decoded := make(map[string]*sources.Cached)
	for _, e := range manifest.Sounds {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, ok := b.sounds[e.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateSound, "%q", e.ID)
		}

		cached, ok := decoded[e.File]
		if !ok {
			cached, err = decodeFile(fs, e.File, opts)
			if err != nil {
				logger.Warnw("skipping sound", "id", e.ID, "file", e.File, "error", err)
				continue
			}
			decoded[e.File] = cached
		}

		b.sounds[e.ID] = e.sound(cached)
	}

	logger.Infow("sound bank loaded",
		"sounds", len(b.sounds),
		"files", len(decoded),
		"elapsed", time.Since(start),
	)

	return b, nil
}

func (e Entry) validate() error {
	switch {
	case e.ID == "":
		return errors.Wrap(ErrInvalidEntry, "missing id")
	case e.File == "":
		return errors.Wrapf(ErrInvalidEntry, "%q has no file", e.ID)
	case e.Volume != nil && *e.Volume < 0:
		return errors.Wrapf(ErrInvalidEntry, "%q has negative volume", e.ID)
	}

	return nil
}

func (e Entry) sound(cached *sources.Cached) *Sound {
	s := &Sound{
		ID:       e.ID,
		Category: audmix.Category(e.Category),
		Volume:   1,
		Looped:   e.Looped,
		Audio:    cached,
	}
	if s.Category == "" {
		s.Category = audmix.CategorySFX
	}
	if e.Volume != nil {
		s.Volume = *e.Volume
	}

	return s
}

func readFile(fs vfs.Opener, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func loadManifest(fs vfs.Opener, path string) (Manifest, error) {
	var m Manifest

	data, err := readFile(fs, path)
	if err != nil {
		return m, errors.Wrapf(err, "opening %s", path)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrapf(err, "parsing %s", path)
	}

	return m, nil
}

func decodeFile(fs vfs.Opener, path string, opts sources.Options) (*sources.Cached, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sound")
	}
	defer f.Close()

	src, err := sources.Decode(f, path, opts)
	if err != nil {
		return nil, err
	}

	return sources.LoadCached(src, opts.ResampleQuality)
}

// Get returns the sound registered under id.
func (b *Bank) Get(id string) (*Sound, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sounds[id]
	return s, ok
}

// IDs lists the loaded sounds in id order.
func (b *Bank) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.sounds))
	for id := range b.sounds {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.sounds)
}

// Play starts a new instance of id in its category mixer with its volume and
// loop setting.
func (b *Bank) Play(e *audmix.Engine, id string) (*audmix.Sound, error) {
	s, ok := b.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSound, "%q", id)
	}

	r := s.Audio.NewReader()
	if s.Looped {
		r.SetLooped(true)
	}

	snd, err := e.NewSound(r, s.Category)
	if err != nil {
		return nil, err
	}
	snd.SetVolume(s.Volume)
	if err := snd.Play(); err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "playing %q", id), snd.Close())
	}
	b.logger.Debugw("playing sound", "id", id, "category", s.Category, "voice", snd.ID())

	return snd, nil
}
