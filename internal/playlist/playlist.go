// Package playlist implements the track catalog collaborator: JSON-backed
// track definitions, media file resolution and play bookkeeping.
package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// Config carries the playlist settings.
type Config struct {
	Logger contracts.Logger
	// MediaDir holds the audio and MIDI files named after each track's stem.
	MediaDir string
}

type playRecord struct {
	lastPlayed time.Time
	plays      int
}

// Playlist is a JSON-backed catalog implementing contracts.Playlist.
type Playlist struct {
	log      contracts.Logger
	mediaDir string

	mu      sync.Mutex
	tracks  []contracts.Track
	current *contracts.Track
	playLog map[string]*playRecord
}

// New builds an empty playlist; call Load or LoadData to fill it.
func New(cfg Config) *Playlist {
	return &Playlist{
		log:      cfg.Logger.Group("Playlist"),
		mediaDir: cfg.MediaDir,
		playLog:  make(map[string]*playRecord),
	}
}

// Load reads the track catalog from a JSON file. Disabled tracks are
// filtered out.
func (p *Playlist) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read playlist %s: %w", path, err)
	}
	return p.LoadData(data)
}

// LoadData parses a JSON array of tracks, replacing the current catalog.
func (p *Playlist) LoadData(data []byte) error {
	var all []contracts.Track
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("parse playlist: %w", err)
	}

	tracks := all[:0]
	for _, t := range all {
		if t.Disabled {
			continue
		}
		tracks = append(tracks, t)
	}

	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()

	p.log.Info("Playlist loaded", p.log.Field().Int("tracks", len(tracks)))
	return nil
}

// Tracks returns a copy of the enabled tracks in catalog order.
func (p *Playlist) Tracks() []contracts.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.Track(nil), p.tracks...)
}

// GetTrack finds a track by exact name, case-insensitively.
func (p *Playlist) GetTrack(name string) (contracts.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tracks {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return contracts.Track{}, false
}

// FindTrack resolves a listener's free-form request: a catalog position
// (1-based) or a substring of the name or artist.
func (p *Playlist) FindTrack(query string) (contracts.Track, bool) {
	query = strings.TrimSpace(query)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n, err := strconv.Atoi(query); err == nil {
		if n < 1 || n > len(p.tracks) {
			return contracts.Track{}, false
		}
		return p.tracks[n-1], true
	}

	q := strings.ToLower(query)
	for _, t := range p.tracks {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) {
			return t, true
		}
	}
	return contracts.Track{}, false
}

// GetFilePath resolves a track's media file. Audio prefers mp3 over wav; the
// boolean reports whether a file exists on disk.
func (p *Playlist) GetFilePath(track contracts.Track, kind contracts.FileKind) (string, bool) {
	var candidates []string
	switch kind {
	case contracts.AudioFile:
		candidates = []string{track.File + ".mp3", track.File + ".wav"}
	case contracts.MidiFile:
		candidates = []string{track.File + ".mid"}
	}
	for _, name := range candidates {
		path := filepath.Join(p.mediaDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// SetCurrentTrack marks the playing track and records the play.
func (p *Playlist) SetCurrentTrack(track contracts.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = &track
	rec := p.playLog[track.Name]
	if rec == nil {
		rec = &playRecord{}
		p.playLog[track.Name] = rec
	}
	rec.lastPlayed = time.Now()
	rec.plays++
}

// ClearCurrentTrack removes the playing marker.
func (p *Playlist) ClearCurrentTrack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

// CurrentTrack returns the playing track, if any.
func (p *Playlist) CurrentTrack() (contracts.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return contracts.Track{}, false
	}
	return *p.current, true
}

// CanPlayTrack reports whether a track sits outside its cooldown window, so
// repeat requests do not monopolize the show.
func (p *Playlist) CanPlayTrack(name string, cooldown time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.playLog[name]
	if !ok {
		return true
	}
	return time.Since(rec.lastPlayed) >= cooldown
}

// PlayCount returns how many times a track was marked current.
func (p *Playlist) PlayCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.playLog[name]
	if !ok {
		return 0
	}
	return rec.plays
}

// MenuText renders the numbered catalog for text-message replies.
func (p *Playlist) MenuText() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	for i, t := range p.tracks {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.Artist, t.Name)
	}
	return b.String()
}
