package sequencer

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/leandrodaf/lightshow/internal/note"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// State is the sequencer lifecycle position.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateEnded
)

// loopRestartDelay is the gap between a looping track's end and its restart.
const loopRestartDelay = 500 * time.Millisecond

// projectDefaultBPM is the tempo assumed before the file's first tempo
// change, for files whose first change does not sit at tick 0.
const projectDefaultBPM = 120.0

// Config carries the per-track sequencer settings.
type Config struct {
	Logger contracts.Logger
	// Handler receives every filtered player event. Must be set before Load.
	Handler func(contracts.PlayerEvent)
	// DisabledNotes are note names that never emit.
	DisabledNotes []string
	// DimmableNotes are note names whose durations are resolved up front.
	DimmableNotes []string
	// VelocityOverride replaces the raw velocity on dimmable note-ons.
	VelocityOverride uint8
}

// Sequencer wraps a tick player with the tempo and dimmer maps for one
// loaded MIDI file and emits normalized note and lifecycle events.
type Sequencer struct {
	mu       sync.Mutex
	log      contracts.Logger
	handler  func(contracts.PlayerEvent)
	disabled map[string]struct{}
	dimmable map[uint8]struct{}
	override uint8

	state     State
	loop      bool
	player    *tickPlayer
	tempoMap  *TempoMap
	dimmerMap *DimmerMap
	loopTimer *time.Timer
}

// New builds an idle sequencer; call Load before Play.
func New(cfg Config) *Sequencer {
	s := &Sequencer{
		log:      cfg.Logger.Group("Midi"),
		handler:  cfg.Handler,
		disabled: make(map[string]struct{}, len(cfg.DisabledNotes)),
		dimmable: make(map[uint8]struct{}, len(cfg.DimmableNotes)),
		override: cfg.VelocityOverride,
	}
	for _, n := range cfg.DisabledNotes {
		s.disabled[n] = struct{}{}
	}
	for _, n := range note.Numbers(cfg.DimmableNotes) {
		s.dimmable[n] = struct{}{}
	}
	return s
}

// Load parses a MIDI file and builds the tempo and dimmer maps. On failure
// the sequencer stays Idle and is safe to retry.
func (s *Sequencer) Load(file string) error {
	parsed, err := smf.ReadFile(file)
	if err != nil {
		return fmt.Errorf("load midi file %s: %w", file, err)
	}
	return s.load(parsed)
}

// LoadData parses an in-memory MIDI file, for tracks shipped over the wire.
func (s *Sequencer) LoadData(data []byte) error {
	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load midi data: %w", err)
	}
	return s.load(parsed)
}

func (s *Sequencer) load(parsed *smf.SMF) error {
	if len(parsed.Tracks) == 0 {
		return fmt.Errorf("load midi: file has no tracks")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player := newTickPlayer(parsed, s.handleEvent, s.handleEOF)
	s.tempoMap = BuildTempoMap(tempoChanges(parsed.Tracks[0]), player.division, projectDefaultBPM)
	s.dimmerMap = BuildDimmerMap(s.dimmableSpans(player.events), s.tempoMap)
	s.player = player
	s.state = StateLoaded

	s.log.Debug("Midi file loaded", s.log.Field().Int("events", len(player.events)))
	return nil
}

// Play starts playback. With loop set, the sequence restarts after a short
// delay on every end-of-file instead of reporting it.
func (s *Sequencer) Play(loop bool) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.loop = loop
	s.state = StatePlaying
	player := s.player
	s.mu.Unlock()

	player.play()
}

// Pause halts playback keeping the current position.
func (s *Sequencer) Pause() {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.state = StatePaused
	player := s.player
	s.mu.Unlock()

	player.pause()
}

// Resume continues playback from the paused position.
func (s *Sequencer) Resume() {
	s.mu.Lock()
	if s.state != StatePaused && s.state != StateLoaded {
		s.mu.Unlock()
		return
	}
	s.state = StatePlaying
	player := s.player
	s.mu.Unlock()

	player.play()
}

// Stop halts playback and rewinds. Any pending loop restart is cancelled.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	if s.loopTimer != nil {
		s.loopTimer.Stop()
		s.loopTimer = nil
	}
	s.loop = false
	s.state = StateLoaded
	player := s.player
	s.mu.Unlock()

	player.stop()
}

// Playing reports whether the tick player is running.
func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()
	return player != nil && player.isPlaying()
}

// Seek jumps to the given position. Tick jumps reset the player tempo, so
// the tempo of the target range is re-applied explicitly.
func (s *Sequencer) Seek(seconds float64) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	player := s.player
	tick := s.tempoMap.TickForTime(seconds)
	r, ok := s.tempoMap.RangeForTime(seconds)
	s.mu.Unlock()

	s.log.Debug("Seeking midi", s.log.Field().Int64("tick", tick))
	player.skipToTick(tick)
	if ok {
		player.setTempo(r.BPM)
	}
}

// TempoMap exposes the loaded tempo table; nil before a successful load.
func (s *Sequencer) TempoMap() *TempoMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempoMap
}

// DimmerMap exposes the resolved dimmer entries; nil before a successful
// load.
func (s *Sequencer) DimmerMap() *DimmerMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimmerMap
}

func (s *Sequencer) handleEvent(ev tickEvent) {
	var ch, key, vel uint8
	var on bool
	switch {
	case ev.msg.GetNoteOn(&ch, &key, &vel):
		on = vel > 0
	case ev.msg.GetNoteOff(&ch, &key, &vel):
		on = false
	default:
		return
	}

	name := note.Name(key)
	if _, off := s.disabled[name]; off {
		return
	}

	if !on {
		s.handler(contracts.PlayerEvent{
			Kind:   contracts.PlayerNoteOff,
			Note:   name,
			Number: key,
			Tick:   ev.tick,
		})
		return
	}

	if _, dim := s.dimmable[key]; dim {
		entry, found := s.dimmerMap.Lookup(ev.tick, key)
		if !found {
			// Folded into a canonical entry or never paired.
			return
		}
		velocity := vel
		if s.override != 0 {
			velocity = s.override
		}
		s.handler(contracts.PlayerEvent{
			Kind:      contracts.PlayerNoteOn,
			Note:      name,
			Number:    key,
			Velocity:  velocity,
			Tick:      ev.tick,
			Dimmable:  true,
			Length:    entry.Length,
			SameNotes: entry.SameNotes,
		})
		return
	}

	s.handler(contracts.PlayerEvent{
		Kind:     contracts.PlayerNoteOn,
		Note:     name,
		Number:   key,
		Velocity: vel,
		Tick:     ev.tick,
	})
}

func (s *Sequencer) handleEOF() {
	s.mu.Lock()
	if s.loop {
		player := s.player
		s.loopTimer = time.AfterFunc(loopRestartDelay, func() {
			s.mu.Lock()
			restart := s.loop && s.state == StatePlaying
			s.mu.Unlock()
			if restart {
				s.log.Info("Looping MIDI track")
				player.play()
			}
		})
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	s.mu.Unlock()

	s.handler(contracts.PlayerEvent{Kind: contracts.PlayerEndOfFile})
}

// tempoChanges extracts the tempo events of the tempo track with absolute
// ticks.
func tempoChanges(track smf.Track) []TempoChange {
	var changes []TempoChange
	var abs int64
	for _, ev := range track {
		abs += int64(ev.Delta)
		var bpm float64
		if ev.Message.GetMetaTempo(&bpm) {
			changes = append(changes, TempoChange{Tick: abs, BPM: bpm})
		}
	}
	return changes
}

// dimmableSpans filters the merged event list down to the dimmable note
// on/off spans feeding the dimmer resolver. Velocity-0 note-ons count as
// offs here as well.
func (s *Sequencer) dimmableSpans(events []tickEvent) []NoteSpan {
	var spans []NoteSpan
	for _, ev := range events {
		var ch, key, vel uint8
		var on bool
		switch {
		case ev.msg.GetNoteOn(&ch, &key, &vel):
			on = vel > 0
		case ev.msg.GetNoteOff(&ch, &key, &vel):
			on = false
		default:
			continue
		}
		if _, dim := s.dimmable[key]; !dim {
			continue
		}
		spans = append(spans, NoteSpan{
			Tick:     ev.tick,
			Number:   key,
			Name:     note.Name(key),
			Velocity: vel,
			On:       on,
		})
	}
	return spans
}
