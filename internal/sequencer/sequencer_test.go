package sequencer

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/leandrodaf/lightshow/internal/logger"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// fastTrackBytes synthesizes a single-track file at 600 BPM (~0.21ms/tick)
// so playback tests finish quickly:
//
//	tick 0:   C5 on (dimmable), D4 on, E4 on (disabled)
//	tick 240: F4 on with velocity 0, D4 off, E4 off
//	tick 480: C5 off
func fastTrackBytes(t *testing.T) []byte {
	t.Helper()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)

	var track smf.Track
	track.Add(0, smf.MetaTempo(600))
	track.Add(0, midi.NoteOn(0, 72, 100)) // C5
	track.Add(0, midi.NoteOn(0, 62, 80))  // D4
	track.Add(0, midi.NoteOn(0, 64, 80))  // E4
	track.Add(240, midi.NoteOn(0, 65, 0)) // F4, implicit off
	track.Add(0, midi.NoteOff(0, 62))
	track.Add(0, midi.NoteOff(0, 64))
	track.Add(240, midi.NoteOff(0, 72))
	track.Close(0)
	if err := sm.Add(track); err != nil {
		t.Fatalf("add track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []contracts.PlayerEvent
	done   chan struct{}
	once   sync.Once
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{done: make(chan struct{})}
}

func (r *eventRecorder) handle(ev contracts.PlayerEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Kind == contracts.PlayerEndOfFile {
		r.once.Do(func() { close(r.done) })
	}
}

func (r *eventRecorder) snapshot() []contracts.PlayerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contracts.PlayerEvent(nil), r.events...)
}

func testLogger() contracts.Logger {
	l := logger.NewZapLogger()
	l.SetLevel(contracts.ErrorLevel)
	return l
}

func TestSequencerEmitsFilteredEvents(t *testing.T) {
	rec := newEventRecorder()
	seq := New(Config{
		Logger:           testLogger(),
		Handler:          rec.handle,
		DisabledNotes:    []string{"E4"},
		DimmableNotes:    []string{"C5"},
		VelocityOverride: 90,
	})

	if err := seq.LoadData(fastTrackBytes(t)); err != nil {
		t.Fatalf("load: %v", err)
	}

	seq.Play(false)
	select {
	case <-rec.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for end of file")
	}

	var sawDimmable, sawPlain, sawImplicitOff bool
	var eofCount int
	for _, ev := range rec.snapshot() {
		switch {
		case ev.Kind == contracts.PlayerEndOfFile:
			eofCount++
		case ev.Note == "E4":
			t.Errorf("disabled note emitted: %+v", ev)
		case ev.Kind == contracts.PlayerNoteOn && ev.Note == "C5":
			sawDimmable = true
			if !ev.Dimmable {
				t.Error("C5 note-on missing dimmable decoration")
			}
			// 480 ticks at 600 BPM, division 480: floor(0.2083 * 480).
			if ev.Length != 100 {
				t.Errorf("C5 length = %d, want 100", ev.Length)
			}
			if ev.Velocity != 90 {
				t.Errorf("C5 velocity = %d, want override 90", ev.Velocity)
			}
		case ev.Kind == contracts.PlayerNoteOn && ev.Note == "D4":
			sawPlain = true
			if ev.Dimmable || ev.Length != 0 {
				t.Errorf("non-dimmable note decorated: %+v", ev)
			}
			if ev.Velocity != 80 {
				t.Errorf("D4 velocity = %d, want raw 80", ev.Velocity)
			}
		case ev.Note == "F4":
			if ev.Kind != contracts.PlayerNoteOff {
				t.Errorf("velocity-0 note-on emitted as %v, want note-off", ev.Kind)
			}
			sawImplicitOff = true
		}
	}

	if !sawDimmable {
		t.Error("no dimmable C5 note-on observed")
	}
	if !sawPlain {
		t.Error("no plain D4 note-on observed")
	}
	if !sawImplicitOff {
		t.Error("no implicit note-off for velocity-0 F4 observed")
	}
	if eofCount != 1 {
		t.Errorf("end-of-file fired %d times, want 1", eofCount)
	}
}

func TestSequencerLoopRestarts(t *testing.T) {
	rec := newEventRecorder()
	seq := New(Config{
		Logger:        testLogger(),
		Handler:       rec.handle,
		DimmableNotes: []string{"C5"},
	})

	if err := seq.LoadData(fastTrackBytes(t)); err != nil {
		t.Fatalf("load: %v", err)
	}

	seq.Play(true)
	// One pass is ~100ms plus the fixed 500ms restart delay; wait long
	// enough to observe a second pass.
	time.Sleep(1200 * time.Millisecond)
	seq.Stop()

	var starts, eofs int
	for _, ev := range rec.snapshot() {
		if ev.Kind == contracts.PlayerNoteOn && ev.Note == "C5" {
			starts++
		}
		if ev.Kind == contracts.PlayerEndOfFile {
			eofs++
		}
	}
	if starts < 2 {
		t.Errorf("expected a loop restart, saw %d C5 note-ons", starts)
	}
	if eofs != 0 {
		t.Errorf("looping playback must not raise end-of-file, got %d", eofs)
	}
}

func TestSequencerSeekRestoresTempo(t *testing.T) {
	rec := newEventRecorder()
	seq := New(Config{Logger: testLogger(), Handler: rec.handle})

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)
	var track smf.Track
	track.Add(0, smf.MetaTempo(120))
	track.Add(960, smf.MetaTempo(60))
	track.Add(3840, midi.NoteOn(0, 60, 100))
	track.Add(480, midi.NoteOff(0, 60))
	track.Close(0)
	if err := sm.Add(track); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	if err := seq.LoadData(buf.Bytes()); err != nil {
		t.Fatalf("load: %v", err)
	}

	// 2.513s is past the 1s tempo change: 960 ticks, then 1513ms at 60 BPM
	// (2.0833ms/tick) = 726 more ticks, minus the one-tick bias.
	seq.Seek(2.513)

	if got := seq.player.lastTick; got != 1685 {
		t.Errorf("seek landed on tick %d, want 1685", got)
	}
	want := msPerTick(480, 60)
	if got := seq.player.msPerTick; got != want {
		t.Errorf("player tempo %f after seek, want %f restored", got, want)
	}
}

func TestSequencerLoadFailureLeavesIdle(t *testing.T) {
	seq := New(Config{Logger: testLogger(), Handler: func(contracts.PlayerEvent) {}})

	if err := seq.LoadData([]byte("not a midi file")); err == nil {
		t.Fatal("expected load error for malformed data")
	}
	if seq.state != StateIdle {
		t.Errorf("state = %v after failed load, want idle", seq.state)
	}
	// Safe to retry.
	if err := seq.LoadData(fastTrackBytes(t)); err != nil {
		t.Errorf("retry after failed load: %v", err)
	}
}
