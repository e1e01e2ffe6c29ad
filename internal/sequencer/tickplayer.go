package sequencer

import (
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// tickEvent is a MIDI message at an absolute tick, merged across tracks.
type tickEvent struct {
	tick int64
	msg  smf.Message
}

// tickPlayer schedules tick events against the wall clock at the current
// tempo. It knows nothing about note filtering; the sequencer decorates and
// forwards what the player emits.
//
// A tick jump resets the engine tempo to the file default, matching the
// behavior of tick players that re-derive tempo from the event stream;
// callers must restore the tempo for the target position explicitly.
type tickPlayer struct {
	mu         sync.Mutex
	events     []tickEvent
	division   uint16
	defaultBPM float64

	msPerTick float64
	pos       int
	lastTick  int64
	playing   bool
	stopCh    chan struct{}

	onEvent func(ev tickEvent)
	onEOF   func()
}

func newTickPlayer(s *smf.SMF, onEvent func(tickEvent), onEOF func()) *tickPlayer {
	division := uint16(480)
	if metric, ok := s.TimeFormat.(smf.MetricTicks); ok {
		division = uint16(metric)
	}

	var events []tickEvent
	for _, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			events = append(events, tickEvent{tick: abs, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	defaultBPM := 120.0
	for _, ev := range events {
		var bpm float64
		if ev.msg.GetMetaTempo(&bpm) {
			defaultBPM = bpm
			break
		}
	}

	return &tickPlayer{
		events:     events,
		division:   division,
		defaultBPM: defaultBPM,
		msPerTick:  msPerTick(division, defaultBPM),
		onEvent:    onEvent,
		onEOF:      onEOF,
	}
}

// play starts or resumes scheduling from the current position.
func (p *tickPlayer) play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	go p.run(stopCh)
}

// pause halts scheduling and keeps the current position.
func (p *tickPlayer) pause() {
	p.mu.Lock()
	p.halt()
	p.mu.Unlock()
}

// stop halts scheduling and rewinds to the beginning.
func (p *tickPlayer) stop() {
	p.mu.Lock()
	p.halt()
	p.pos = 0
	p.lastTick = 0
	p.msPerTick = msPerTick(p.division, p.defaultBPM)
	p.mu.Unlock()
}

// skipToTick jumps to the first event at or after the given tick and resets
// the tempo to the file default. If the player is running it keeps running
// from the new position.
func (p *tickPlayer) skipToTick(tick int64) {
	if tick < 0 {
		tick = 0
	}

	p.mu.Lock()
	wasPlaying := p.playing
	p.halt()
	p.pos = sort.Search(len(p.events), func(i int) bool {
		return p.events[i].tick >= tick
	})
	p.lastTick = tick
	p.msPerTick = msPerTick(p.division, p.defaultBPM)
	p.mu.Unlock()

	if wasPlaying {
		p.play()
	}
}

// setTempo overrides the current tempo, typically right after a tick jump.
func (p *tickPlayer) setTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	p.mu.Lock()
	p.msPerTick = msPerTick(p.division, bpm)
	p.mu.Unlock()
}

func (p *tickPlayer) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// halt must be called with the mutex held.
func (p *tickPlayer) halt() {
	if !p.playing {
		return
	}
	p.playing = false
	close(p.stopCh)
	p.stopCh = nil
}

func (p *tickPlayer) run(stopCh chan struct{}) {
	for {
		p.mu.Lock()
		if !p.playing || p.stopCh != stopCh {
			p.mu.Unlock()
			return
		}
		if p.pos >= len(p.events) {
			p.playing = false
			p.stopCh = nil
			p.pos = 0
			p.lastTick = 0
			p.mu.Unlock()
			p.onEOF()
			return
		}

		ev := p.events[p.pos]
		wait := time.Duration(float64(ev.tick-p.lastTick) * p.msPerTick * float64(time.Millisecond))
		p.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-stopCh:
				timer.Stop()
				return
			}
		}

		p.mu.Lock()
		if !p.playing || p.stopCh != stopCh {
			p.mu.Unlock()
			return
		}
		p.pos++
		p.lastTick = ev.tick
		var bpm float64
		if ev.msg.GetMetaTempo(&bpm) {
			p.msPerTick = msPerTick(p.division, bpm)
		}
		p.mu.Unlock()

		p.onEvent(ev)
	}
}
