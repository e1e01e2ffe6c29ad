package sequencer

import (
	"math"
	"sort"

	"github.com/leandrodaf/lightshow/internal/note"
)

// DimmerNote is a resolved dimmable note-on: its sounding duration and the
// other notes that start at the same tick with the same duration, so
// simultaneous fixtures can be driven from one event.
type DimmerNote struct {
	Tick        int64
	Number      uint8
	Name        string
	Velocity    uint8
	Length      int
	SameNotes   []string
	SameNumbers []uint8
}

// NoteSpan is a raw dimmable note event in file order, input to the
// resolver.
type NoteSpan struct {
	Tick     int64
	Number   uint8
	Name     string
	Velocity uint8
	On       bool
}

// DimmerMap indexes resolved dimmer notes by (tick, note number). Built once
// per loaded file, immutable after construction.
type DimmerMap struct {
	notes []DimmerNote
	index map[dimmerKey]int
}

type dimmerKey struct {
	tick   int64
	number uint8
}

// BuildDimmerMap pairs dimmable note-on/note-off events, computes each
// note's sounding duration from the tempo range active at its start tick,
// and folds simultaneous same-duration notes into one canonical entry.
// Note-offs with no matching note-on are dropped.
func BuildDimmerMap(events []NoteSpan, tm *TempoMap) *DimmerMap {
	var pending []*DimmerNote

	for _, ev := range events {
		if ev.On {
			// Most-recent-first, so repeated notes pair with the nearest on.
			pending = append([]*DimmerNote{{
				Tick:     ev.Tick,
				Number:   ev.Number,
				Name:     ev.Name,
				Velocity: ev.Velocity,
				Length:   -1,
			}}, pending...)
			continue
		}

		for _, p := range pending {
			if p.Name == ev.Name && p.Length < 0 {
				r := tm.RangeAtTick(p.Tick)
				p.Length = int(math.Floor(r.MsPerTick * float64(ev.Tick-p.Tick)))
				break
			}
		}
	}

	resolved := make([]DimmerNote, 0, len(pending))
	for _, p := range pending {
		if p.Length >= 0 {
			resolved = append(resolved, *p)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		return a.Number < b.Number
	})

	consumed := make([]bool, len(resolved))
	for i := range resolved {
		if consumed[i] {
			continue
		}
		for j := range resolved {
			if j == i || consumed[j] {
				continue
			}
			other := resolved[j]
			if other.Tick == resolved[i].Tick && other.Length == resolved[i].Length &&
				other.Name != resolved[i].Name {
				resolved[i].SameNotes = append(resolved[i].SameNotes, other.Name)
				consumed[j] = true
			}
		}
		resolved[i].SameNumbers = note.Numbers(resolved[i].SameNotes)
	}

	m := &DimmerMap{index: make(map[dimmerKey]int)}
	for i, d := range resolved {
		if consumed[i] {
			continue
		}
		m.index[dimmerKey{d.Tick, d.Number}] = len(m.notes)
		m.notes = append(m.notes, d)
	}
	return m
}

// Lookup returns the canonical dimmer entry for a note-on, or false when the
// note was folded into another entry or never paired.
func (m *DimmerMap) Lookup(tick int64, number uint8) (DimmerNote, bool) {
	i, ok := m.index[dimmerKey{tick, number}]
	if !ok {
		return DimmerNote{}, false
	}
	return m.notes[i], true
}

// Notes returns the canonical entries in (tick, length, number) order.
func (m *DimmerMap) Notes() []DimmerNote {
	return m.notes
}
