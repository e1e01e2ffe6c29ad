// Package sequencer drives tick-based MIDI playback: it builds the tempo and
// dimmer maps for a loaded file and emits filtered, decorated note events.
package sequencer

import (
	"math"
)

// seekEarlyBiasTicks shifts every time->tick conversion one tick early so a
// note starting exactly at the target tick still fires after a seek. Kept
// for behavioral parity; may be revisited as a rounding artifact.
const seekEarlyBiasTicks = 1

// TempoChange is a raw tempo event extracted from track 0 of a MIDI file.
type TempoChange struct {
	Tick int64
	BPM  float64
}

// TempoRange covers the ticks from StartTick until the next range. Within a
// range, elapsed time is linear in ticks at MsPerTick.
type TempoRange struct {
	StartTick   int64
	StartTimeMs float64
	MsPerTick   float64
	BPM         float64
}

// TempoMap is the sorted range table for one loaded file. Built once per
// load, immutable after construction.
type TempoMap struct {
	ranges   []TempoRange
	division uint16
}

// BuildTempoMap converts tempo-change events into cumulative ranges. When
// the first change occurs after tick 0, a leading range using the file's
// default tempo is synthesized.
func BuildTempoMap(changes []TempoChange, division uint16, defaultBPM float64) *TempoMap {
	if division == 0 {
		division = 480
	}
	if defaultBPM == 0 {
		defaultBPM = 120
	}

	if len(changes) == 0 || changes[0].Tick > 0 {
		changes = append([]TempoChange{{Tick: 0, BPM: defaultBPM}}, changes...)
	}

	ranges := make([]TempoRange, 0, len(changes))
	for i, ch := range changes {
		r := TempoRange{
			StartTick: ch.Tick,
			MsPerTick: msPerTick(division, ch.BPM),
			BPM:       ch.BPM,
		}
		if i > 0 {
			prev := ranges[i-1]
			r.StartTimeMs = prev.StartTimeMs + prev.MsPerTick*float64(ch.Tick-prev.StartTick)
		}
		ranges = append(ranges, r)
	}

	return &TempoMap{ranges: ranges, division: division}
}

// Ranges returns the range table in tick order.
func (m *TempoMap) Ranges() []TempoRange {
	return m.ranges
}

// Division returns the file's ticks per quarter note.
func (m *TempoMap) Division() uint16 {
	return m.division
}

// TickForTime converts a playback position in seconds to the tick the
// player should jump to, applying the early-trigger bias. Positions before
// the first range resolve to tick 0.
func (m *TempoMap) TickForTime(seconds float64) int64 {
	r, ok := m.rangeBeforeTime(seconds)
	if !ok {
		return 0
	}

	msWithin := seconds*1000 - r.StartTimeMs
	// msWithin / MsPerTick, in multiplication form so constant-tempo
	// positions resolve exactly.
	ticksWithin := int64(math.Floor(msWithin * r.BPM * float64(m.division) / 60000))
	return ticksWithin + r.StartTick - seekEarlyBiasTicks
}

// RangeForTime returns the tempo range active at the given position, used to
// restore the player tempo after a tick jump. The second return is false
// when the position precedes the first range.
func (m *TempoMap) RangeForTime(seconds float64) (TempoRange, bool) {
	return m.rangeBeforeTime(seconds)
}

// RangeAtTick returns the tempo range governing a note that starts at the
// given tick. The reverse search is strict, falling back to the first range
// for notes at tick 0.
func (m *TempoMap) RangeAtTick(tick int64) TempoRange {
	for i := len(m.ranges) - 1; i >= 0; i-- {
		if m.ranges[i].StartTick < tick {
			return m.ranges[i]
		}
	}
	return m.ranges[0]
}

func (m *TempoMap) rangeBeforeTime(seconds float64) (TempoRange, bool) {
	ms := seconds * 1000
	for i := len(m.ranges) - 1; i >= 0; i-- {
		if ms > m.ranges[i].StartTimeMs {
			return m.ranges[i], true
		}
	}
	return TempoRange{}, false
}

func msPerTick(division uint16, bpm float64) float64 {
	return 60000 / (bpm * float64(division))
}
