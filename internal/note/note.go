// Package note converts between MIDI note numbers and the flat-based note
// names used in track configuration and client mappings.
package note

import "strconv"

var names = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

var indexByName = func() map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}()

// DefaultDimmableNotes is the stock set of notes driving brightness-capable
// fixtures, used when a track or space supplies no mapping of its own.
var DefaultDimmableNotes = []string{
	"C5", "E5", "F5", "Gb5", "G5", "A5", "B5",
	"C6", "E6", "F6", "Gb6", "G6", "A6", "B6",
}

// Name returns the flat-based name for a MIDI note number, e.g. 61 -> "Db4".
func Name(number uint8) string {
	octave := int(number)/12 - 1
	return names[int(number)%12] + strconv.Itoa(octave)
}

// Number returns the MIDI note number for a name produced by Name. The
// second return is false for names that do not parse.
func Number(name string) (uint8, bool) {
	split := 1
	if len(name) > 1 && name[1] == 'b' {
		split = 2
	}
	if len(name) <= split {
		return 0, false
	}
	idx, ok := indexByName[name[:split]]
	if !ok {
		return 0, false
	}
	octave, err := strconv.Atoi(name[split:])
	if err != nil {
		return 0, false
	}
	n := (octave+1)*12 + idx
	if n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}

// Numbers maps a list of note names, skipping any that do not parse.
func Numbers(noteNames []string) []uint8 {
	out := make([]uint8, 0, len(noteNames))
	for _, n := range noteNames {
		if num, ok := Number(n); ok {
			out = append(out, num)
		}
	}
	return out
}
