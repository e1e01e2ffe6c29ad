package contracts

import "io"

// PlayerEventKind discriminates the events a sequencer emits.
type PlayerEventKind int

const (
	// PlayerNoteOn is a filtered note-on, decorated with dimmer data when the
	// note number is dimmable.
	PlayerNoteOn PlayerEventKind = iota
	// PlayerNoteOff is a filtered note-off. Raw note-ons with velocity 0 are
	// reported as note-offs, per MIDI convention.
	PlayerNoteOff
	// PlayerEndOfFile fires when the sequence finishes and looping is off.
	PlayerEndOfFile
)

// PlayerEvent is the tagged union delivered to the sequencer's handler.
type PlayerEvent struct {
	Kind     PlayerEventKind
	Note     string
	Number   uint8
	Velocity uint8
	Tick     int64
	// Dimmable note-ons carry the precomputed sounding duration and the
	// other note names starting at the same tick with the same duration.
	Dimmable  bool
	Length    int
	SameNotes []string
}

// AudioEventKind discriminates the events an audio stream reports.
type AudioEventKind int

const (
	// AudioTime is a periodic progress report from the decoder.
	AudioTime AudioEventKind = iota
	// AudioError is a terminal decoder failure (spawn or runtime).
	AudioError
)

// AudioEvent is the tagged union delivered by an audio stream's handler.
type AudioEvent struct {
	Kind     AudioEventKind
	Time     float64
	Duration float64
	Err      error
}

// PlayOptions selects the region and format of the audio to decode.
type PlayOptions struct {
	// Start trims the given number of seconds from the front.
	Start float64
	// End, when non-zero, stops decoding at the given position in seconds.
	End float64
	// FileType is the encoded format, "mp3" or "wav".
	FileType string
}

// AudioStream plays back the encoded audio bytes written to it and reports
// progress through the handler supplied at construction. Close waits for the
// backend to finish; Destroy tears it down immediately.
type AudioStream interface {
	io.WriteCloser
	Destroy() error
}

// AudioStreamFactory builds an audio stream for one playback region. The
// coordinator rebuilds streams across pause/seek, so construction must be
// cheap until the first write.
type AudioStreamFactory func(opts PlayOptions, handler func(AudioEvent)) (AudioStream, error)
