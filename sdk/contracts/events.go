package contracts

// IOEvent names an event on the real-time broadcast channel.
type IOEvent string

const (
	TrackLoadEvent   IOEvent = "track:load"
	TrackStartEvent  IOEvent = "track:start"
	TrackEndEvent    IOEvent = "track:end"
	TrackPauseEvent  IOEvent = "track:pause"
	TrackResumeEvent IOEvent = "track:resume"
	TrackTimeEvent   IOEvent = "track:time"
	NoteOnEvent      IOEvent = "note:on"
	NoteOffEvent     IOEvent = "note:off"
	MapNotesEvent    IOEvent = "map-notes"
	MidiLoadedEvent  IOEvent = "midi:file-loaded"
	MidiEndEvent     IOEvent = "midi:file-end"
)

// Message is a broadcast payload. Each IOEvent has exactly one concrete
// message type, so subscribers can switch on the closed set of variants
// instead of re-parsing string-keyed payloads.
type Message interface {
	Event() IOEvent
}

// TrackLoadMessage is the pre-roll announcement, repeated a configurable
// number of times so slow clients catch at least one.
type TrackLoadMessage struct {
	TrackName string
}

func (TrackLoadMessage) Event() IOEvent { return TrackLoadEvent }

// MapNotesMessage tells a client which notes it renders. The numeric list is
// comma-separated and trailing-comma-terminated, which keeps the parser on
// embedded clients a plain split-on-comma loop.
type MapNotesMessage struct {
	ClientID      string
	Notes         string
	NoteNumbers   string
	DimmableNotes string
	Primary       bool
}

func (MapNotesMessage) Event() IOEvent { return MapNotesEvent }

// TrackStartMessage fires when playback actually begins: immediately for
// MIDI-only tracks, at the audio pipeline's first time report otherwise.
type TrackStartMessage struct {
	TrackFile string
}

func (TrackStartMessage) Event() IOEvent { return TrackStartEvent }

// TrackTimeMessage relays the audio decoder's progress, in seconds.
type TrackTimeMessage struct {
	Time     float64
	Duration float64
}

func (TrackTimeMessage) Event() IOEvent { return TrackTimeEvent }

type TrackPauseMessage struct{}

func (TrackPauseMessage) Event() IOEvent { return TrackPauseEvent }

type TrackResumeMessage struct{}

func (TrackResumeMessage) Event() IOEvent { return TrackResumeEvent }

// TrackEndMessage fires once per playback, on natural end, stream error or
// explicit stop.
type TrackEndMessage struct {
	TrackName string
}

func (TrackEndMessage) Event() IOEvent { return TrackEndEvent }

// NoteOnMessage carries a filtered MIDI note-on. Length, SameNotes and
// Velocity are only populated for dimmable notes.
type NoteOnMessage struct {
	Note      string
	Number    uint8
	Length    int
	SameNotes []string
	Velocity  uint8
	Dimmable  bool
}

func (NoteOnMessage) Event() IOEvent { return NoteOnEvent }

type NoteOffMessage struct {
	Note   string
	Number uint8
}

func (NoteOffMessage) Event() IOEvent { return NoteOffEvent }

type MidiLoadedMessage struct{}

func (MidiLoadedMessage) Event() IOEvent { return MidiLoadedEvent }

type MidiEndMessage struct{}

func (MidiEndMessage) Event() IOEvent { return MidiEndEvent }

// Broadcaster fans a message out to every connected client. Delivery is
// fire-and-forget; the transport is assumed reliable and ordered per
// connection.
type Broadcaster interface {
	Broadcast(msg Message)
}
