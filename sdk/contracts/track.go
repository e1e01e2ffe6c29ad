package contracts

// FileKind identifies the media formats a track may resolve to.
type FileKind string

const (
	// AudioFile selects the encoded audio rendition of a track.
	AudioFile FileKind = "audio"
	// MidiFile selects the MIDI rendition of a track.
	MidiFile FileKind = "midi"
)

// NoteMapping assigns a lighting client the note names it renders, plus the
// subset whose sounding duration matters (brightness-capable fixtures).
type NoteMapping struct {
	Notes         []string
	DimmableNotes []string
	// Primary marks the client that renders the full arrangement.
	Primary bool
}

// Track is an immutable descriptor loaded from static configuration.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	// File is the stem shared by the track's audio and MIDI files.
	File     string `json:"file"`
	Disabled bool   `json:"disabled,omitempty"`
	// NoteMappings overrides the space defaults per client id.
	NoteMappings map[string]NoteMapping `json:"noteMappings,omitempty"`
	// VelocityOverride replaces the raw note-on velocity when non-zero.
	VelocityOverride uint8 `json:"velocityOverride,omitempty"`
	// Background tracks loop silently and never broadcast start/end.
	Background bool `json:"background,omitempty"`
}

// Playlist is the external track lookup collaborator consumed by the
// coordinator. Implementations own file resolution and current-track
// bookkeeping.
type Playlist interface {
	GetTrack(name string) (Track, bool)
	GetFilePath(track Track, kind FileKind) (string, bool)
	SetCurrentTrack(track Track)
	ClearCurrentTrack()
}

// SpaceRegistry exposes the connected fixture clients and their default note
// mappings, used during track load for clients the track does not map
// explicitly.
type SpaceRegistry interface {
	ConnectedClients() []string
	DefaultMapping(clientID string) (NoteMapping, bool)
}
