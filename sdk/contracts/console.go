package contracts

// Console coordinates loading and playing one track at a time, keeping the
// MIDI note stream aligned with audio playback and broadcasting lifecycle
// events to the lighting clients.
type Console interface {
	// LoadTrack prepares a track, tearing down any previous session. Extra
	// disabled notes add to the configured set; kinds defaults to audio and
	// MIDI.
	LoadTrack(track Track, disabledNotes []string, kinds ...FileKind) error
	PlayTrack() error
	PauseTrack() error
	SeekTrack(seconds float64) error
	ResumeTrack(seconds float64) error
	// StopTrack ends playback and releases the active player binding. It is
	// a no-op while no player is bound.
	StopTrack() error

	LoadedTrack() (Track, bool)
	ActivePlayer() string
	// OnTrackEnd registers a listener fired on every track end, including
	// background tracks whose end is never broadcast.
	OnTrackEnd(fn func(Track))

	// Handle* are the inbound control operations, each carrying the calling
	// connection's id. The first play binds the caller; control from other
	// connections is ignored until stop or disconnect.
	HandlePlay(playerID string) error
	HandleSeek(playerID string, seconds float64) error
	HandlePause(playerID string) error
	HandleResume(playerID string) error
	HandleStop(playerID string) error
	HandleDisconnect(playerID string) error
}
