package contracts

import "errors"

var (
	// ErrNoTrackFiles means neither an audio nor a MIDI file could be
	// resolved for the requested track.
	ErrNoTrackFiles = errors.New("track has no playable files")

	// ErrNoTrackLoaded means a playback operation ran without a loaded
	// session.
	ErrNoTrackLoaded = errors.New("no track loaded")
)
