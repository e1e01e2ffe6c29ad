// Package console implements the track playback coordinator: it loads one
// track at a time, keeps the MIDI sequencer and the audio pipeline aligned
// and fans playback events out to the lighting clients.
package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/leandrodaf/lightshow/internal/note"
	"github.com/leandrodaf/lightshow/internal/sequencer"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// audioSeekLeadSeconds is added to the audio start position on seek; the
// decoder takes roughly that long to produce sound, and the sequencer only
// resumes at its first time report anyway.
const audioSeekLeadSeconds = 0.3

// session is one loaded track with its engines. A new load replaces the
// pointer, which gates callbacks from torn-down engines.
type session struct {
	track     contracts.Track
	audioPath string
	midiPath  string
	fileType  string

	seq   *sequencer.Sequencer
	audio *audioRun
	// pendingStart runs at the audio pipeline's first time report.
	pendingStart func()
	lastTime     float64
	ended        bool
}

// audioRun is one pipeline build; pause and seek discard it and build a new
// one.
type audioRun struct {
	stream    contracts.AudioStream
	file      *os.File
	cancelled atomic.Bool
}

func (r *audioRun) stop() error {
	r.cancelled.Store(true)
	var err error
	if r.file != nil {
		err = multierr.Append(err, r.file.Close())
	}
	return multierr.Append(err, r.stream.Destroy())
}

// Console coordinates track playback. All methods are safe for concurrent
// use.
type Console struct {
	log           contracts.Logger
	playlist      contracts.Playlist
	space         contracts.SpaceRegistry
	broadcaster   contracts.Broadcaster
	audioFactory  contracts.AudioStreamFactory
	announceCount int
	disabledNotes []string

	mu           sync.Mutex
	session      *session
	activePlayer string
	endListeners []func(contracts.Track)
}

// New builds a console from fully-populated options; defaults are the
// factory package's concern.
func New(opts contracts.ConsoleOptions) *Console {
	return &Console{
		log:           opts.Logger.Group("Console"),
		playlist:      opts.Playlist,
		space:         opts.Space,
		broadcaster:   opts.Broadcaster,
		audioFactory:  opts.AudioStreamFactory,
		announceCount: opts.LoadAnnounceCount,
		disabledNotes: opts.DisabledNotes,
	}
}

// OnTrackEnd registers an internal listener fired on every track end,
// including background tracks whose end is never broadcast.
func (c *Console) OnTrackEnd(fn func(contracts.Track)) {
	c.mu.Lock()
	c.endListeners = append(c.endListeners, fn)
	c.mu.Unlock()
}

// LoadTrack prepares a track for playback, tearing down any previous
// session first. Extra disabled notes add to the configured set; kinds
// defaults to both formats.
func (c *Console) LoadTrack(track contracts.Track, disabledNotes []string, kinds ...contracts.FileKind) error {
	if len(kinds) == 0 {
		kinds = []contracts.FileKind{contracts.AudioFile, contracts.MidiFile}
	}

	c.teardownSession()

	var audioPath, midiPath string
	for _, kind := range kinds {
		path, ok := c.playlist.GetFilePath(track, kind)
		if !ok {
			continue
		}
		switch kind {
		case contracts.AudioFile:
			audioPath = path
		case contracts.MidiFile:
			midiPath = path
		}
	}
	if audioPath == "" && midiPath == "" {
		return fmt.Errorf("load track %s: %w", track.Name, contracts.ErrNoTrackFiles)
	}

	for i := 0; i < c.announceCount; i++ {
		c.broadcast(contracts.TrackLoadMessage{TrackName: track.Name})
	}

	dimmable := c.mapClients(track)
	if len(dimmable) == 0 {
		dimmable = note.DefaultDimmableNotes
	}

	sess := &session{
		track:     track,
		audioPath: audioPath,
		midiPath:  midiPath,
		fileType:  strings.TrimPrefix(filepath.Ext(audioPath), "."),
	}

	if midiPath != "" {
		seq := sequencer.New(sequencer.Config{
			Logger:           c.log,
			Handler:          func(ev contracts.PlayerEvent) { c.playerEvent(sess, ev) },
			DisabledNotes:    append(append([]string(nil), c.disabledNotes...), disabledNotes...),
			DimmableNotes:    dimmable,
			VelocityOverride: track.VelocityOverride,
		})
		if err := seq.Load(midiPath); err != nil {
			return fmt.Errorf("load track %s: %w", track.Name, err)
		}
		sess.seq = seq
		c.broadcast(contracts.MidiLoadedMessage{})
	}

	c.playlist.SetCurrentTrack(track)

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.log.Info("Track loaded",
		c.log.Field().String("track", track.Name),
		c.log.Field().Bool("audio", audioPath != ""),
		c.log.Field().Bool("midi", midiPath != ""))
	return nil
}

// mapClients sends each connected client its note mapping and returns the
// union of dimmable note names across all mappings.
func (c *Console) mapClients(track contracts.Track) []string {
	if c.space == nil {
		return nil
	}

	var dimmable []string
	seen := make(map[string]struct{})
	for _, clientID := range c.space.ConnectedClients() {
		mapping, ok := track.NoteMappings[clientID]
		if !ok {
			mapping, ok = c.space.DefaultMapping(clientID)
			if !ok {
				continue
			}
		}
		c.broadcast(contracts.MapNotesMessage{
			ClientID:      clientID,
			Notes:         strings.Join(mapping.Notes, ","),
			NoteNumbers:   numbersCSV(mapping.Notes),
			DimmableNotes: strings.Join(mapping.DimmableNotes, ","),
			Primary:       mapping.Primary,
		})
		for _, n := range mapping.DimmableNotes {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			dimmable = append(dimmable, n)
		}
	}
	return dimmable
}

// numbersCSV renders note names as a trailing-comma-terminated numeric
// list; embedded clients parse it with a plain split loop.
func numbersCSV(names []string) string {
	var b strings.Builder
	for _, n := range note.Numbers(names) {
		b.WriteString(strconv.Itoa(int(n)))
		b.WriteByte(',')
	}
	return b.String()
}

// PlayTrack starts the loaded track. With audio present the sequencer and
// the start broadcast wait for the pipeline's first time report, so lights
// never run ahead of sound.
func (c *Console) PlayTrack() error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return contracts.ErrNoTrackLoaded
	}
	sess.ended = false
	background := sess.track.Background
	file := sess.track.File
	hasAudio := sess.audioPath != ""
	c.mu.Unlock()

	if !hasAudio {
		if !background {
			c.broadcast(contracts.TrackStartMessage{TrackFile: file})
		}
		if sess.seq != nil {
			sess.seq.Play(background)
		}
		return nil
	}

	return c.startAudio(sess, 0, func() {
		if !background {
			c.broadcast(contracts.TrackStartMessage{TrackFile: file})
		}
		if sess.seq != nil {
			sess.seq.Play(background)
		}
	})
}

// PauseTrack destroys the audio pipeline and pauses the sequencer; resume
// rebuilds the pipeline at the paused position.
func (c *Console) PauseTrack() error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return contracts.ErrNoTrackLoaded
	}
	run := sess.audio
	sess.audio = nil
	sess.pendingStart = nil
	background := sess.track.Background
	c.mu.Unlock()

	var err error
	if run != nil {
		err = run.stop()
	}
	if sess.seq != nil {
		sess.seq.Pause()
	}
	if !background {
		c.broadcast(contracts.TrackPauseMessage{})
	}
	return err
}

// SeekTrack jumps playback to the given position. The audio pipeline is
// rebuilt slightly ahead of the target and the sequencer rejoins at its
// first time report.
func (c *Console) SeekTrack(seconds float64) error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return contracts.ErrNoTrackLoaded
	}
	run := sess.audio
	sess.audio = nil
	sess.pendingStart = nil
	background := sess.track.Background
	hasAudio := sess.audioPath != ""
	c.mu.Unlock()

	if sess.seq != nil {
		// With audio driving the clock the sequencer must not keep running
		// from the seek target; it rejoins at the rebuilt pipeline's first
		// time report.
		if hasAudio {
			sess.seq.Pause()
		}
		sess.seq.Seek(seconds)
	}

	if !hasAudio {
		if sess.seq != nil {
			sess.seq.Resume()
		}
		if !background {
			c.broadcast(contracts.TrackResumeMessage{})
		}
		return nil
	}

	if run != nil {
		if err := run.stop(); err != nil {
			c.log.Warn("Audio teardown on seek", c.log.Field().Error("error", err))
		}
	}
	if err := c.startAudio(sess, seconds+audioSeekLeadSeconds, func() {
		if sess.seq != nil {
			sess.seq.Resume()
		}
	}); err != nil {
		return err
	}
	if !background {
		c.broadcast(contracts.TrackResumeMessage{})
	}
	return nil
}

// ResumeTrack continues playback from the given position; a paused track's
// last reported time is the usual argument.
func (c *Console) ResumeTrack(seconds float64) error {
	return c.SeekTrack(seconds)
}

// StopTrack ends playback explicitly. It is a no-op unless a player is
// bound, and it is the only path that releases the binding.
func (c *Console) StopTrack() error {
	c.mu.Lock()
	if c.activePlayer == "" {
		c.mu.Unlock()
		return nil
	}
	c.activePlayer = ""
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	c.trackEnded(sess)
	return nil
}

// LoadedTrack returns the currently loaded track, if any.
func (c *Console) LoadedTrack() (contracts.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return contracts.Track{}, false
	}
	return c.session.track, true
}

// ActivePlayer returns the bound connection id, empty when unbound.
func (c *Console) ActivePlayer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePlayer
}

// HandlePlay binds the first caller as the active player and starts the
// loaded track. Calls from other connections are ignored while bound.
func (c *Console) HandlePlay(playerID string) error {
	c.mu.Lock()
	if c.activePlayer != "" && c.activePlayer != playerID {
		c.mu.Unlock()
		c.log.Info("Ignoring play from non-active player", c.log.Field().String("player", playerID))
		return nil
	}
	c.activePlayer = playerID
	c.mu.Unlock()

	return c.PlayTrack()
}

// HandleSeek jumps playback for the active player.
func (c *Console) HandleSeek(playerID string, seconds float64) error {
	if !c.isActive(playerID) {
		return nil
	}
	return c.SeekTrack(seconds)
}

// HandlePause pauses playback for the active player.
func (c *Console) HandlePause(playerID string) error {
	if !c.isActive(playerID) {
		return nil
	}
	return c.PauseTrack()
}

// HandleResume resumes playback at the last reported time.
func (c *Console) HandleResume(playerID string) error {
	if !c.isActive(playerID) {
		return nil
	}
	c.mu.Lock()
	sess := c.session
	var at float64
	if sess != nil {
		at = sess.lastTime
	}
	c.mu.Unlock()
	if sess == nil {
		return contracts.ErrNoTrackLoaded
	}
	return c.ResumeTrack(at)
}

// HandleStop stops playback and releases the player binding.
func (c *Console) HandleStop(playerID string) error {
	if !c.isActive(playerID) {
		return nil
	}
	return c.StopTrack()
}

// HandleDisconnect stops the track when the bound player drops.
func (c *Console) HandleDisconnect(playerID string) error {
	if !c.isActive(playerID) {
		return nil
	}
	c.log.Info("Active player disconnected", c.log.Field().String("player", playerID))
	return c.StopTrack()
}

func (c *Console) isActive(playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePlayer == playerID
}

// startAudio builds a pipeline at the given offset and starts feeding the
// track's audio file into it. onFirst runs once, at the first time report.
func (c *Console) startAudio(sess *session, start float64, onFirst func()) error {
	run := &audioRun{}

	handler := func(ev contracts.AudioEvent) {
		c.mu.Lock()
		if c.session != sess || sess.audio != run {
			c.mu.Unlock()
			return
		}
		switch ev.Kind {
		case contracts.AudioTime:
			sess.lastTime = ev.Time
			pending := sess.pendingStart
			sess.pendingStart = nil
			background := sess.track.Background
			c.mu.Unlock()
			if pending != nil {
				pending()
			}
			if !background {
				c.broadcast(contracts.TrackTimeMessage{Time: ev.Time, Duration: ev.Duration})
			}
		case contracts.AudioError:
			c.mu.Unlock()
			c.log.Error("Audio stream failed", c.log.Field().Error("error", ev.Err))
			c.trackEnded(sess)
		}
	}

	stream, err := c.audioFactory(contracts.PlayOptions{Start: start, FileType: sess.fileType}, handler)
	if err != nil {
		return fmt.Errorf("build audio stream: %w", err)
	}
	file, err := os.Open(sess.audioPath)
	if err != nil {
		err = multierr.Append(fmt.Errorf("open audio %s: %w", sess.audioPath, err), stream.Destroy())
		return err
	}
	run.stream = stream
	run.file = file

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return run.stop()
	}
	sess.audio = run
	sess.pendingStart = onFirst
	c.mu.Unlock()

	go c.feedAudio(sess, run)
	return nil
}

// feedAudio pumps the file into the pipeline. A clean drain is a natural
// track end; a cancelled run reports nothing.
func (c *Console) feedAudio(sess *session, run *audioRun) {
	_, copyErr := io.Copy(run.stream, run.file)
	if run.cancelled.Load() {
		return
	}
	if copyErr != nil {
		c.log.Error("Audio feed failed", c.log.Field().Error("error", copyErr))
		c.trackEnded(sess)
		return
	}
	if err := run.stream.Close(); err != nil && !run.cancelled.Load() {
		c.log.Error("Audio close failed", c.log.Field().Error("error", err))
	}
	if run.cancelled.Load() {
		return
	}
	c.trackEnded(sess)
}

// playerEvent relays sequencer events onto the broadcast channel. End of
// file only ends the track when no audio is driving the clock.
func (c *Console) playerEvent(sess *session, ev contracts.PlayerEvent) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	hasAudio := sess.audioPath != ""
	c.mu.Unlock()

	switch ev.Kind {
	case contracts.PlayerNoteOn:
		c.broadcast(contracts.NoteOnMessage{
			Note:      ev.Note,
			Number:    ev.Number,
			Length:    ev.Length,
			SameNotes: ev.SameNotes,
			Velocity:  ev.Velocity,
			Dimmable:  ev.Dimmable,
		})
	case contracts.PlayerNoteOff:
		c.broadcast(contracts.NoteOffMessage{Note: ev.Note, Number: ev.Number})
	case contracts.PlayerEndOfFile:
		c.broadcast(contracts.MidiEndMessage{})
		if !hasAudio {
			c.trackEnded(sess)
		}
	}
}

// trackEnded finishes a playback exactly once: engines down, external end
// broadcast unless the track is background, internal listeners always,
// playlist marker cleared. The player binding survives a natural end.
func (c *Console) trackEnded(sess *session) {
	c.mu.Lock()
	if c.session != sess || sess.ended {
		c.mu.Unlock()
		return
	}
	sess.ended = true
	run := sess.audio
	sess.audio = nil
	sess.pendingStart = nil
	track := sess.track
	listeners := make([]func(contracts.Track), len(c.endListeners))
	copy(listeners, c.endListeners)
	c.mu.Unlock()

	if sess.seq != nil {
		sess.seq.Stop()
	}
	if run != nil {
		if err := run.stop(); err != nil {
			c.log.Warn("Audio teardown on end", c.log.Field().Error("error", err))
		}
	}

	if !track.Background {
		c.broadcast(contracts.TrackEndMessage{TrackName: track.Name})
	}
	for _, fn := range listeners {
		fn(track)
	}
	c.playlist.ClearCurrentTrack()

	c.log.Info("Track ended", c.log.Field().String("track", track.Name))
}

// teardownSession discards the live session before a new load.
func (c *Console) teardownSession() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}
	var err error
	if sess.seq != nil {
		sess.seq.Stop()
	}
	if sess.audio != nil {
		err = multierr.Append(err, sess.audio.stop())
	}
	if err != nil {
		c.log.Warn("Previous session teardown", c.log.Field().Error("error", err))
	}
}

func (c *Console) broadcast(msg contracts.Message) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(msg)
}
