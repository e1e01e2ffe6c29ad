package contracts

// ConsoleOptions defines the configuration options for the playback console.
type ConsoleOptions struct {
	Logger      Logger
	LogLevel    LogLevel
	Playlist    Playlist
	Space       SpaceRegistry
	Broadcaster Broadcaster
	// AudioStreamFactory builds the decode backend; defaults to the sox
	// subprocess pipeline.
	AudioStreamFactory AudioStreamFactory
	// SoxPath overrides the decoder binary location for the default factory.
	SoxPath string
	// LoadAnnounceCount is how many times the TrackLoad pre-roll is repeated.
	LoadAnnounceCount int
	// DisabledNotes are note names that never produce broadcasts.
	DisabledNotes []string
}

// Option is a function that modifies ConsoleOptions.
type Option func(*ConsoleOptions)

// WithLogger sets the logger for the console.
func WithLogger(l Logger) Option {
	return func(opts *ConsoleOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the console.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ConsoleOptions) {
		opts.LogLevel = level
	}
}

// WithPlaylist sets the track lookup collaborator.
func WithPlaylist(p Playlist) Option {
	return func(opts *ConsoleOptions) {
		opts.Playlist = p
	}
}

// WithSpace sets the fixture client registry used for default note mappings.
func WithSpace(s SpaceRegistry) Option {
	return func(opts *ConsoleOptions) {
		opts.Space = s
	}
}

// WithBroadcaster sets the broadcast channel handle.
func WithBroadcaster(b Broadcaster) Option {
	return func(opts *ConsoleOptions) {
		opts.Broadcaster = b
	}
}

// WithAudioStreamFactory sets the audio decode backend.
func WithAudioStreamFactory(f AudioStreamFactory) Option {
	return func(opts *ConsoleOptions) {
		opts.AudioStreamFactory = f
	}
}

// WithSoxPath sets the decoder binary used by the default audio backend.
func WithSoxPath(path string) Option {
	return func(opts *ConsoleOptions) {
		opts.SoxPath = path
	}
}

// WithLoadAnnounceCount sets the TrackLoad pre-roll repetition count.
func WithLoadAnnounceCount(n int) Option {
	return func(opts *ConsoleOptions) {
		opts.LoadAnnounceCount = n
	}
}

// WithDisabledNotes sets note names that are filtered from every broadcast.
func WithDisabledNotes(notes []string) Option {
	return func(opts *ConsoleOptions) {
		opts.DisabledNotes = notes
	}
}
