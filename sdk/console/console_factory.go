// Package console exposes the public factory for the light show playback
// console.
package console

import (
	"errors"

	"github.com/leandrodaf/lightshow/internal/audio"
	internalconsole "github.com/leandrodaf/lightshow/internal/console"
	"github.com/leandrodaf/lightshow/internal/logger"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// ErrPlaylistRequired is returned when no playlist collaborator is supplied.
var ErrPlaylistRequired = errors.New("a playlist is required")

// defaultLoadAnnounceCount is how often the TrackLoad pre-roll repeats when
// the option is unset.
const defaultLoadAnnounceCount = 3

// NewConsole creates a playback console with the specified options.
// It applies default options and initializes the coordinator.
//
// opts ...contracts.Option: A variadic list of option functions to customize the console configuration.
//
// Returns:
//   - contracts.Console: An instance of the playback console.
//   - error: An error, if any occurred during the creation of the console.
func NewConsole(opts ...contracts.Option) (contracts.Console, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return internalconsole.New(options), nil
}

// applyDefaultOptions sets default values for ConsoleOptions if not
// explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ConsoleOptions, error) {
	options := &contracts.ConsoleOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Playlist == nil {
		return contracts.ConsoleOptions{}, ErrPlaylistRequired
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.LoadAnnounceCount == 0 {
		options.LoadAnnounceCount = defaultLoadAnnounceCount
	}
	if options.AudioStreamFactory == nil {
		soxPath := options.SoxPath
		options.AudioStreamFactory = func(po contracts.PlayOptions, handler func(contracts.AudioEvent)) (contracts.AudioStream, error) {
			return audio.NewPipeline(soxPath, po, handler), nil
		}
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options, nil
}
