package console

import (
	"errors"
	"testing"

	"github.com/leandrodaf/lightshow/sdk/contracts"
)

type stubPlaylist struct{}

func (stubPlaylist) GetTrack(string) (contracts.Track, bool) { return contracts.Track{}, false }
func (stubPlaylist) GetFilePath(contracts.Track, contracts.FileKind) (string, bool) {
	return "", false
}
func (stubPlaylist) SetCurrentTrack(contracts.Track) {}
func (stubPlaylist) ClearCurrentTrack()              {}

func TestNewConsoleRequiresPlaylist(t *testing.T) {
	if _, err := NewConsole(); !errors.Is(err, ErrPlaylistRequired) {
		t.Fatalf("err = %v, want ErrPlaylistRequired", err)
	}
}

func TestNewConsoleAppliesDefaults(t *testing.T) {
	c, err := NewConsole(contracts.WithPlaylist(stubPlaylist{}))
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	if c == nil {
		t.Fatal("expected a console instance")
	}

	// No files resolve through the stub playlist, so loading surfaces the
	// sentinel rather than a nil-dereference from a missing default.
	err = c.LoadTrack(contracts.Track{Name: "x", File: "x"}, nil)
	if !errors.Is(err, contracts.ErrNoTrackFiles) {
		t.Errorf("err = %v, want ErrNoTrackFiles", err)
	}
}

func TestApplyDefaultOptionsBuildsAudioFactory(t *testing.T) {
	options, err := applyDefaultOptions(contracts.WithPlaylist(stubPlaylist{}), contracts.WithLogLevel(contracts.ErrorLevel))
	if err != nil {
		t.Fatalf("apply defaults: %v", err)
	}
	if options.AudioStreamFactory == nil {
		t.Fatal("expected a default audio stream factory")
	}
	if options.LoadAnnounceCount != defaultLoadAnnounceCount {
		t.Errorf("announce count = %d, want %d", options.LoadAnnounceCount, defaultLoadAnnounceCount)
	}

	stream, err := options.AudioStreamFactory(contracts.PlayOptions{FileType: "mp3"}, func(contracts.AudioEvent) {})
	if err != nil {
		t.Fatalf("default factory: %v", err)
	}
	// Construction must be cheap and spawn nothing.
	if err := stream.Destroy(); err != nil {
		t.Errorf("destroy dormant stream: %v", err)
	}
}
