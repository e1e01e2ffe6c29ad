package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leandrodaf/lightshow/internal/logger"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

const catalogJSON = `[
	{"name": "Carol of the Bells", "artist": "Trans-Siberian Orchestra", "file": "carol"},
	{"name": "Wizards in Winter", "artist": "Trans-Siberian Orchestra", "file": "wizards"},
	{"name": "Broken Track", "artist": "Nobody", "file": "broken", "disabled": true}
]`

func testPlaylist(t *testing.T, mediaDir string) *Playlist {
	t.Helper()
	log := logger.NewZapLogger()
	log.SetLevel(contracts.ErrorLevel)
	p := New(Config{Logger: log, MediaDir: mediaDir})
	if err := p.LoadData([]byte(catalogJSON)); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return p
}

func TestLoadFiltersDisabledTracks(t *testing.T) {
	p := testPlaylist(t, "")
	if got := len(p.Tracks()); got != 2 {
		t.Fatalf("expected 2 enabled tracks, got %d", got)
	}
	if _, ok := p.GetTrack("Broken Track"); ok {
		t.Error("disabled track must not be returned")
	}
}

func TestFindTrackByNumberAndSubstring(t *testing.T) {
	p := testPlaylist(t, "")

	cases := []struct {
		query string
		want  string
		ok    bool
	}{
		{"1", "Carol of the Bells", true},
		{"2", "Wizards in Winter", true},
		{"0", "", false},
		{"3", "", false},
		{"wizards", "Wizards in Winter", true},
		{"CAROL", "Carol of the Bells", true},
		{"siberian", "Carol of the Bells", true}, // artist match, first wins
		{"nothing here", "", false},
	}
	for _, tc := range cases {
		got, ok := p.FindTrack(tc.query)
		if ok != tc.ok || got.Name != tc.want {
			t.Errorf("FindTrack(%q) = (%q, %v), want (%q, %v)", tc.query, got.Name, ok, tc.want, tc.ok)
		}
	}
}

func TestGetFilePathPrefersMp3AndChecksDisk(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"carol.mp3", "carol.wav", "carol.mid", "wizards.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := testPlaylist(t, dir)

	carol, _ := p.GetTrack("Carol of the Bells")
	if path, ok := p.GetFilePath(carol, contracts.AudioFile); !ok || !strings.HasSuffix(path, "carol.mp3") {
		t.Errorf("audio path = (%q, %v), want carol.mp3", path, ok)
	}
	if path, ok := p.GetFilePath(carol, contracts.MidiFile); !ok || !strings.HasSuffix(path, "carol.mid") {
		t.Errorf("midi path = (%q, %v), want carol.mid", path, ok)
	}

	wizards, _ := p.GetTrack("Wizards in Winter")
	if path, ok := p.GetFilePath(wizards, contracts.AudioFile); !ok || !strings.HasSuffix(path, "wizards.wav") {
		t.Errorf("audio fallback = (%q, %v), want wizards.wav", path, ok)
	}
	if _, ok := p.GetFilePath(wizards, contracts.MidiFile); ok {
		t.Error("missing midi file must not resolve")
	}
}

func TestCurrentTrackLifecycleAndPlayLog(t *testing.T) {
	p := testPlaylist(t, "")
	carol, _ := p.GetTrack("Carol of the Bells")

	if _, ok := p.CurrentTrack(); ok {
		t.Fatal("no track should be current initially")
	}

	p.SetCurrentTrack(carol)
	if cur, ok := p.CurrentTrack(); !ok || cur.Name != carol.Name {
		t.Errorf("current = (%+v, %v), want carol", cur, ok)
	}
	if got := p.PlayCount(carol.Name); got != 1 {
		t.Errorf("play count = %d, want 1", got)
	}
	if p.CanPlayTrack(carol.Name, time.Hour) {
		t.Error("track inside its cooldown window must not be playable")
	}
	if !p.CanPlayTrack(carol.Name, 0) {
		t.Error("zero cooldown must always allow playback")
	}
	if !p.CanPlayTrack("Wizards in Winter", time.Hour) {
		t.Error("never-played track must be playable")
	}

	p.ClearCurrentTrack()
	if _, ok := p.CurrentTrack(); ok {
		t.Error("current track must clear")
	}
}

func TestMenuTextNumbersTracks(t *testing.T) {
	p := testPlaylist(t, "")
	menu := p.MenuText()
	if !strings.Contains(menu, "1. Trans-Siberian Orchestra - Carol of the Bells") {
		t.Errorf("menu missing first entry:\n%s", menu)
	}
	if strings.Contains(menu, "Broken Track") {
		t.Errorf("menu lists disabled track:\n%s", menu)
	}
}

func TestLoadDataRejectsMalformedJSON(t *testing.T) {
	log := logger.NewZapLogger()
	log.SetLevel(contracts.ErrorLevel)
	p := New(Config{Logger: log})
	if err := p.LoadData([]byte("{not json")); err == nil {
		t.Error("expected parse error")
	}
}
