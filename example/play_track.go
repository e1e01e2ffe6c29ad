package main

import (
	"fmt"
	"os"
	"time"

	"github.com/leandrodaf/lightshow/internal/logger"
	"github.com/leandrodaf/lightshow/internal/playlist"
	"github.com/leandrodaf/lightshow/sdk/console"
	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// logBroadcaster prints every broadcast instead of pushing it to real
// lighting clients.
type logBroadcaster struct {
	log contracts.Logger
}

func (b logBroadcaster) Broadcast(msg contracts.Message) {
	switch m := msg.(type) {
	case contracts.NoteOnMessage:
		b.log.Info("Note on",
			b.log.Field().String("note", m.Note),
			b.log.Field().Int("length", m.Length),
			b.log.Field().Bool("dimmable", m.Dimmable))
	case contracts.NoteOffMessage:
		b.log.Info("Note off", b.log.Field().String("note", m.Note))
	case contracts.TrackTimeMessage:
		b.log.Info("Time", b.log.Field().Float64("seconds", m.Time))
	default:
		b.log.Info("Broadcast", b.log.Field().String("event", string(msg.Event())))
	}
}

func main() {
	log := logger.NewZapLogger()

	pl := playlist.New(playlist.Config{Logger: log, MediaDir: "media"})
	if err := pl.Load("playlist.json"); err != nil {
		log.Error("Failed to load playlist", log.Field().Error("error", err))
		return
	}

	c, err := console.NewConsole(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithPlaylist(pl),
		contracts.WithBroadcaster(logBroadcaster{log: log}),
	)
	if err != nil {
		log.Error("Failed to initialize console", log.Field().Error("error", err))
		return
	}

	query := "1"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}
	track, ok := pl.FindTrack(query)
	if !ok {
		fmt.Println("No such track. Playlist:")
		fmt.Print(pl.MenuText())
		return
	}

	done := make(chan struct{})
	c.OnTrackEnd(func(contracts.Track) { close(done) })

	if err := c.LoadTrack(track, nil); err != nil {
		log.Error("Failed to load track", log.Field().Error("error", err))
		return
	}
	if err := c.HandlePlay("example"); err != nil {
		log.Error("Failed to start playback", log.Field().Error("error", err))
		return
	}

	fmt.Printf("Playing %s - %s\n", track.Artist, track.Name)
	select {
	case <-done:
		fmt.Println("Track finished.")
	case <-time.After(10 * time.Minute):
		fmt.Println("Giving up after 10 minutes.")
	}
}
