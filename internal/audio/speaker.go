package audio

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// speakerTimeInterval is the cadence of time reports from the in-process
// backend, roughly matching the external decoder's progress lines.
const speakerTimeInterval = 500 * time.Millisecond

// Speaker decodes written audio bytes in process and plays them on the
// default output device. It is the fallback backend for hosts without a
// sox binary.
type Speaker struct {
	opts    contracts.PlayOptions
	handler func(contracts.AudioEvent)

	pr *io.PipeReader
	pw *io.PipeWriter

	played  atomic.Int64
	rate    atomic.Int64
	stopped chan struct{}
	once    sync.Once
}

// NewSpeaker starts the decode goroutine immediately; it blocks internally
// until the first written bytes carry the stream header.
func NewSpeaker(opts contracts.PlayOptions, handler func(contracts.AudioEvent)) *Speaker {
	pr, pw := io.Pipe()
	s := &Speaker{
		opts:    opts,
		handler: handler,
		pr:      pr,
		pw:      pw,
		stopped: make(chan struct{}),
	}
	go s.decodeAndPlay()
	return s
}

// Write feeds encoded bytes to the decoder.
func (s *Speaker) Write(b []byte) (int, error) {
	return s.pw.Write(b)
}

// Close signals end of input; the decoder plays out what it has buffered.
func (s *Speaker) Close() error {
	return s.pw.Close()
}

// Destroy silences the output and tears the stream down.
func (s *Speaker) Destroy() error {
	s.once.Do(func() { close(s.stopped) })
	speaker.Clear()
	_ = s.pw.CloseWithError(io.ErrClosedPipe)
	return s.pr.Close()
}

func (s *Speaker) decodeAndPlay() {
	var (
		stream beep.StreamCloser
		format beep.Format
		err    error
	)
	switch s.opts.FileType {
	case "wav":
		stream, format, err = wav.Decode(s.pr)
	default:
		stream, format, err = mp3.Decode(s.pr)
	}
	if err != nil {
		s.fail(fmt.Errorf("speaker decode %s: %w", s.opts.FileType, err))
		return
	}
	s.rate.Store(int64(format.SampleRate))

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
		s.fail(fmt.Errorf("speaker init: %w", err))
		return
	}

	var streamer beep.Streamer = stream
	if s.opts.Start > 0 {
		s.drain(streamer, format.SampleRate.N(secondsToDuration(s.opts.Start)))
	}
	if s.opts.End > 0 {
		streamer = beep.Take(format.SampleRate.N(secondsToDuration(s.opts.End-s.opts.Start)), streamer)
	}

	go s.reportTime()

	speaker.Play(beep.Seq(&countingStreamer{inner: streamer, played: &s.played}, beep.Callback(func() {
		s.once.Do(func() { close(s.stopped) })
	})))
}

// drain consumes samples before the playback start point. Streamed input is
// not seekable, so the skipped region is decoded and discarded.
func (s *Speaker) drain(streamer beep.Streamer, samples int) {
	buf := make([][2]float64, 512)
	for samples > 0 {
		n := len(buf)
		if samples < n {
			n = samples
		}
		got, ok := streamer.Stream(buf[:n])
		samples -= got
		if !ok {
			return
		}
	}
}

func (s *Speaker) reportTime() {
	ticker := time.NewTicker(speakerTimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
			rate := s.rate.Load()
			if rate == 0 {
				continue
			}
			s.handler(contracts.AudioEvent{
				Kind: contracts.AudioTime,
				Time: s.opts.Start + float64(s.played.Load())/float64(rate),
			})
		}
	}
}

func (s *Speaker) fail(err error) {
	s.once.Do(func() { close(s.stopped) })
	s.handler(contracts.AudioEvent{Kind: contracts.AudioError, Err: err})
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// countingStreamer tracks played samples for time reporting.
type countingStreamer struct {
	inner  beep.Streamer
	played *atomic.Int64
}

func (c *countingStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.inner.Stream(samples)
	c.played.Add(int64(n))
	return n, ok
}

func (c *countingStreamer) Err() error {
	return c.inner.Err()
}
