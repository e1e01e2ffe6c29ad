// Package audio provides the decode backends behind the console's audio
// stream factory: an external sox subprocess pipeline and an in-process
// speaker backend.
package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/leandrodaf/lightshow/sdk/contracts"
)

// DefaultSoxPath is used when neither an option nor SOX_PATH is set.
const DefaultSoxPath = "/usr/local/bin/sox"

// metaKeys are the one-time diagnostic properties captured from the decoder.
var metaKeys = map[string]struct{}{
	"encoding":   {},
	"channels":   {},
	"samplerate": {},
	"replaygain": {},
	"duration":   {},
}

// Pipeline streams encoded audio into a sox subprocess that decodes and
// plays it on the local sink. The process is spawned lazily on the first
// write so construction stays cheap across pause/seek rebuilds.
type Pipeline struct {
	soxPath string
	opts    contracts.PlayOptions
	handler func(contracts.AudioEvent)

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	destroyed bool

	metaMu   sync.Mutex
	meta     map[string]string
	duration float64
}

// NewPipeline builds a dormant pipeline. The handler receives time reports
// at the decoder's own cadence and a single error event on spawn or runtime
// failure.
func NewPipeline(soxPath string, opts contracts.PlayOptions, handler func(contracts.AudioEvent)) *Pipeline {
	if soxPath == "" {
		soxPath = os.Getenv("SOX_PATH")
	}
	if soxPath == "" {
		soxPath = DefaultSoxPath
	}
	return &Pipeline{
		soxPath: soxPath,
		opts:    opts,
		handler: handler,
		meta:    make(map[string]string),
	}
}

// Write forwards encoded bytes to the decoder, spawning it on first use.
func (p *Pipeline) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return 0, errors.New("audio pipeline destroyed")
	}
	if p.cmd == nil {
		if err := p.spawn(); err != nil {
			p.mu.Unlock()
			p.handler(contracts.AudioEvent{Kind: contracts.AudioError, Err: err})
			return 0, err
		}
	}
	stdin := p.stdin
	p.mu.Unlock()

	return stdin.Write(b)
}

// Close signals end of input and waits for the decoder to drain and exit.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	cmd := p.cmd
	stdin := p.stdin
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if err := stdin.Close(); err != nil && !isBrokenPipe(err) {
		return err
	}
	if err := cmd.Wait(); err != nil && !isBrokenPipe(err) {
		return err
	}
	return nil
}

// Destroy kills the decoder immediately. Broken pipes during an intentional
// kill are expected and swallowed.
func (p *Pipeline) Destroy() error {
	p.mu.Lock()
	p.destroyed = true
	cmd := p.cmd
	stdin := p.stdin
	p.cmd = nil
	p.stdin = nil
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if stdin != nil {
		if err := stdin.Close(); err != nil && !isBrokenPipe(err) {
			return err
		}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if err := cmd.Wait(); err != nil && !isExpectedExit(err) {
		return err
	}
	return nil
}

// Meta returns the decoder's one-time diagnostic properties seen so far.
func (p *Pipeline) Meta() map[string]string {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	out := make(map[string]string, len(p.meta))
	for k, v := range p.meta {
		out[k] = v
	}
	return out
}

// spawn must be called with the mutex held.
func (p *Pipeline) spawn() error {
	args := []string{"-", "-d"}
	if p.opts.Start > 0 || p.opts.End > 0 {
		args = append(args, "trim", formatSeconds(p.opts.Start))
		if p.opts.End > 0 {
			args = append(args, formatSeconds(p.opts.End))
		}
	}

	cmd := exec.Command(p.soxPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("audio pipeline stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("audio pipeline stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio pipeline spawn %s: %w", p.soxPath, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	go p.scanProgress(stderr)
	return nil
}

// scanProgress parses the decoder's diagnostic stream: key/value metadata
// once, and "In: <elapsed>" progress lines at the process's own cadence.
func (p *Pipeline) scanProgress(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "In:") {
			p.reportProgress(line)
			continue
		}
		p.captureMeta(line)
	}
}

func (p *Pipeline) reportProgress(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	elapsed, err := ParseTimeString(fields[1])
	if err != nil {
		return
	}

	p.metaMu.Lock()
	duration := p.duration
	p.metaMu.Unlock()

	p.handler(contracts.AudioEvent{
		Kind:     contracts.AudioTime,
		Time:     elapsed + p.opts.Start,
		Duration: duration,
	})
}

func (p *Pipeline) captureMeta(line string) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if _, known := metaKeys[key]; !known {
		return
	}
	value = strings.TrimSpace(value)

	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	p.meta[key] = value
	if key == "duration" {
		// "00:03:45.21 = 9922218 samples ..." — the clock is field one.
		if d, err := ParseTimeString(strings.Fields(value)[0]); err == nil {
			p.duration = d
		}
	}
}

// ParseTimeString converts a decoder clock like "00:02:07.35" to seconds.
func ParseTimeString(s string) (float64, error) {
	parts := strings.Split(s, ":")
	var seconds, scale float64 = 0, 1
	for i := len(parts) - 1; i >= 0; i-- {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, fmt.Errorf("bad time %q: %w", s, err)
		}
		seconds += v * scale
		scale *= 60
	}
	return seconds, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

// isExpectedExit reports whether a Wait error is the normal outcome of a
// deliberate kill.
func isExpectedExit(err error) bool {
	if isBrokenPipe(err) {
		return true
	}
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
