// Package media relays an encoded audio stream into a voice connection.
//
// Frames arrive in DCA framing: each Opus packet is preceded by its length
// as a little-endian int16.
package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"watchalong/internal/logging"
)

// MaxFrameSize bounds a single Opus packet.
const MaxFrameSize = 4000

var (
	// ErrNotConfigured is returned when no capture command is configured.
	ErrNotConfigured = errors.New("stream capture not configured")
	// ErrBadFrame is returned for a frame header outside (0, MaxFrameSize].
	ErrBadFrame = errors.New("bad frame length")
)

// FrameReader reads DCA framed Opus packets.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next packet. A stream ending on a frame boundary
// yields io.EOF; one ending inside a frame yields io.ErrUnexpectedEOF.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var n int16
	if err := binary.Read(f.r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n <= 0 || int(n) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrBadFrame, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes one packet in DCA framing.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d", ErrBadFrame, len(frame))
	}
	if err := binary.Write(w, binary.LittleEndian, int16(len(frame))); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// Source produces a DCA stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// CommandSource runs an external capture pipeline (for example ffmpeg
// piped through a DCA encoder) and reads its stdout.
type CommandSource struct {
	Command []string
}

func (s CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Command) == 0 || s.Command[0] == "" {
		return nil, ErrNotConfigured
	}
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture %s: %w", s.Command[0], err)
	}
	logging.Stream("capture started: %v (pid %d)", s.Command, cmd.Process.Pid)
	return &commandStream{ReadCloser: stdout, cmd: cmd}, nil
}

type commandStream struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

// Close stops the capture process and reaps it.
func (c *commandStream) Close() error {
	c.once.Do(func() {
		_ = c.ReadCloser.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		if err := c.cmd.Wait(); err != nil {
			logging.StreamWarn("capture exited: %v", err)
		}
	})
	return nil
}
