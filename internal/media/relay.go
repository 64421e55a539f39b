package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"watchalong/internal/logging"
)

var (
	// ErrAlreadyRunning is returned by Start while a relay is active.
	ErrAlreadyRunning = errors.New("stream already running")
	// ErrNotRunning is returned by Stop when nothing is being relayed.
	ErrNotRunning = errors.New("stream not running")
)

// Sink is a voice connection that accepts Opus packets.
type Sink interface {
	Speaking(on bool) error
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Pipeline relays frames from a source into a sink until stopped or the
// source ends.
type Pipeline interface {
	Start(ctx context.Context, src Source, dst Sink) error
	Stop() error
	Running() bool
}

// VoiceRelay is the Pipeline used for voice channels. One relay runs at a
// time.
type VoiceRelay struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	frames int
}

var _ Pipeline = (*VoiceRelay)(nil)

func NewVoiceRelay() *VoiceRelay {
	return &VoiceRelay{}
}

// Start opens src and begins pumping into dst. dst is closed when the
// relay ends or when Start fails, including when a relay is already running.
func (v *VoiceRelay) Start(ctx context.Context, src Source, dst Sink) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done != nil {
		_ = dst.Close()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := src.Open(ctx)
	if err != nil {
		cancel()
		_ = dst.Close()
		return err
	}
	if err := dst.Speaking(true); err != nil {
		cancel()
		_ = stream.Close()
		_ = dst.Close()
		return fmt.Errorf("start speaking: %w", err)
	}

	done := make(chan struct{})
	v.cancel, v.done, v.frames = cancel, done, 0
	go v.pump(ctx, stream, dst, done)
	logging.Stream("voice relay started")
	return nil
}

func (v *VoiceRelay) pump(ctx context.Context, stream io.ReadCloser, dst Sink, done chan struct{}) {
	closeStream := sync.OnceValue(stream.Close)
	go func() {
		<-ctx.Done()
		_ = closeStream()
	}()

	defer close(done)
	defer func() {
		_ = closeStream()
		if err := dst.Speaking(false); err != nil {
			logging.StreamWarn("stop speaking: %v", err)
		}
		if err := dst.Close(); err != nil {
			logging.StreamWarn("close voice: %v", err)
		}
		v.mu.Lock()
		if v.done == done {
			v.cancel()
			v.cancel, v.done = nil, nil
		}
		v.mu.Unlock()
	}()

	fr := NewFrameReader(stream)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				logging.Stream("voice relay ended after %d frames", v.frameCount())
			} else {
				logging.StreamWarn("voice relay read failed: %v", err)
			}
			return
		}
		if err := dst.Send(ctx, frame); err != nil {
			if ctx.Err() == nil {
				logging.StreamWarn("voice relay send failed: %v", err)
			}
			return
		}
		v.mu.Lock()
		v.frames++
		v.mu.Unlock()
	}
}

func (v *VoiceRelay) frameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Stop ends the active relay and waits for it to release the sink.
func (v *VoiceRelay) Stop() error {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}
	cancel()
	<-done
	logging.Stream("voice relay stopped")
	return nil
}

// Running reports whether a relay is active.
func (v *VoiceRelay) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done != nil
}
