package decoder

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// source is a sequential frame reader driven by stream.
type source interface {
	Info() VideoInfo
	// Next fills dst (Width*Height*4 bytes) and reports false at end of stream.
	Next(dst []byte) (bool, error)
	Close() error
}

type opener func(path string) (source, error)

// stream runs a source on its own goroutine and queues frames on a bounded
// channel. It implements Decoder for every backend.
type stream struct {
	open   opener
	buffer int
	log    zerolog.Logger

	mu      sync.Mutex
	info    VideoInfo
	frames  chan *Frame
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	err     error

	// skipTo is the first frame index still wanted; next is the index after
	// the last frame handed out.
	skipTo atomic.Int64
	next   atomic.Int64
}

func newStream(open opener, opts Options, backend string) *stream {
	buf := opts.BufferFrames
	if buf <= 0 {
		buf = 25
	}
	return &stream{
		open:   open,
		buffer: buf,
		log:    opts.Logger.With().Str("component", "decoder").Str("backend", backend).Logger(),
	}
}

func (s *stream) Start(path string, seekFrame int) error {
	s.Stop()
	src, err := s.open(path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.info = src.Info()
	s.frames = make(chan *Frame, s.buffer)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.err = nil
	s.mu.Unlock()
	s.skipTo.Store(int64(seekFrame))
	s.next.Store(int64(seekFrame))

	s.log.Debug().Str("path", path).Int("seek_frame", seekFrame).
		Int("width", s.info.Width).Int("height", s.info.Height).Float64("fps", s.info.FPS).
		Msg("decode start")
	go s.run(ctx, src, s.frames, s.done)
	return nil
}

func (s *stream) run(ctx context.Context, src source, out chan<- *Frame, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	defer src.Close()

	info := src.Info()
	size := info.Width * info.Height * 4
	maxIdx := info.Frames - 1
	for idx := 0; ; idx++ {
		if ctx.Err() != nil {
			s.setErr(ErrStopped)
			return
		}
		pix := make([]byte, size)
		ok, err := src.Next(pix)
		if err != nil {
			s.log.Warn().Err(err).Int("frame", idx).Msg("decode failed")
			s.setErr(err)
			return
		}
		if !ok {
			s.setErr(ErrEndOfStream)
			return
		}
		if int64(idx) < s.skipTo.Load() {
			continue
		}
		f := &Frame{
			Width:  info.Width,
			Height: info.Height,
			Pix:    pix,
			Meta:   FrameMetadata{FrameIdx: idx, MaxFrameIdx: maxIdx},
		}
		select {
		case out <- f:
		case <-ctx.Done():
			s.setErr(ErrStopped)
			return
		}
	}
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *stream) PopVideoFrame() (*Frame, error) {
	s.mu.Lock()
	frames, started := s.frames, s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				s.mu.Lock()
				err := s.err
				s.mu.Unlock()
				if err == nil {
					err = ErrEndOfStream
				}
				return nil, err
			}
			if int64(f.Meta.FrameIdx) < s.skipTo.Load() {
				continue
			}
			s.next.Store(int64(f.Meta.FrameIdx) + 1)
			return f, nil
		default:
			return nil, nil
		}
	}
}

// SkipTime moves playback seconds ahead of the last frame handed out.
// Queued frames before the target are discarded on pop; the decode
// goroutine drops the rest. Backward skips are not supported.
func (s *stream) SkipTime(seconds float64) {
	s.mu.Lock()
	fps, started := s.info.FPS, s.started
	s.mu.Unlock()
	if seconds < 0 {
		s.log.Debug().Float64("seconds", seconds).Msg("backward skip ignored")
		return
	}
	if !started || seconds == 0 || fps <= 0 {
		return
	}
	target := s.next.Load() + int64(math.Round(seconds*fps))
	for {
		cur := s.skipTo.Load()
		if target <= cur || s.skipTo.CompareAndSwap(cur, target) {
			break
		}
	}
	s.log.Debug().Float64("seconds", seconds).Int64("target_frame", target).Msg("skip")
}

// Stop halts decoding and waits for the goroutine to exit.
func (s *stream) Stop() {
	s.mu.Lock()
	cancel, done, frames := s.cancel, s.done, s.frames
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	// unblock a producer parked on a full queue
	go func() {
		for range frames {
		}
	}()
	<-done
}

func (s *stream) VideoInfo() VideoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}
