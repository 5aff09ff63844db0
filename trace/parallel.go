package trace

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelSource decodes an EventSource on a background goroutine and hands
// records over through a bounded channel. Per-source order is preserved, so a
// Merger over ParallelSources emits exactly what it would over the raw
// decoders.
type ParallelSource struct {
	src    EventSource
	ch     chan *Event
	cancel context.CancelFunc
	g      *errgroup.Group

	waitOnce sync.Once
	waitErr  error
	closed   bool
}

// NewParallelSource starts decoding src. depth bounds the number of records
// decoded ahead of the consumer (minimum 1). The returned source owns src.
func NewParallelSource(ctx context.Context, src EventSource, depth int) *ParallelSource {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	p := &ParallelSource{
		src:    src,
		ch:     make(chan *Event, depth),
		cancel: cancel,
		g:      g,
	}
	g.Go(func() error {
		defer close(p.ch)
		for {
			ev, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case p.ch <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return p
}

// Next returns the next decoded event, io.EOF at the end, or the decoding
// error that stopped the producer.
func (p *ParallelSource) Next() (*Event, error) {
	ev, ok := <-p.ch
	if ok {
		return ev, nil
	}
	if err := p.wait(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (p *ParallelSource) wait() error {
	p.waitOnce.Do(func() { p.waitErr = p.g.Wait() })
	return p.waitErr
}

// Close stops the producer, waits for it to exit and closes the wrapped source.
func (p *ParallelSource) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	// Unblock a producer parked on a full channel.
	for range p.ch {
	}
	werr := p.wait()
	return errors.Join(werr, p.src.Close())
}
