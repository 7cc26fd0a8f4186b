// Package feed delivers odds ticks from upstream providers into the
// pipeline. Sources are channel-based: Run drives the connection until the
// context is cancelled, Ticks is the consumer side.
package feed

import (
	"context"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// Source is an upstream tick producer. Run blocks until ctx is cancelled or
// the source fails permanently; the Ticks channel is closed when Run returns.
type Source interface {
	Run(ctx context.Context) error
	Ticks() <-chan domain.OddsTick
}

// SliceSource replays a fixed set of ticks and then closes its channel. Used
// by the validate mode and in tests.
type SliceSource struct {
	ticks []domain.OddsTick
	out   chan domain.OddsTick
}

func NewSliceSource(ticks []domain.OddsTick) *SliceSource {
	return &SliceSource{
		ticks: ticks,
		out:   make(chan domain.OddsTick),
	}
}

func (s *SliceSource) Run(ctx context.Context) error {
	defer close(s.out)
	for _, t := range s.ticks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.out <- t:
		}
	}
	return nil
}

func (s *SliceSource) Ticks() <-chan domain.OddsTick { return s.out }
