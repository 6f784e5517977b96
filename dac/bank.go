// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package dac

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result is the output of one controller cycle.
//
type Result struct {
	Pattern  uint64  `json:"pattern"`
	Estimate float64 `json:"estimate"`
}

// A Bank is a set of independent DAC channels clocked together. Channels do
// not share any state and are stepped concurrently.
//
type Bank struct {
	chs []*Controller
}

// NewBank returns a bank of n channels built from the same configuration.
//
func NewBank(n int, cfg Config) (*Bank, error) {
	if n <= 0 {
		return nil, errors.Errorf("invalid channel count %d", n)
	}
	b := &Bank{chs: make([]*Controller, n)}
	for i := range b.chs {
		c, err := New(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "channel %d", i)
		}
		b.chs[i] = c
	}
	return b, nil
}

// Channels returns the number of channels in the bank.
//
func (b *Bank) Channels() int { return len(b.chs) }

// Channel returns channel i.
//
func (b *Bank) Channel(i int) *Controller { return b.chs[i] }

// Step runs one cycle on every channel, targets[i] being the target of
// channel i.
//
func (b *Bank) Step(ctx context.Context, targets []float64) ([]Result, error) {
	if len(targets) != len(b.chs) {
		return nil, errors.Errorf("got %d targets for %d channels", len(targets), len(b.chs))
	}
	// all channels step or none does.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := make([]Result, len(b.chs))
	var g errgroup.Group
	for i := range b.chs {
		i := i
		g.Go(func() error {
			p, v := b.chs[i].Step(targets[i])
			res[i] = Result{Pattern: p, Estimate: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// Reset resets all channels.
//
func (b *Bank) Reset() {
	for _, c := range b.chs {
		c.Reset()
	}
}
