// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package dac implements a closed-loop controller for a resistor/capacitor
// DAC.
//
// The controller drives N output lines, each connected through its own
// resistor to a shared filter capacitor. It keeps a fixed-point estimate of
// the capacitor voltage and, every clock cycle, picks the output pattern
// whose predicted voltage after one cycle is closest to the requested target.
// The prediction is a single explicit Euler step of the RC network:
//
//	v' = v + Σ k_i·(b_i - v), k_i = Δt/(C·R_i)
//
// All arithmetic inside the loop is done with package fixed so that the
// results are bit-exact with the FPGA implementation.
//
package dac

import (
	"math"
	"math/bits"

	"github.com/db47h/semsim/fixed"
	"github.com/db47h/semsim/rc"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Default configuration values.
//
const (
	DefaultFracBits = 19
	DefaultIntBits  = 1
	DefaultInitial  = 0.5
)

// Config holds the construction time parameters of a Controller. It is not
// used after New returns.
//
type Config struct {
	DeltaTime float64   // clock period in seconds
	Capacitor float64   // filter capacitor in farads
	Resistors []float64 // one resistor per output line, in ohms

	// Precision of the estimate and input registers. These registers are
	// signed with IntBits integer bits in addition to the sign bit. Zero
	// values select DefaultIntBits and DefaultFracBits.
	IntBits  int
	FracBits int

	// Initial value of the estimate. Nil selects DefaultInitial.
	Initial *float64
}

// Float returns a pointer to v. Use it to set Config.Initial.
//
func Float(v float64) *float64 { return &v }

// A Controller is a closed-loop RC DAC controller.
//
// Next and Evaluate are pure functions and safe for concurrent use. Step,
// StepFixed and Reset update the controller's estimate and must not be called
// concurrently.
//
type Controller struct {
	n       int
	k       []fixed.Value // per-branch Δt/(C·R_i)
	options []uint64
	reg     fixed.Value // zero estimate/input register
	init    fixed.Value
	vOut    fixed.Value
	high    fixed.Value
	low     fixed.Value
	net     rc.Network
	dt      float64
}

// Options returns the output patterns considered by a controller with n
// output lines, in priority order: a thermometer code where pattern j drives
// the first j lines high.
//
//	n = 3: 000, 001, 011, 111
//
func Options(n int) []uint64 {
	if n < 0 || n > 64 {
		return nil
	}
	opts := make([]uint64, n+1)
	for j := 1; j <= n; j++ {
		opts[j] = opts[j-1]<<1 | 1
	}
	return opts
}

// New returns a new controller for the given configuration.
//
// The configuration is elaborated once: New fails if the exact intermediate
// results of the datapath would not fit in 64 bits.
//
func New(cfg Config) (*Controller, error) {
	net := rc.Network{Capacitor: cfg.Capacitor, Resistors: cfg.Resistors}
	if err := net.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid RC network")
	}
	if !(cfg.DeltaTime > 0) || math.IsInf(cfg.DeltaTime, 0) {
		return nil, errors.Errorf("invalid clock period %v", cfg.DeltaTime)
	}
	ib, fb := cfg.IntBits, cfg.FracBits
	if ib == 0 {
		ib = DefaultIntBits
	}
	if fb == 0 {
		fb = DefaultFracBits
	}
	if ib < 0 || fb < 0 {
		return nil, errors.Errorf("invalid precision q%d.%d", ib, fb)
	}
	reg, err := fixed.Register(ib+1, fb, true)
	if err != nil {
		return nil, errors.Wrap(err, "estimate register")
	}

	c := &Controller{
		n:       len(cfg.Resistors),
		k:       make([]fixed.Value, len(cfg.Resistors)),
		options: Options(len(cfg.Resistors)),
		reg:     reg,
		net:     rc.Network{Capacitor: cfg.Capacitor, Resistors: append([]float64(nil), cfg.Resistors...)},
		dt:      cfg.DeltaTime,
	}
	// bit operands
	c.low, _ = fixed.FromRaw(0, 0, 2, true)
	c.high, _ = fixed.FromRaw(1, 0, 2, true)

	for i, r := range cfg.Resistors {
		k := cfg.DeltaTime / (cfg.Capacitor * r)
		// room for the integer part of k after rounding to fb fractional
		// bits, plus sign. k should be << 1 but we do not enforce it.
		q := math.RoundToEven(math.Ldexp(k, fb))
		if !(q < 1<<62) {
			return nil, errors.Errorf("coefficient %v for resistor %d out of range", k, i)
		}
		kb := 1 + bits.Len64(uint64(q)>>uint(fb))
		if c.k[i], err = fixed.Const(kb, fb, k, true); err != nil {
			return nil, errors.Wrapf(err, "coefficient for resistor %d", i)
		}
	}

	initial := DefaultInitial
	if cfg.Initial != nil {
		initial = *cfg.Initial
	}
	if c.init, err = reg.SetFloat(initial); err != nil {
		return nil, errors.Wrap(err, "initial estimate")
	}
	c.vOut = c.init

	if err = fixed.Elaborate(func() { c.Next(c.reg, c.reg) }); err != nil {
		return nil, errors.Wrapf(err, "datapath for %d branches at q%d.%d", c.n, ib, fb)
	}
	return c, nil
}

// Branches returns the number of output lines.
//
func (c *Controller) Branches() int { return c.n }

// Options returns the output patterns considered by the controller.
//
func (c *Controller) Options() []uint64 {
	return append([]uint64(nil), c.options...)
}

// Coefficients returns the quantized per-branch decay coefficients.
//
func (c *Controller) Coefficients() []fixed.Value {
	return append([]fixed.Value(nil), c.k...)
}

// Network returns the RC network modeled by the controller.
//
func (c *Controller) Network() rc.Network { return c.net }

// DeltaTime returns the clock period.
//
func (c *Controller) DeltaTime() float64 { return c.dt }

// Register returns a zero value with the shape of the estimate and input
// registers.
//
func (c *Controller) Register() fixed.Value { return c.reg }

// Quantize converts v to the input register's scale. Values that cannot be
// quantized (NaN, infinities) read as zero.
//
func (c *Controller) Quantize(v float64) fixed.Value {
	q, err := c.reg.SetFloat(v)
	if err != nil {
		return c.reg
	}
	return q
}

// VOut returns the current estimate.
//
func (c *Controller) VOut() fixed.Value { return c.vOut }

// Reset sets the estimate back to its initial value.
//
func (c *Controller) Reset() { c.vOut = c.init }

// outcome returns the exact (unassigned) estimate after applying pattern p
// for one cycle starting from vOut.
//
func (c *Controller) outcome(vOut fixed.Value, p uint64) fixed.Value {
	var dv fixed.Value
	for i, k := range c.k {
		b := c.low
		if p&(1<<uint(i)) != 0 {
			b = c.high
		}
		d := fixed.Mul(k, fixed.Sub(b, vOut))
		if i == 0 {
			dv = d
		} else {
			dv = fixed.Add(dv, d)
		}
	}
	return fixed.Add(vOut, dv)
}

// Next computes one controller cycle: it returns the selected pattern and the
// next estimate for the given current estimate and input. Both must have the
// shape of Register.
//
// Patterns are tried in Options order, the first one with the smallest error
// wins.
//
func (c *Controller) Next(vOut, input fixed.Value) (pattern uint64, next fixed.Value) {
	var best, bestErr fixed.Value
	for i, p := range c.options {
		o := c.outcome(vOut, p)
		e := fixed.Abs(fixed.Sub(o, input))
		if i == 0 || fixed.Cmp(e, bestErr) < 0 {
			pattern, best, bestErr = p, o, e
		}
	}
	return pattern, fixed.Assign(c.reg, best)
}

// StepFixed runs one cycle for the given target and latches the new estimate.
//
func (c *Controller) StepFixed(target fixed.Value) (pattern uint64, estimate fixed.Value) {
	pattern, c.vOut = c.Next(c.vOut, fixed.Assign(c.reg, target))
	return pattern, c.vOut
}

// Step runs one cycle for the given target and latches the new estimate.
//
func (c *Controller) Step(target float64) (pattern uint64, estimate float64) {
	p, v := c.StepFixed(c.Quantize(target))
	return p, v.Float()
}

// Evaluate returns the estimate that one cycle of pattern would produce,
// starting from vOut. Bits of pattern beyond the number of branches are
// ignored. The controller's state is not modified.
//
func (c *Controller) Evaluate(vOut float64, pattern uint64) float64 {
	return fixed.Assign(c.reg, c.outcome(c.Quantize(vOut), pattern)).Float()
}

// Potential scales a normalized voltage to the output rail.
//
func Potential(v float64, rail physic.ElectricPotential) physic.ElectricPotential {
	return physic.ElectricPotential(math.Round(v * float64(rail)))
}
