// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package rc models the analog side of a resistor-ladder DAC: N output lines,
// each driven high (1) or low (0) through its own resistor into a single
// shared capacitor.
//
// Voltages are normalized to the output rail: 0 is ground, 1 is the rail.
//
package rc

import (
	"math"

	"github.com/pkg/errors"
)

// A Network is a set of resistor branches sharing a capacitor. Bit i of a
// pattern drives branch i.
//
type Network struct {
	Capacitor float64   // farads
	Resistors []float64 // ohms
}

// Validate checks that the network is physically meaningful.
//
func (n Network) Validate() error {
	if !(n.Capacitor > 0) || math.IsInf(n.Capacitor, 0) {
		return errors.Errorf("invalid capacitor value %v", n.Capacitor)
	}
	if len(n.Resistors) == 0 {
		return errors.New("no resistor branch")
	}
	if len(n.Resistors) > 64 {
		return errors.Errorf("too many resistor branches: %d > 64", len(n.Resistors))
	}
	for i, r := range n.Resistors {
		if !(r > 0) || math.IsInf(r, 0) {
			return errors.Errorf("invalid value %v for resistor %d", r, i)
		}
	}
	return nil
}

// conductance returns the total conductance of the network and the
// conductance of the branches driven high by pattern.
//
func (n Network) conductance(pattern uint64) (total, high float64) {
	for i, r := range n.Resistors {
		g := 1 / r
		total += g
		if pattern&(1<<uint(i)) != 0 {
			high += g
		}
	}
	return total, high
}

// Tau returns the time constant of the network. It does not depend on the
// pattern since every branch is always driven.
//
func (n Network) Tau() float64 {
	g, _ := n.conductance(0)
	return n.Capacitor / g
}

// Settle returns the steady state voltage reached when pattern is held.
//
func (n Network) Settle(pattern uint64) float64 {
	g, h := n.conductance(pattern)
	return h / g
}

// Step returns the voltage after holding pattern for dt seconds, starting from
// v. This is the exact solution of the network's differential equation.
//
func (n Network) Step(v float64, pattern uint64, dt float64) float64 {
	g, h := n.conductance(pattern)
	return Charge(dt, n.Capacitor/g, h/g, v)
}

// Euler returns a single explicit Euler step of dt seconds from v:
//
//	v + Σ dt/(C·R_i) · (b_i - v)
//
// This is the model used by the DAC controller, without quantization.
//
func (n Network) Euler(v float64, pattern uint64, dt float64) float64 {
	dv := 0.0
	for i, r := range n.Resistors {
		b := 0.0
		if pattern&(1<<uint(i)) != 0 {
			b = 1
		}
		dv += dt / (n.Capacitor * r) * (b - v)
	}
	return v + dv
}

// Charge returns the voltage across a capacitor charged (or discharged)
// through time constant tau toward vin for t seconds, starting at v0.
//
func Charge(t, tau, vin, v0 float64) float64 {
	return vin + (v0-vin)*math.Exp(-t/tau)
}
