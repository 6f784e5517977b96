// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semsim

import (
	"github.com/pkg/errors"
)

type chip struct {
	PartSpec
	parts []Part
	// internal wire numbers by name, and the internal wire numbers of each
	// sub part's pins.
	names map[string]int
	pins  []map[string]int
}

func (c *chip) mount(s *Socket) []Component {
	var cs []Component

	// map internal wire numbers to circuit wires. Wires other than the
	// chip's pins are allocated anew for each mounted instance.
	w := make([]int, len(c.names))
	pins := make(map[string]bool, len(c.Inputs)+len(c.Outputs))
	for _, p := range c.Inputs {
		pins[p] = true
	}
	for _, p := range c.Outputs {
		pins[p] = true
	}
	for n, i := range c.names {
		switch {
		case n == Zero:
			w[i] = wZero
		case pins[n]:
			w[i] = s.Wire(n)
		default:
			w[i] = s.c.alloc()
		}
	}
	for i, p := range c.parts {
		sub := &Socket{m: make(map[string]int, len(c.pins[i])), c: s.c}
		for k, n := range c.pins[i] {
			sub.m[k] = w[n]
		}
		cs = append(cs, p.Mount(sub)...)
	}
	return cs
}

// Chip composes existing parts into a new part packaged into a chip.
// The pin names given as inputs and outputs, like "a, b", will be the inputs
// and outputs of the chip. Sub parts refer to them as wire names.
//
// A chip delaying its input by two cycles could be created like this:
//
//	reg2, err := Chip("REG2", "in", "out",
//		reg("in=in, out=tmp"),
//		reg("in=tmp, out=out"),
//	)
//
// The returned value is a function of type NewPartFn that can be used to
// compose the new part with others into circuits or other chips:
//
//	reg4, err := Chip("REG4", "in", "out",
//		reg2("in=in, out=tmp"),
//		reg2("in=tmp, out=out"),
//	)
//
// Every chip output must be driven by a sub part, and chip inputs cannot be
// driven by sub parts.
//
func Chip(name string, inputs, outputs string, parts ...Part) (NewPartFn, error) {
	in, err := parsePins(inputs)
	if err != nil {
		return nil, errors.Wrap(err, name+" inputs")
	}
	out, err := parsePins(outputs)
	if err != nil {
		return nil, errors.Wrap(err, name+" outputs")
	}
	seen := make(map[string]bool, len(in)+len(out))
	for _, p := range append(append([]string(nil), in...), out...) {
		if seen[p] {
			return nil, errors.New(name + ": duplicate pin name " + p)
		}
		seen[p] = true
	}

	names, pins, drivers, err := wire(parts, name, in)
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		if o == Zero {
			return nil, errors.New(name + "." + o + ": output pin connected to constant zero")
		}
		if _, ok := drivers[o]; !ok {
			return nil, errors.New(name + "." + o + ": output pin not connected to any part output")
		}
	}

	c := &chip{
		PartSpec: PartSpec{
			Name:    name,
			Inputs:  in,
			Outputs: out,
		},
		parts: parts,
		names: names,
		pins:  pins,
	}
	c.PartSpec.Mount = c.mount
	return c.PartSpec.NewPart, nil
}
