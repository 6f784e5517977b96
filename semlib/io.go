// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import "github.com/db47h/semsim"

// Input creates a function based input.
//
//	Outputs: out
//	Function: out = f()
//
func Input(f func() int64) semsim.NewPartFn {
	p := &semsim.PartSpec{
		Name:    "Input",
		Inputs:  nil,
		Outputs: []string{pOut},
		Mount: func(s *semsim.Socket) []semsim.Component {
			out := s.Wire(pOut)
			return []semsim.Component{
				func(c *semsim.Circuit) {
					c.Set(out, f())
				},
			}
		},
	}
	return p.NewPart
}

// Output creates an output or probe. The fn function is
// called with the named wire state on every clock cycle.
//
// Probes are called from the circuit's worker goroutines. Several probes
// writing to shared state must synchronize.
//
//	Inputs: in
//	Function: f(in)
//
func Output(f func(int64)) semsim.NewPartFn {
	p := &semsim.PartSpec{
		Name:    "Output",
		Inputs:  []string{pIn},
		Outputs: nil,
		Mount: func(s *semsim.Socket) []semsim.Component {
			in := s.Wire(pIn)
			return []semsim.Component{
				func(c *semsim.Circuit) { f(c.Get(in)) },
			}
		},
	}
	return p.NewPart
}
