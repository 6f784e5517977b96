// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"github.com/db47h/semsim"
	"github.com/db47h/semsim/fixed"
	"github.com/db47h/semsim/trace"
)

// Trace returns a part that records a DAC and its plant into rec. All wires
// hold raw values with frac fractional bits, except pwm.
//
// The part realigns its inputs so that each record holds the target a DAC
// cycle was computed for, the resulting pattern and estimate, and the plant
// voltage after that pattern was applied. Records therefore lag the
// simulation by two cycles.
//
//	Inputs: target, pwm, estimate, plant
//
func Trace(rec *trace.Recorder, frac uint) semsim.NewPartFn {
	return (&semsim.PartSpec{
		Name:   "Trace",
		Inputs: []string{"target", pPWM, "estimate", "plant"},
		Mount: func(s *semsim.Socket) []semsim.Component {
			target, pwm, est, plant := s.Wire("target"), s.Wire(pPWM), s.Wire("estimate"), s.Wire("plant")
			var (
				n  uint64
				tq [2]int64
				p  int64
				e  int64
			)
			return []semsim.Component{func(c *semsim.Circuit) {
				if n >= 2 {
					rec.Add(trace.Record{
						Cycle:    n - 1,
						Target:   fixed.ToReal(tq[1], frac),
						Pattern:  uint64(p),
						Estimate: fixed.ToReal(e, frac),
						Plant:    fixed.ToReal(c.Get(plant), frac),
					})
				}
				tq[1], tq[0] = tq[0], c.Get(target)
				p, e = c.Get(pwm), c.Get(est)
				n++
			}}
		}}).NewPart
}
