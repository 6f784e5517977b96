// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"github.com/db47h/semsim"
	"github.com/db47h/semsim/fixed"
)

// Sawtooth returns a ramp generator. The output starts at lo and increases by
// step every clock cycle. Once it would exceed hi, it restarts at lo.
// The output is the raw value of the ramp in lo's scale.
//
// lo, hi and step must have the same signedness.
//
//	Outputs: out
//	Function: out(t+1) = out(t) + step > hi ? lo : out(t) + step
//
func Sawtooth(lo, hi, step fixed.Value) semsim.NewPartFn {
	return (&semsim.PartSpec{
		Name:    "Sawtooth",
		Outputs: []string{pOut},
		Mount: func(s *semsim.Socket) []semsim.Component {
			out := s.Wire(pOut)
			cur := lo
			return []semsim.Component{func(c *semsim.Circuit) {
				c.Set(out, cur.Raw())
				next := fixed.Add(cur, step)
				if fixed.Cmp(next, hi) > 0 {
					cur = lo
				} else {
					cur = fixed.Assign(lo, next)
				}
			}}
		}}).NewPart
}
