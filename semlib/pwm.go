// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"strconv"

	"github.com/db47h/semsim"
)

// PWM returns an open-loop pulse width modulator: a free running counter
// compared to the duty cycle input. The counter runs from 0 to period
// inclusive.
//
//	Inputs: in
//	Outputs: out
//	Function: out = counter < in ? 1 : 0
//
func PWM(period int64) semsim.NewPartFn {
	return (&semsim.PartSpec{
		Name:    "PWM" + strconv.FormatInt(period, 10),
		Inputs:  []string{pIn},
		Outputs: []string{pOut},
		Mount: func(s *semsim.Socket) []semsim.Component {
			in, out := s.Wire(pIn), s.Wire(pOut)
			var counter int64
			return []semsim.Component{func(c *semsim.Circuit) {
				if counter < c.Get(in) {
					c.Set(out, 1)
				} else {
					c.Set(out, 0)
				}
				if counter >= period {
					counter = 0
				} else {
					counter++
				}
			}}
		}}).NewPart
}
