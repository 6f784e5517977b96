// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"strconv"

	"github.com/db47h/semsim"
	"github.com/db47h/semsim/dac"
)

// DAC returns a closed-loop RC DAC controller. The input is the raw target
// value in ctrl's register scale. Each mounted part keeps its own estimate,
// starting from ctrl's current estimate; ctrl itself is never modified.
//
//	Inputs: in
//	Outputs: pwm, vout
//	Function: pwm(t+1), vout(t+1) = ctrl.Next(vout(t), in(t))
//
func DAC(ctrl *dac.Controller) semsim.NewPartFn {
	return (&semsim.PartSpec{
		Name:    "DAC" + strconv.Itoa(ctrl.Branches()),
		Inputs:  []string{pIn},
		Outputs: []string{pPWM, pVOut},
		Mount: func(s *semsim.Socket) []semsim.Component {
			in, pwm, vout := s.Wire(pIn), s.Wire(pPWM), s.Wire(pVOut)
			reg := ctrl.Register()
			v := ctrl.VOut()
			return []semsim.Component{func(c *semsim.Circuit) {
				var p uint64
				p, v = ctrl.Next(v, reg.SetRaw(c.Get(in)))
				c.Set(pwm, int64(p))
				c.Set(vout, v.Raw())
			}}
		}}).NewPart
}
