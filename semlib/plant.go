// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"github.com/db47h/semsim"
	"github.com/db47h/semsim/fixed"
	"github.com/db47h/semsim/rc"
)

// Plant returns a model of the analog RC network driven by a DAC. The network
// starts at voltage v0 and is integrated exactly over each clock period dt.
// The output is the network voltage quantized to reg's scale, as an ADC
// would sample it.
//
//	Inputs: pwm
//	Outputs: vout
//	Function: vout(t+1) = quantize(v(t+dt)), v driven by pwm(t)
//
func Plant(net rc.Network, dt, v0 float64, reg fixed.Value) semsim.NewPartFn {
	return (&semsim.PartSpec{
		Name:    "Plant",
		Inputs:  []string{pPWM},
		Outputs: []string{pVOut},
		Mount: func(s *semsim.Socket) []semsim.Component {
			pwm, vout := s.Wire(pPWM), s.Wire(pVOut)
			v := v0
			return []semsim.Component{func(c *semsim.Circuit) {
				v = net.Step(v, uint64(c.Get(pwm)), dt)
				q, err := reg.SetFloat(v)
				if err != nil {
					panic(err)
				}
				c.Set(vout, q.Raw())
			}}
		}}).NewPart
}
