// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semlib

import (
	"github.com/db47h/semsim"
	"github.com/db47h/semsim/dac"
)

// Channel returns a DAC controller driving its own RC network, packaged as a
// chip. The network starts at the controller's current estimate.
//
//	Inputs: in
//	Outputs: pwm, estimate, plant
//	Function: DAC(in=in, pwm=pwm, vout=estimate) -> Plant(pwm=pwm, vout=plant)
//
func Channel(ctrl *dac.Controller) (semsim.NewPartFn, error) {
	return semsim.Chip("Channel", pIn, "pwm, estimate, plant",
		DAC(ctrl)("in=in, pwm=pwm, vout=estimate"),
		Plant(ctrl.Network(), ctrl.DeltaTime(), ctrl.VOut().Float(), ctrl.Register())("pwm=pwm, vout=plant"),
	)
}
