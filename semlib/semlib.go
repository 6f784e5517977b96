// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package semlib provides a library of reusable parts for semsim: probes,
// signal generators, the closed-loop RC DAC controller and a model of the
// analog RC network it drives.
//
package semlib

// common pin names
const (
	pIn   = "in"
	pOut  = "out"
	pPWM  = "pwm"
	pVOut = "vout"
)
