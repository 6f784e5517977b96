// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"time"

	"github.com/db47h/semsim"
	"github.com/db47h/semsim/dac"
	"github.com/db47h/semsim/internal/config"
	"github.com/db47h/semsim/semlib"
	"github.com/db47h/semsim/trace"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// simulate runs a sawtooth ramp through a DAC controller driving its RC
// network and returns the trace of c.Run.Cycles controller cycles.
//
func simulate(c config.Config, workers int) (*trace.Recorder, error) {
	cfg, err := c.DAC()
	if err != nil {
		return nil, err
	}
	ctrl, err := dac.New(cfg)
	if err != nil {
		return nil, err
	}
	reg := ctrl.Register()
	lo, hi, step := ctrl.Quantize(c.Run.Lo), ctrl.Quantize(c.Run.Hi), ctrl.Quantize(c.Run.Step)
	if step.Raw() <= 0 {
		return nil, errors.Errorf("ramp step %v below register resolution %v", c.Run.Step, reg.LSB())
	}

	ch, err := semlib.Channel(ctrl)
	if err != nil {
		return nil, err
	}
	rec := new(trace.Recorder)
	circ, err := semsim.NewCircuit(workers,
		semlib.Sawtooth(lo, hi, step)("out=target"),
		ch("in=target, pwm=pattern, estimate=estimate, plant=plant"),
		semlib.Trace(rec, reg.Frac())("target=target, pwm=pattern, estimate=estimate, plant=plant"),
	)
	if err != nil {
		return nil, err
	}
	defer circ.Dispose()

	glog.V(1).Infof("%d components, %d wires, register %v, coefficients %v",
		circ.Size(), circ.Wires(), reg, ctrl.Coefficients())
	start := time.Now()
	// records lag by two cycles.
	circ.Run(c.Run.Cycles + 2)
	elapsed := time.Since(start)
	glog.Infof("%d steps in %v => %.2f Hz", circ.Steps(), elapsed, float64(circ.Steps())/elapsed.Seconds())
	return rec, nil
}
