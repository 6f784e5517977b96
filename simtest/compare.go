// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package simtest provides utility functions for testing parts.
//
package simtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/db47h/semsim"
	"github.com/db47h/semsim/semlib"
)

// An InputFn returns the value of input pin number pin at the given cycle.
// It is called concurrently from the circuit's workers and must not modify
// shared state.
//
type InputFn func(cycle int, pin int) int64

func connString(pins []string, prefix string) string {
	var b strings.Builder
	for _, n := range pins {
		if b.Len() > 0 {
			b.WriteRune(',')
		}
		b.WriteString(n)
		b.WriteRune('=')
		b.WriteString(prefix)
		b.WriteString(n)
	}
	return b.String()
}

func join(a, b string) string {
	if a == "" || b == "" {
		return a + b
	}
	return a + "," + b
}

func sameSpec(t testing.TB, ps1, ps2 semsim.Part) {
	t.Helper()
	if len(ps1.Inputs) != len(ps2.Inputs) {
		t.Fatal("len(ps1.Inputs) != len(ps2.Inputs)")
	}
	if len(ps1.Outputs) != len(ps2.Outputs) {
		t.Fatal("len(ps1.Outputs) != len(ps2.Outputs)")
	}
	for i := range ps1.Inputs {
		if ps1.Inputs[i] != ps2.Inputs[i] {
			t.Fatalf("ps1.Inputs[i] = %q != ps2.Inputs[i] = %q", ps1.Inputs[i], ps2.Inputs[i])
		}
	}
	for i := range ps1.Outputs {
		if ps1.Outputs[i] != ps2.Outputs[i] {
			t.Fatalf("ps1.Outputs[i] = %q != ps2.Outputs[i] = %q", ps1.Outputs[i], ps2.Outputs[i])
		}
	}
}

// ComparePart takes two parts and compares their outputs on every clock cycle
// given the same inputs. Both parts must have the same Input/Output interface.
//
func ComparePart(t testing.TB, cycles int, in InputFn, part1, part2 semsim.NewPartFn) {
	t.Helper()

	ps1, ps2 := part1(""), part2("")
	sameSpec(t, ps1, ps2)

	var (
		cycle   int
		inputs  = make([]int64, len(ps1.Inputs))
		outputs = make([][2]int64, len(ps1.Outputs))
		parts   semsim.Parts
	)
	for i, n := range ps1.Inputs {
		pin := i
		parts = append(parts, semlib.Input(func() int64 {
			v := in(cycle, pin)
			inputs[pin] = v
			return v
		})("out=in_"+n))
	}
	conns := connString(ps1.Inputs, "in_")
	parts = append(parts,
		part1(join(conns, connString(ps1.Outputs, "a_"))),
		part2(join(conns, connString(ps1.Outputs, "b_"))))
	for i, o := range ps1.Outputs {
		n := i
		parts = append(parts,
			semlib.Output(func(v int64) { outputs[n][0] = v })("in=a_"+o),
			semlib.Output(func(v int64) { outputs[n][1] = v })("in=b_"+o))
	}

	c, err := semsim.NewCircuit(0, parts...)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()

	// inputs generated at step n reach the parts at step n+1, and the
	// probes read their outputs at step n+2.
	const latency = 2
	var hist [latency + 1][]int64
	for i := range hist {
		hist[i] = make([]int64, len(ps1.Inputs))
	}

	errString := func(oname string, ex, got int64) string {
		src := cycle - latency
		vals, at := make([]int64, len(ps1.Inputs)), "reset"
		if src >= 0 {
			vals, at = hist[src%len(hist)], fmt.Sprintf("cycle %d", src)
		}
		var b strings.Builder
		for i, n := range ps1.Inputs {
			if b.Len() > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", n, vals[i])
		}
		return fmt.Sprintf("\n%s: inputs %s => %s=%d\nGot %d (step %d)", at, b.String(), oname, ex, got, cycle)
	}

	start := time.Now()

	for cycle = 0; cycle < cycles; cycle++ {
		c.Step()
		copy(hist[cycle%len(hist)], inputs)
		for o, out := range outputs {
			if out[0] != out[1] {
				t.Fatal(errString(ps1.Outputs[o], out[0], out[1]))
			}
		}
	}

	elapsed := time.Since(start)
	t.Logf("%d components. %d steps in %v => %.2f Hz", c.Size(), c.Steps(), elapsed, float64(c.Steps())/elapsed.Seconds())
}
