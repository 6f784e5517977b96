package rc_test

import (
	"math"
	"testing"

	"github.com/db47h/semsim/rc"
)

func TestNetwork_Validate(t *testing.T) {
	td := []struct {
		name string
		n    rc.Network
		ok   bool
	}{
		{"ok", rc.Network{1e-7, []float64{100, 200}}, true},
		{"no_cap", rc.Network{0, []float64{100}}, false},
		{"nan_cap", rc.Network{math.NaN(), []float64{100}}, false},
		{"no_branch", rc.Network{1e-7, nil}, false},
		{"neg_r", rc.Network{1e-7, []float64{100, -1}}, false},
		{"inf_r", rc.Network{1e-7, []float64{math.Inf(1)}}, false},
		{"too_many", rc.Network{1e-7, make([]float64, 65)}, false},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			err := d.n.Validate()
			if (err == nil) != d.ok {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestCharge(t *testing.T) {
	const tau = 1.0
	// one time constant: 63.2% of the way
	if v := rc.Charge(tau, tau, 1, 0); math.Abs(v-(1-math.Exp(-1))) > 1e-15 {
		t.Errorf("charge: got %v", v)
	}
	if v := rc.Charge(tau, tau, 0, 1); math.Abs(v-math.Exp(-1)) > 1e-15 {
		t.Errorf("discharge: got %v", v)
	}
	if v := rc.Charge(0, tau, 1, 0.25); v != 0.25 {
		t.Errorf("t=0: got %v", v)
	}
}

func TestNetwork_Settle(t *testing.T) {
	n := rc.Network{Capacitor: 1e-7, Resistors: []float64{100, 100, 200}}
	td := []struct {
		p   uint64
		exp float64
	}{
		{0, 0}, {1, 0.4}, {3, 0.8}, {7, 1}, {4, 0.2},
	}
	for _, d := range td {
		if v := n.Settle(d.p); math.Abs(v-d.exp) > 1e-12 {
			t.Errorf("Settle(%b) = %v, expected %v", d.p, v, d.exp)
		}
	}
	if tau := n.Tau(); math.Abs(tau-1e-7/(0.025)) > 1e-18 {
		t.Errorf("Tau() = %v", tau)
	}
}

func TestNetwork_Step(t *testing.T) {
	n := rc.Network{Capacitor: 1e-7, Resistors: []float64{100}}
	const dt = 1e-8
	v := 0.5
	for i := 0; i < 10000; i++ {
		nv := n.Step(v, 1, dt)
		if nv < v {
			t.Fatalf("step %d: voltage decreased from %v to %v", i, v, nv)
		}
		v = nv
	}
	if exp := 1 - 0.5*math.Exp(-10000*dt/n.Tau()); math.Abs(v-exp) > 1e-9 {
		t.Errorf("got %v, expected %v", v, exp)
	}
}

func TestNetwork_Euler(t *testing.T) {
	// for dt << tau, the Euler step matches the exact solution to first order.
	n := rc.Network{Capacitor: 1e-7, Resistors: []float64{100, 330, 1000}}
	const dt = 1e-9
	for p := uint64(0); p < 8; p++ {
		for _, v := range []float64{0, 0.3, 0.5, 1} {
			e, x := n.Euler(v, p, dt), n.Step(v, p, dt)
			if d := math.Abs(e - x); d > 1e-7 {
				t.Errorf("Euler(%v, %b) = %v, exact %v", v, p, e, x)
			}
		}
	}
}
