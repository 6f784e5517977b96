package semlib_test

import (
	"math"
	"testing"

	"github.com/db47h/semsim"
	"github.com/db47h/semsim/dac"
	"github.com/db47h/semsim/fixed"
	sl "github.com/db47h/semsim/semlib"
	"github.com/db47h/semsim/trace"
)

// 4 branches of 100Ω on 10nF at 100MHz: k = 0.01 per branch.
var fast = dac.Config{
	DeltaTime: 1e-8,
	Capacitor: 1e-8,
	Resistors: []float64{100, 100, 100, 100},
}

func newCircuit(t *testing.T, parts ...semsim.Part) *semsim.Circuit {
	t.Helper()
	c, err := semsim.NewCircuit(0, parts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func probe(t *testing.T, c *semsim.Circuit, name string) int64 {
	t.Helper()
	v, ok := c.Probe(name)
	if !ok {
		t.Fatalf("no wire named %q", name)
	}
	return v
}

func TestInputOutput(t *testing.T) {
	var n int64
	var got []int64
	c := newCircuit(t,
		sl.Input(func() int64 { n++; return n })("out=x"),
		sl.Output(func(v int64) { got = append(got, v) })("in=x"),
	)
	defer c.Dispose()
	c.Run(5)
	// outputs see the previous cycle's inputs.
	for i, v := range got {
		if v != int64(i) {
			t.Fatalf("cycle %d: got %d, expected %d", i, v, i)
		}
	}
	if len(got) != 5 {
		t.Fatalf("got %d samples, expected 5", len(got))
	}
}

func TestSawtooth(t *testing.T) {
	reg, err := fixed.Register(2, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	step, err := fixed.Const(1, 2, 0.25, false)
	if err != nil {
		t.Fatal(err)
	}
	hi, err := reg.SetFloat(1)
	if err != nil {
		t.Fatal(err)
	}
	c := newCircuit(t, sl.Sawtooth(reg, hi, step)("out=ramp"))
	defer c.Dispose()
	for i, exp := range []int64{0, 4, 8, 12, 16, 0, 4, 8} {
		c.Step()
		if got := probe(t, c, "ramp"); got != exp {
			t.Fatalf("cycle %d: got %d, expected %d", i, got, exp)
		}
	}
}

func TestPWM(t *testing.T) {
	c := newCircuit(t,
		sl.Input(func() int64 { return 2 })("out=duty"),
		sl.PWM(3)("in=duty, out=q"),
	)
	defer c.Dispose()
	for i, exp := range []int64{0, 1, 0, 0, 1, 1, 0, 0, 1, 1} {
		c.Step()
		if got := probe(t, c, "q"); got != exp {
			t.Fatalf("cycle %d: got %d, expected %d", i, got, exp)
		}
	}
}

func TestDAC(t *testing.T) {
	ctrl, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	target := ctrl.Quantize(0.7).Raw()
	c := newCircuit(t,
		sl.Input(func() int64 { return target })("out=t"),
		sl.DAC(ctrl)("in=t, pwm=p, vout=v"),
	)
	defer c.Dispose()

	in := int64(0)
	for i := 0; i < 500; i++ {
		c.Step()
		p, v := ref.StepFixed(ref.Register().SetRaw(in))
		in = target
		if got := probe(t, c, "p"); got != int64(p) {
			t.Fatalf("cycle %d: pattern %b, expected %b", i, got, p)
		}
		if got := probe(t, c, "v"); got != v.Raw() {
			t.Fatalf("cycle %d: estimate %d, expected %d", i, got, v.Raw())
		}
	}
	// the part has its own copy of the estimate.
	if ctrl.VOut() != ctrl.Quantize(dac.DefaultInitial) {
		t.Fatalf("controller estimate changed to %v", ctrl.VOut())
	}
}

func TestPlant(t *testing.T) {
	ctrl, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	net, dt, reg := ctrl.Network(), ctrl.DeltaTime(), ctrl.Register()
	c := newCircuit(t,
		sl.Input(func() int64 { return 0x5 })("out=p"),
		sl.Plant(net, dt, 0.25, reg)("pwm=p, vout=v"),
	)
	defer c.Dispose()

	v, p := 0.25, uint64(0)
	for i := 0; i < 200; i++ {
		c.Step()
		v = net.Step(v, p, dt)
		p = 0x5
		q, err := reg.SetFloat(v)
		if err != nil {
			t.Fatal(err)
		}
		if got := probe(t, c, "v"); got != q.Raw() {
			t.Fatalf("cycle %d: got %d, expected %d", i, got, q.Raw())
		}
	}
	// two branches out of four high.
	if got := fixed.ToReal(probe(t, c, "v"), reg.Frac()); math.Abs(got-0.5) > 0.01 {
		t.Fatalf("plant settled at %v, expected 0.5", got)
	}
}

func TestClosedLoop(t *testing.T) {
	ctrl, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	reg := ctrl.Register()
	lo, hi := ctrl.Quantize(0.25), ctrl.Quantize(0.75)
	c := newCircuit(t,
		sl.Sawtooth(lo, hi, reg.SetRaw(26))("out=target"),
		sl.DAC(ctrl)("in=target, pwm=pattern, vout=estimate"),
		sl.Plant(ctrl.Network(), ctrl.DeltaTime(), ctrl.VOut().Float(), reg)("pwm=pattern, vout=plant"),
	)
	defer c.Dispose()

	prev := probe(t, c, "estimate")
	for i := 0; i < 30000; i++ {
		c.Step()
		est, plant := probe(t, c, "estimate"), probe(t, c, "plant")
		// the plant lags the controller by one cycle.
		if i > 2000 {
			if d := math.Abs(fixed.ToReal(prev-plant, reg.Frac())); d > 0.02 {
				t.Fatalf("cycle %d: plant %v too far from estimate %v", i, fixed.ToReal(plant, reg.Frac()), fixed.ToReal(prev, reg.Frac()))
			}
		}
		prev = est
	}
	t.Logf("%d components, %d wires, %d steps", c.Size(), c.Wires(), c.Steps())
}

func TestTrace(t *testing.T) {
	ctrl, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	net, dt, reg := ctrl.Network(), ctrl.DeltaTime(), ctrl.Register()
	v0 := ctrl.VOut().Float()
	target := ctrl.Quantize(0.3)

	var rec trace.Recorder
	c := newCircuit(t,
		sl.Input(func() int64 { return target.Raw() })("out=target"),
		sl.DAC(ctrl)("in=target, pwm=pattern, vout=estimate"),
		sl.Plant(net, dt, v0, reg)("pwm=pattern, vout=plant"),
		sl.Trace(&rec, reg.Frac())("target=target, pwm=pattern, estimate=estimate, plant=plant"),
	)
	defer c.Dispose()
	c.Run(100)

	recs := rec.Records()
	if len(recs) != 98 {
		t.Fatalf("got %d records, expected 98", len(recs))
	}
	// the plant sees an all low pattern on the first cycle, and the DAC sees
	// a zero target.
	plant := net.Step(v0, 0, dt)
	in := reg
	for i, r := range recs {
		p, est := ref.StepFixed(in)
		plant = net.Step(plant, p, dt)
		q, err := reg.SetFloat(plant)
		if err != nil {
			t.Fatal(err)
		}
		exp := trace.Record{Cycle: uint64(i + 1), Target: in.Float(), Pattern: p, Estimate: est.Float(), Plant: q.Float()}
		if r != exp {
			t.Fatalf("record %d: got %+v, expected %+v", i, r, exp)
		}
		in = target
	}
}

func TestChannel(t *testing.T) {
	ctrl, err := dac.New(fast)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := sl.Channel(ctrl)
	if err != nil {
		t.Fatal(err)
	}
	reg := ctrl.Register()
	lo, hi := ctrl.Quantize(0.1), ctrl.Quantize(0.9)
	c := newCircuit(t,
		sl.Sawtooth(lo, hi, reg.SetRaw(300))("out=target"),
		ch("in=target, pwm=p0, estimate=e0, plant=v0"),
		sl.DAC(ctrl)("in=target, pwm=p1, vout=e1"),
		sl.Plant(ctrl.Network(), ctrl.DeltaTime(), ctrl.VOut().Float(), reg)("pwm=p1, vout=v1"),
	)
	defer c.Dispose()
	for i := 0; i < 5000; i++ {
		c.Step()
		for _, w := range [][2]string{{"p0", "p1"}, {"e0", "e1"}, {"v0", "v1"}} {
			if a, b := probe(t, c, w[0]), probe(t, c, w[1]); a != b {
				t.Fatalf("cycle %d: %s = %d, %s = %d", i, w[0], a, w[1], b)
			}
		}
	}
}
