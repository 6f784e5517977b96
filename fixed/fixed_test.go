package fixed_test

import (
	"math"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/db47h/semsim/fixed"
	"github.com/pkg/errors"
)

func mustConst(t *testing.T, intBits, fracBits int, v float64, signed bool) fixed.Value {
	t.Helper()
	c, err := fixed.Const(intBits, fracBits, v, signed)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestConst_roundTrip(t *testing.T) {
	for _, frac := range []int{0, 1, 8, 16, 20, 30} {
		lsb := math.Ldexp(1, -frac)
		f := func(x int32) bool {
			// x maps to [-4, 4)
			v := float64(x) / (1 << 29)
			c, err := fixed.Const(4, frac, v, true)
			if err != nil {
				t.Log(err)
				return false
			}
			return math.Abs(fixed.ToReal(c.Raw(), c.Frac())-v) <= lsb/2
		}
		if err := quick.Check(f, nil); err != nil {
			t.Fatalf("frac=%d: %v", frac, err)
		}
	}
}

func TestConst_tiesToEven(t *testing.T) {
	td := []struct {
		v   float64
		raw int64
	}{
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{-0.5, 0},
		{-1.5, -2},
		{0.25, 0},
		{0.75, 1},
	}
	for _, d := range td {
		c := mustConst(t, 8, 0, d.v, true)
		if c.Raw() != d.raw {
			t.Errorf("Const(%v) raw = %d, expected %d", d.v, c.Raw(), d.raw)
		}
	}
}

func TestConst_errors(t *testing.T) {
	td := []struct {
		name          string
		intBits, frac int
		v             float64
		signed        bool
		cause         error
	}{
		{"negative_unsigned", 4, 4, -0.25, false, fixed.ErrSignedness},
		{"nan", 4, 4, math.NaN(), true, fixed.ErrInvalidArgument},
		{"inf", 4, 4, math.Inf(1), true, fixed.ErrInvalidArgument},
		{"zero_width", 0, 0, 1, true, fixed.ErrInvalidArgument},
		{"too_wide", 40, 25, 1, true, fixed.ErrInvalidArgument},
		{"too_wide_unsigned", 40, 24, 1, false, fixed.ErrInvalidArgument},
		{"negative_frac", 4, -1, 1, true, fixed.ErrInvalidArgument},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			_, err := fixed.Const(d.intBits, d.frac, d.v, d.signed)
			if errors.Cause(err) != d.cause {
				t.Errorf("got error %v, expected %v", err, d.cause)
			}
		})
	}
}

func TestConst_wraps(t *testing.T) {
	// sq1.3: [-1, 0.875]
	c := mustConst(t, 1, 3, 1.0, true)
	if c.Float() != -1 {
		t.Errorf("expected 1.0 to wrap to -1, got %v", c)
	}
	// uq2.2: [0, 3.75]
	c = mustConst(t, 2, 2, 5.25, false)
	if c.Float() != 1.25 {
		t.Errorf("expected 5.25 to wrap to 1.25, got %v", c)
	}
}

func TestSetFloat_wide(t *testing.T) {
	r, err := fixed.Register(64, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		f   float64
		raw int64
	}{
		{1.5 * (1 << 63), -1 << 62},
		{3 * (1 << 63), -1 << 63},
		{-1.5 * (1 << 63), 1 << 62},
		{1 << 64, 0},
	} {
		v, err := r.SetFloat(tc.f)
		if err != nil {
			t.Fatal(err)
		}
		if v.Raw() != tc.raw {
			t.Errorf("SetFloat(%v).Raw() = %d, expected %d", tc.f, v.Raw(), tc.raw)
		}
	}
	// sq16.0 keeps the low 16 bits.
	r, _ = fixed.Register(16, 0, true)
	v, err := r.SetFloat(1<<63 + 1<<12)
	if err != nil {
		t.Fatal(err)
	}
	if v.Raw() != 1<<12 {
		t.Errorf("SetFloat(2^63+2^12).Raw() = %d, expected %d", v.Raw(), 1<<12)
	}
}

func TestFromRaw(t *testing.T) {
	v, err := fixed.FromRaw(-3, 2, 4, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.Float() != -0.75 || v.Width() != 4 || !v.Signed() {
		t.Errorf("unexpected value %v", v)
	}
	if _, err = fixed.FromRaw(8, 2, 4, true); errors.Cause(err) != fixed.ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument for out of range raw value, got %v", err)
	}
	if _, err = fixed.FromRaw(-1, 2, 4, false); errors.Cause(err) != fixed.ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument for negative unsigned raw value, got %v", err)
	}
	if _, err = fixed.FromRaw(0, 2, 0, false); errors.Cause(err) != fixed.ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument for zero width, got %v", err)
	}
}

func TestInt(t *testing.T) {
	td := []struct {
		v     int64
		width uint
	}{
		{0, 1}, {-1, 1}, {1, 2}, {-2, 2}, {3, 3}, {-4, 3}, {255, 9}, {-256, 9},
	}
	for _, d := range td {
		i := fixed.Int(d.v)
		if i.Width() != d.width || i.Raw() != d.v || i.Frac() != 0 || !i.Signed() {
			t.Errorf("Int(%d) = raw %d width %d, expected width %d", d.v, i.Raw(), i.Width(), d.width)
		}
	}
}

func randValue(r *rand.Rand, intBits, frac int) fixed.Value {
	v, err := fixed.Register(intBits, frac, true)
	if err != nil {
		panic(err)
	}
	return v.SetRaw(r.Int63())
}

func TestAdd_scale(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		fa, fb := r.Intn(20), r.Intn(20)
		a, b := randValue(r, 8, fa), randValue(r, 6, fb)
		for _, op := range []struct {
			name string
			fn   func(a, b fixed.Value) fixed.Value
			ref  func(a, b float64) float64
		}{
			{"add", fixed.Add, func(a, b float64) float64 { return a + b }},
			{"sub", fixed.Sub, func(a, b float64) float64 { return a - b }},
		} {
			s := op.fn(a, b)
			ef := uint(fa)
			if fb > fa {
				ef = uint(fb)
			}
			if s.Frac() != ef {
				t.Fatalf("%s(%v, %v).Frac() = %d, expected %d", op.name, a, b, s.Frac(), ef)
			}
			if got, exp := s.Float(), op.ref(a.Float(), b.Float()); got != exp {
				t.Fatalf("%s(%v, %v) = %v, expected %v", op.name, a, b, got, exp)
			}
		}
	}
}

func TestAdd_width(t *testing.T) {
	a := mustConst(t, 2, 4, 1.5, true)  // 6 bits
	b := mustConst(t, 3, 1, -2.5, true) // 4 bits, aligned to 7
	s := fixed.Add(a, b)
	if s.Width() != 8 || s.Frac() != 4 || s.Float() != -1 {
		t.Errorf("Add(%v, %v) = %v width %d", a, b, s, s.Width())
	}
	// carry
	a = mustConst(t, 1, 3, -1, true)
	s = fixed.Add(a, a)
	if s.Float() != -2 || s.Width() != 5 {
		t.Errorf("Add(%v, %v) = %v width %d", a, a, s, s.Width())
	}
	// unsigned add stays unsigned, unsigned sub is signed.
	u := mustConst(t, 2, 2, 1.25, false)
	v := mustConst(t, 2, 2, 3.5, false)
	if s = fixed.Add(u, v); s.Signed() || s.Float() != 4.75 {
		t.Errorf("Add(%v, %v) = %v", u, v, s)
	}
	if s = fixed.Sub(u, v); !s.Signed() || s.Float() != -2.25 {
		t.Errorf("Sub(%v, %v) = %v", u, v, s)
	}
}

func TestMul_scale(t *testing.T) {
	f := func(x, y int16, fa, fb uint8) bool {
		fa, fb = fa%24, fb%24
		a, err := fixed.FromRaw(int64(x), uint(fa), 16, true)
		if err != nil {
			return false
		}
		b, err := fixed.FromRaw(int64(y), uint(fb), 16, true)
		if err != nil {
			return false
		}
		m := fixed.Mul(a, b)
		return m.Frac() == uint(fa+fb) && m.Width() == 32 &&
			fixed.ToReal(m.Raw(), m.Frac()) == a.Float()*b.Float()
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestMul_quantized(t *testing.T) {
	const frac = 20
	a := mustConst(t, 1, frac, 0.3, true)
	b := mustConst(t, 4, frac, 4.4, true)
	m := fixed.Mul(a, b)
	// each operand is off by at most lsb/2
	lsb := math.Ldexp(1, -frac)
	if d := math.Abs(m.Float() - 0.3*4.4); d > lsb/2*(0.3+4.4)+lsb*lsb/4 {
		t.Errorf("Mul(%v, %v) = %v, too far from %v", a, b, m, 0.3*4.4)
	}
}

func TestNegAbs(t *testing.T) {
	a := mustConst(t, 1, 3, -1, true)
	n := fixed.Neg(a)
	if n.Float() != 1 || n.Width() != 5 {
		t.Errorf("Neg(%v) = %v", a, n)
	}
	if x := fixed.Abs(a); x.Float() != 1 {
		t.Errorf("Abs(%v) = %v", a, x)
	}
	b := mustConst(t, 1, 3, 0.5, true)
	if x := fixed.Abs(b); x.Float() != 0.5 || x.Width() != 5 {
		t.Errorf("Abs(%v) = %v width %d", b, x, x.Width())
	}
	u := mustConst(t, 1, 3, 0.5, false)
	if x := fixed.Abs(u); x != u {
		t.Errorf("Abs(%v) = %v", u, x)
	}
}

func TestIntOperands(t *testing.T) {
	a := mustConst(t, 2, 4, 1.25, true)
	if s := fixed.AddInt(a, 2); s.Float() != 3.25 || s.Frac() != 4 {
		t.Errorf("AddInt(%v, 2) = %v", a, s)
	}
	if s := fixed.SubInt(a, 2); s.Float() != -0.75 {
		t.Errorf("SubInt(%v, 2) = %v", a, s)
	}
	if m := fixed.MulInt(a, -3); m.Float() != -3.75 || m.Frac() != 4 {
		t.Errorf("MulInt(%v, -3) = %v", a, m)
	}
	if s := fixed.Sub(fixed.Int(1), a); s.Float() != -0.25 {
		t.Errorf("Sub(1, %v) = %v", a, s)
	}
}

func TestCmp(t *testing.T) {
	a := mustConst(t, 2, 4, 0.5, true)
	b := mustConst(t, 2, 12, 0.5+1.0/4096, true)
	c := mustConst(t, 2, 1, -0.5, true)
	td := []struct {
		a, b fixed.Value
		exp  int
	}{
		{a, b, -1}, {b, a, 1}, {a, a, 0}, {c, a, -1}, {a, fixed.Int(0), 1},
		{mustConst(t, 2, 1, 0.5, true), a, 0},
	}
	for _, d := range td {
		if r := fixed.Cmp(d.a, d.b); r != d.exp {
			t.Errorf("Cmp(%v, %v) = %d, expected %d", d.a, d.b, r, d.exp)
		}
	}
}

func TestAssign(t *testing.T) {
	dst, err := fixed.Register(2, 4, true)
	if err != nil {
		t.Fatal(err)
	}
	td := []struct {
		name string
		src  fixed.Value
		exp  float64
	}{
		{"widen", mustConst(t, 2, 2, 1.25, true), 1.25},
		{"truncate", mustConst(t, 2, 8, 0.5+1.0/32+1.0/256, true), 0.5},
		{"floor", mustConst(t, 2, 8, -(0.5 + 1.0/256), true), -0.5625},
		{"wrap", mustConst(t, 4, 4, 2.5, true), -1.5},
		{"int", fixed.Int(1), 1},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			v := fixed.Assign(dst, d.src)
			if v.Float() != d.exp || v.Frac() != 4 || v.Width() != 6 {
				t.Errorf("Assign(%v) = %v, expected %v", d.src, v, d.exp)
			}
		})
	}
	// unsigned destination
	udst, err := fixed.Register(1, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if v := fixed.Assign(udst, mustConst(t, 2, 3, -0.125, true)); v.Raw() != 15 {
		t.Errorf("Assign to unsigned: raw %d, expected 15", v.Raw())
	}
}

func TestArith_errors(t *testing.T) {
	s := mustConst(t, 2, 2, 1, true)
	u := mustConst(t, 2, 2, 1, false)
	wide := mustConst(t, 2, 40, 1, true)
	td := []struct {
		name  string
		fn    func()
		cause error
	}{
		{"add_mixed", func() { fixed.Add(s, u) }, fixed.ErrSignedness},
		{"sub_mixed", func() { fixed.Sub(u, s) }, fixed.ErrSignedness},
		{"neg_unsigned", func() { fixed.Neg(u) }, fixed.ErrSignedness},
		{"mul_width", func() { fixed.Mul(wide, wide) }, fixed.ErrWidth},
		{"add_align", func() { fixed.Add(wide, fixed.Int(1<<30)) }, fixed.ErrWidth},
		{"ok", func() { fixed.Mul(s, u) }, nil},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			err := fixed.Elaborate(d.fn)
			if errors.Cause(err) != d.cause {
				t.Errorf("got error %v, expected %v", err, d.cause)
			}
		})
	}
}

func TestElaborate_propagates(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected panic %q, got %v", "boom", r)
		}
	}()
	fixed.Elaborate(func() { panic("boom") })
}

func TestString(t *testing.T) {
	v := mustConst(t, 2, 19, 0.5, true)
	if s := v.String(); s != "0.5 (sq2.19)" {
		t.Errorf("String() = %q", s)
	}
	u := mustConst(t, 0, 16, 0.25, false)
	if s := u.String(); s != "0.25 (uq0.16)" {
		t.Errorf("String() = %q", s)
	}
}
