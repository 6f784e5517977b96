// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package fixed

import (
	"github.com/pkg/errors"
)

func result(raw int64, frac, width uint, signed bool, op string) Value {
	if width > maxWidth(signed) {
		panic(errors.Wrapf(ErrWidth, "%s: %d bits", op, width))
	}
	return Value{raw: raw, frac: frac, width: width, signed: signed}
}

// align shifts the operand with fewer fractional bits so that both share the
// same scale. It returns the shifted raw values and their widths.
//
func align(a, b Value, op string) (ra, rb int64, wa, wb, frac uint) {
	ra, rb, wa, wb, frac = a.raw, b.raw, a.width, b.width, a.frac
	switch {
	case a.frac > b.frac:
		d := a.frac - b.frac
		wb += d
		rb <<= d
	case b.frac > a.frac:
		d := b.frac - a.frac
		wa += d
		ra <<= d
		frac = b.frac
	}
	if m := maxWidth(a.signed || b.signed); wa > m || wb > m {
		panic(errors.Wrapf(ErrWidth, "%s: alignment to %d fractional bits", op, frac))
	}
	return
}

func umax(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

func checkSign(a, b Value, op string) {
	if a.signed != b.signed {
		panic(errors.Wrapf(ErrSignedness, "%s: mixed signed and unsigned operands", op))
	}
}

// Add returns a + b. The operands must have the same signedness.
//
//	frac = max(a.frac, b.frac)
//	width = max(aligned widths) + 1
//
func Add(a, b Value) Value {
	checkSign(a, b, "add")
	ra, rb, wa, wb, f := align(a, b, "add")
	return result(ra+rb, f, umax(wa, wb)+1, a.signed, "add")
}

// Sub returns a - b. The operands must have the same signedness. The result
// is always signed.
//
//	frac = max(a.frac, b.frac)
//	width = max(aligned widths) + 1
//
func Sub(a, b Value) Value {
	checkSign(a, b, "sub")
	ra, rb, wa, wb, f := align(a, b, "sub")
	return result(ra-rb, f, umax(wa, wb)+1, true, "sub")
}

// Mul returns a * b. The result is signed if either operand is signed.
//
//	frac = a.frac + b.frac
//	width = a.width + b.width
//
func Mul(a, b Value) Value {
	return result(a.raw*b.raw, a.frac+b.frac, a.width+b.width, a.signed || b.signed, "mul")
}

// Neg returns -a. a must be signed.
//
func Neg(a Value) Value {
	if !a.signed {
		panic(errors.Wrap(ErrSignedness, "neg: unsigned operand"))
	}
	return result(-a.raw, a.frac, a.width+1, true, "neg")
}

// Abs returns the magnitude of a. Unsigned values are returned unchanged.
//
func Abs(a Value) Value {
	if !a.signed {
		return a
	}
	if a.raw < 0 {
		return Neg(a)
	}
	return result(a.raw, a.frac, a.width+1, true, "abs")
}

// AddInt returns a + v, v being a plain integer.
//
func AddInt(a Value, v int64) Value { return Add(a, Int(v)) }

// SubInt returns a - v, v being a plain integer.
//
func SubInt(a Value, v int64) Value { return Sub(a, Int(v)) }

// MulInt returns a * v, v being a plain integer. The result keeps a's scale.
//
func MulInt(a Value, v int64) Value { return Mul(a, Int(v)) }

// Cmp compares a and b after alignment and returns -1 if a < b, 0 if a == b
// and +1 if a > b.
//
func Cmp(a, b Value) int {
	ra, rb, _, _, _ := align(a, b, "cmp")
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// Assign returns src shifted to dst's scale and wrapped to dst's width and
// signedness. Excess fractional bits are truncated toward negative infinity.
// dst's own raw value is ignored.
//
//	dst = src << (dst.frac - src.frac)
//
func Assign(dst, src Value) Value {
	raw := src.raw
	switch {
	case dst.frac >= src.frac:
		d := dst.frac - src.frac
		if d >= 64 {
			raw = 0
		} else {
			raw <<= d
		}
	default:
		d := src.frac - dst.frac
		if d >= 64 {
			d = 63
		}
		raw >>= d
	}
	return dst.SetRaw(raw)
}

// Elaborate runs f, typically a dry run of a datapath, and returns any error
// raised by the arithmetic helpers of this package. Other panics are
// propagated.
//
func Elaborate(f func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			switch errors.Cause(e) {
			case ErrSignedness, ErrInvalidArgument, ErrWidth:
				err = e
				return
			}
		}
		panic(r)
	}()
	f()
	return nil
}
