// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package fixed implements fixed-point values as they are laid out in
// hardware registers: a raw integer of a given bit width and signedness,
// scaled by 2^-frac.
//
// Arithmetic (Add, Sub, Mul, Neg, Abs) is exact: the result grows as many
// bits as needed and never loses precision. The only lossy operation is
// Assign, which shifts a value into the scale of a destination register and
// wraps it to that register's width, the same way a synchronous assignment
// to a narrower signal would.
//
// Values are limited to 64 bits (63 for unsigned values). Operations whose
// exact result would not fit panic with ErrWidth. Such panics are elaboration
// errors: a datapath built from fixed widths either always fits or never
// does. Use Elaborate to turn them into errors.
//
package fixed

import (
	"math"
	"math/bits"
	"strconv"

	"github.com/pkg/errors"
)

// MaxWidth is the widest supported register.
//
const MaxWidth = 64

// Errors returned (or raised by arithmetic helpers) by this package. Use
// errors.Cause to compare.
//
var (
	ErrSignedness      = errors.New("signedness mismatch")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrWidth           = errors.New("result too wide")
)

// A Value is a fixed-point number. The zero Value is not a valid register;
// use Register, Const or FromRaw.
//
type Value struct {
	raw    int64
	frac   uint
	width  uint
	signed bool
}

func maxWidth(signed bool) uint {
	if signed {
		return MaxWidth
	}
	return MaxWidth - 1
}

func checkShape(intBits, fracBits int, signed bool) (width, frac uint, err error) {
	if fracBits < 0 {
		return 0, 0, errors.Wrap(ErrInvalidArgument, "negative fractional bit count "+strconv.Itoa(fracBits))
	}
	w := intBits + fracBits
	if w <= 0 || uint(w) > maxWidth(signed) {
		return 0, 0, errors.Wrap(ErrInvalidArgument, "unsupported register width "+strconv.Itoa(w))
	}
	return uint(w), uint(fracBits), nil
}

// wrap truncates raw to width bits, sign-extending signed values.
//
func wrap(raw int64, width uint, signed bool) int64 {
	if width >= 64 {
		return raw
	}
	if signed {
		s := 64 - width
		return raw << s >> s
	}
	return raw & (1<<width - 1)
}

// Register returns a zero-valued register with intBits integer bits and
// fracBits fractional bits. The register width is intBits+fracBits; for
// signed registers the sign bit is one of the integer bits. intBits may be
// negative as long as the resulting width is positive.
//
func Register(intBits, fracBits int, signed bool) (Value, error) {
	w, f, err := checkShape(intBits, fracBits, signed)
	if err != nil {
		return Value{}, err
	}
	return Value{frac: f, width: w, signed: signed}, nil
}

// Const returns a register of the given shape holding v rounded to the
// nearest multiple of 2^-fracBits (ties to even). Values out of range wrap.
//
// A negative v cannot be stored into an unsigned register: Const returns an
// error wrapping ErrSignedness.
//
func Const(intBits, fracBits int, v float64, signed bool) (Value, error) {
	r, err := Register(intBits, fracBits, signed)
	if err != nil {
		return Value{}, err
	}
	return r.SetFloat(v)
}

// FromRaw reinterprets raw as a fixed-point value with fracBits fractional
// bits, held in a register of the given width. No conversion takes place:
// raw must already fit in the register.
//
func FromRaw(raw int64, fracBits, width uint, signed bool) (Value, error) {
	if width == 0 || width > maxWidth(signed) {
		return Value{}, errors.Wrap(ErrInvalidArgument, "unsupported register width "+strconv.FormatUint(uint64(width), 10))
	}
	if wrap(raw, width, signed) != raw {
		return Value{}, errors.Wrapf(ErrInvalidArgument, "raw value %d does not fit in %d bits", raw, width)
	}
	return Value{raw: raw, frac: fracBits, width: width, signed: signed}, nil
}

// Int returns v as a signed fixed-point value with no fractional bits, in the
// smallest register that holds it.
//
func Int(v int64) Value {
	var w int
	if v < 0 {
		w = bits.Len64(uint64(^v)) + 1
	} else {
		w = bits.Len64(uint64(v)) + 1
	}
	return Value{raw: v, width: uint(w), signed: true}
}

// SetFloat returns a copy of register v holding f, quantized to v's scale
// with round half to even and wrapped to v's width.
//
func (v Value) SetFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.Wrapf(ErrInvalidArgument, "cannot quantize %v", f)
	}
	if f < 0 && !v.signed {
		return Value{}, errors.Wrapf(ErrSignedness, "negative constant %v for unsigned register", f)
	}
	q := math.RoundToEven(math.Ldexp(f, int(v.frac)))
	// out of int64 range: reduce modulo 2^64 first. q is integral so Mod is
	// exact and the low bits survive.
	if math.Abs(q) >= 1<<63 {
		q = math.Mod(q, 1<<64)
		if q >= 1<<63 {
			q -= 1 << 64
		} else if q < -(1 << 63) {
			q += 1 << 64
		}
	}
	v.raw = wrap(int64(q), v.width, v.signed)
	return v, nil
}

// SetRaw returns a copy of register v holding raw, wrapped to v's width.
//
func (v Value) SetRaw(raw int64) Value {
	v.raw = wrap(raw, v.width, v.signed)
	return v
}

// Raw returns the raw integer representation of v.
//
func (v Value) Raw() int64 { return v.raw }

// Frac returns the number of fractional bits of v.
//
func (v Value) Frac() uint { return v.frac }

// Width returns the register width of v in bits.
//
func (v Value) Width() uint { return v.width }

// Signed returns true if v is signed.
//
func (v Value) Signed() bool { return v.signed }

// Float returns the real value of v.
//
func (v Value) Float() float64 { return ToReal(v.raw, v.frac) }

// LSB returns the real value of one unit in the last place of v.
//
func (v Value) LSB() float64 { return math.Ldexp(1, -int(v.frac)) }

// String returns the real value of v followed by its Q format, like
// "0.5 (sq2.19)" for a signed 21 bits value with 19 fractional bits.
//
func (v Value) String() string {
	q := "uq"
	if v.signed {
		q = "sq"
	}
	return strconv.FormatFloat(v.Float(), 'g', -1, 64) + " (" + q +
		strconv.Itoa(int(v.width)-int(v.frac)) + "." + strconv.Itoa(int(v.frac)) + ")"
}

// ToReal returns raw * 2^-frac.
//
func ToReal(raw int64, frac uint) float64 {
	return math.Ldexp(float64(raw), -int(frac))
}
