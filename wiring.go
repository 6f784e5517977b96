// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semsim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Zero is the name of the constant zero wire. Unconnected inputs are wired to
// it.
//
const Zero = "zero"

const wZero = 0

// W is a set of wires, connecting a part's I/O pins (the map key) to wires in
// the circuit.
//
type W map[string]string

// ParseConnections parses a connection configuration like "a=b, c=d" into a W.
// Whitespace around pin and wire names is ignored.
//
func ParseConnections(c string) (W, error) {
	w := make(W)
	pos := 0
	for _, conn := range strings.Split(c, ",") {
		start := pos
		pos += len(conn) + 1
		if strings.TrimSpace(conn) == "" {
			if len(w) == 0 && strings.TrimSpace(c) == "" {
				break
			}
			return nil, parseError(c, start, "empty connection")
		}
		i := strings.IndexRune(conn, '=')
		if i < 0 {
			return nil, parseError(c, start, "expected pin=wire")
		}
		k, v := strings.TrimSpace(conn[:i]), strings.TrimSpace(conn[i+1:])
		if !isIdent(k) {
			return nil, parseError(c, start, "invalid pin name "+strconv.Quote(k))
		}
		if !isIdent(v) {
			return nil, parseError(c, start+i+1, "invalid wire name "+strconv.Quote(v))
		}
		if _, ok := w[k]; ok {
			return nil, parseError(c, start, "pin "+k+" connected more than once")
		}
		w[k] = v
	}
	return w, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func parseError(in string, pos int, msg string) error {
	return errors.Errorf("in %q at pos %d: %s", in, pos+1, msg)
}

func pinName(p Part, pin string) string {
	return p.Name + "." + pin
}

// parsePins parses a comma separated list of pin names.
//
func parsePins(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pins []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if !isIdent(p) {
			return nil, errors.New("invalid pin name " + strconv.Quote(p))
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// wire allocates wire numbers for all parts and checks the wiring: every
// connected input must be driven by exactly one output. The inputs wires are
// considered driven by owner.
//
// It returns the wire numbers by name, the pin to wire number mapping of
// each part and the driver of each wire.
//
func wire(parts []Part, owner string, inputs []string) (names map[string]int, pins []map[string]int, drivers map[string]string, err error) {
	names = map[string]int{Zero: wZero}
	pins = make([]map[string]int, len(parts))
	drivers = make(map[string]string)
	alloc := func(n string) int {
		if w, ok := names[n]; ok {
			return w
		}
		w := len(names)
		names[n] = w
		return w
	}
	for _, in := range inputs {
		if in == Zero {
			return nil, nil, nil, errors.New(owner + "." + in + ": input pin shadows constant zero")
		}
		drivers[in] = owner + "." + in
		alloc(in)
	}

	for i, p := range parts {
		if p.PartSpec == nil {
			return nil, nil, nil, errors.New("part " + strconv.Itoa(i) + " has no spec")
		}
		m := make(map[string]int, len(p.Inputs)+len(p.Outputs))
		known := make(map[string]bool, len(p.Inputs)+len(p.Outputs))
		for _, o := range p.Outputs {
			known[o] = true
			n, ok := p.Conns[o]
			if !ok {
				// unconnected output
				n = "__" + strconv.Itoa(i) + "." + o
			}
			if n == Zero {
				return nil, nil, nil, errors.New(pinName(p, o) + ":" + n + ": output pin connected to constant zero")
			}
			if d, ok := drivers[n]; ok {
				return nil, nil, nil, errors.New(pinName(p, o) + ":" + n + ": output pin already used as output of " + d)
			}
			drivers[n] = pinName(p, o)
			m[o] = alloc(n)
		}
		for _, in := range p.Inputs {
			known[in] = true
			n, ok := p.Conns[in]
			if !ok {
				n = Zero
			}
			m[in] = alloc(n)
		}
		for k := range p.Conns {
			if !known[k] {
				return nil, nil, nil, errors.New("invalid pin name " + k + " for part " + p.Name)
			}
		}
		pins[i] = m
	}

	for _, p := range parts {
		for _, in := range p.Inputs {
			n, ok := p.Conns[in]
			if !ok || n == Zero {
				continue
			}
			if _, ok := drivers[n]; !ok {
				return nil, nil, nil, errors.New(pinName(p, in) + ": wire " + n + " not connected to any output")
			}
		}
	}
	return names, pins, drivers, nil
}
