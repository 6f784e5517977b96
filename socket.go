// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semsim

// A Socket maps a part's pin names to wire numbers in a circuit.
//
type Socket struct {
	m map[string]int
	c *Circuit
}

// Wire returns the wire number allocated to the given pin name.
// This function panics if the pin does not exist.
//
func (s *Socket) Wire(name string) int {
	n, ok := s.m[name]
	if !ok {
		panic("pin " + name + " does not exist")
	}
	return n
}
