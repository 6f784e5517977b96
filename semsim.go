// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package semsim

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// A Component is a component in a circuit that can Get and Set wire states.
// It is called exactly once per clock cycle.
//
type Component func(c *Circuit)

// A MountFn mounts a part into socket s. MountFn's should query
// the socket for assigned wire numbers and return closures around
// these wire numbers.
//
// For example, a register delaying its input by one cycle:
//
//	reg := &PartSpec{
//		Name: "REG",
//		Inputs: []string{"in"},
//		Outputs: []string{"out"},
//		Mount: func (s *Socket) []Component {
//			in, out := s.Wire("in"), s.Wire("out")
//			return []Component{
//				func (c *Circuit) { c.Set(out, c.Get(in)) },
//			}
//		}}
//
// Part state (counters, estimates) lives in the MountFn closure, so that a
// PartSpec can be mounted any number of times.
//
type MountFn func(s *Socket) []Component

// A PartSpec wraps a part specification (its blueprint).
//
type PartSpec struct {
	// Part name.
	Name string
	// Input pin names. Must be distinct pin names.
	Inputs []string
	// Output pin names. Must be distinct pin names.
	Outputs []string
	// Mount function (see MountFn).
	Mount MountFn
}

// NewPart is a NewPartFn that wraps p with the given connections into a Part.
// It panics if the connection string cannot be parsed.
//
func (p *PartSpec) NewPart(connections string) Part {
	w, err := ParseConnections(connections)
	if err != nil {
		panic(errors.Wrap(err, p.Name))
	}
	return Part{p, w}
}

// A NewPartFn is a function that takes a connection configuration and returns a
// new Part. See ParseConnections for the syntax of the connection configuration
// string.
//
type NewPartFn func(c string) Part

// A Part wraps a part specification together with its connections within a
// circuit.
//
type Part struct {
	*PartSpec
	Conns W
}

// Parts is a convenience wrapper for []Part.
//
type Parts []Part

// Circuit is a runnable circuit simulation.
//
// Every wire holds a 64 bits word. Each simulation step, all components read
// the wire states of the previous step and their writes only become visible
// once the step completes; this is the clock edge.
//
type Circuit struct {
	s0    []int64 // wire states frame #0
	s1    []int64 // wire states frame #1
	cs    []Component
	names map[string]int
	tick  uint64

	wc []chan struct{}
	wg sync.WaitGroup
}

// NewCircuit builds a new circuit based on the given parts.
//
// workers is the number of goroutines used to update the state of the Circuit
// each step of the simulation. If less or equal to 0, the value of GOMAXPROCS
// will be used. Components only communicate through wires, so updating them
// concurrently is safe as long as they do not share state outside of the
// circuit.
//
// Callers must make sure to call Dispose() once the circuit is no longer needed
// in order to release allocated resources.
//
func NewCircuit(workers int, parts ...Part) (*Circuit, error) {
	if len(parts) == 0 {
		return nil, errors.New("empty part list")
	}

	names, pins, _, err := wire(parts, "", nil)
	if err != nil {
		return nil, err
	}
	cc := &Circuit{names: names}
	for i, p := range parts {
		cc.cs = append(cc.cs, p.Mount(&Socket{m: pins[i], c: cc})...)
	}
	cc.cs = append(cc.cs, checkZero)
	cc.s0 = make([]int64, len(names))
	cc.s1 = make([]int64, len(names))

	// workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	if workers <= 0 {
		workers = 1
	}
	ups := cc.cs
	for len(ups) > 0 {
		size := len(ups) / workers
		if size*workers < len(ups) {
			size++
		}
		wc := make(chan struct{}, 1)
		cc.wc = append(cc.wc, wc)
		go worker(cc, ups[:size], wc)
		ups = ups[size:]
	}

	return cc, nil
}

// alloc allocates a new anonymous wire. It must only be called while
// mounting parts.
//
func (c *Circuit) alloc() int {
	n := len(c.names)
	for {
		name := "__" + strconv.Itoa(n)
		if _, ok := c.names[name]; !ok {
			c.names[name] = len(c.names)
			return c.names[name]
		}
		n++
	}
}

func checkZero(c *Circuit) {
	if c.s0[wZero] != 0 {
		panic("zero constant has been overwritten")
	}
}

// Dispose releases all resources allocated for a circuit and stops
// worker goroutines.
//
func (c *Circuit) Dispose() {
	c.wg.Add(len(c.wc))
	for _, wc := range c.wc {
		close(wc)
	}
	c.wg.Wait()
}

func worker(c *Circuit, cs []Component, wc <-chan struct{}) {
	for {
		_, ok := <-wc
		if !ok {
			c.wg.Done()
			return
		}
		for _, f := range cs {
			f(c)
		}
		c.wg.Done()
	}
}

// Steps returns the number of clock cycles run so far.
//
func (c *Circuit) Steps() uint64 {
	return c.tick
}

// Get returns the state of wire n. The value of n should be obtained in a
// MountFn by a call to one of the Socket methods.
//
func (c *Circuit) Get(n int) int64 {
	return c.s0[n]
}

// Set sets the state v of wire n for the next clock cycle. Wires that are not
// set keep their current state. The value of n should be obtained in a
// MountFn by a call to one of the Socket methods.
//
func (c *Circuit) Set(n int, v int64) {
	c.s1[n] = v
}

// Probe returns the current state of the named wire. It is meant for
// debugging and tests; parts should use Get.
//
func (c *Circuit) Probe(name string) (int64, bool) {
	n, ok := c.names[name]
	if !ok {
		return 0, false
	}
	return c.s0[n], true
}

// Step advances the simulation by one clock cycle.
//
func (c *Circuit) Step() {
	c.wg.Add(len(c.wc))
	for _, wc := range c.wc {
		wc <- struct{}{}
	}

	c.wg.Wait()
	c.tick++
	c.s0, c.s1 = c.s1, c.s0
	// wires not written during the next step keep their value.
	copy(c.s1, c.s0)
}

// Run runs the simulation for n clock cycles.
//
func (c *Circuit) Run(n int) {
	for ; n > 0; n-- {
		c.Step()
	}
}

// Size returns the component count in the circuit.
//
func (c *Circuit) Size() int { return len(c.cs) }

// Wires returns the wire count in the circuit, including the zero constant.
//
func (c *Circuit) Wires() int { return len(c.s0) }
