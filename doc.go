/*
Package semsim provides a cycle-accurate, register-transfer level simulator
for the digital side of the SEM control FPGA.

A circuit is built from parts (see PartSpec) connected by wires. Wires carry
64 bits words rather than single bits: a wire holds a fixed-point sample, a
pattern of output lines or a counter. All parts are clocked by a single global
clock: each call to Circuit.Step evaluates every component from the wire states
of the previous cycle, then commits all new states at once.

Reusable parts (ramp generators, the closed-loop DAC controller, the analog RC
network model) live in package semlib.
*/
package semsim
