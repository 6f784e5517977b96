// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package config loads the dacsim configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then SEMSIM_ prefixed environment variables (SEMSIM_RUN_CYCLES sets
// run.cycles).
//
package config

import (
	"io"
	"os"
	"strings"

	"github.com/db47h/semsim/dac"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	yml "gopkg.in/yaml.v2"
	"periph.io/x/conn/v3/physic"
)

// EnvPrefix is the prefix of environment variables overriding configuration
// keys.
//
const EnvPrefix = "SEMSIM_"

// Run configures a batch simulation.
//
type Run struct {
	Cycles int     `koanf:"cycles" yaml:"cycles"`
	Skip   int     `koanf:"skip" yaml:"skip"` // settling cycles excluded from statistics
	Lo     float64 `koanf:"lo" yaml:"lo"`     // ramp start
	Hi     float64 `koanf:"hi" yaml:"hi"`     // ramp end
	Step   float64 `koanf:"step" yaml:"step"` // ramp increment per cycle
	Output string  `koanf:"output" yaml:"output"`
}

// Config is the dacsim configuration.
//
type Config struct {
	// HTTP listen address.
	Addr string `koanf:"addr" yaml:"addr"`

	// Clock frequency and output rail, with units: "100MHz", "3.3V".
	Clock string `koanf:"clock" yaml:"clock"`
	Rail  string `koanf:"rail" yaml:"rail"`

	// RC network, in farads and ohms.
	Capacitor float64   `koanf:"capacitor" yaml:"capacitor"`
	Resistors []float64 `koanf:"resistors" yaml:"resistors"`

	IntBits  int     `koanf:"intbits" yaml:"intbits"`
	FracBits int     `koanf:"fracbits" yaml:"fracbits"`
	Initial  float64 `koanf:"initial" yaml:"initial"`

	// Channel count of the server's DAC bank.
	Channels int `koanf:"channels" yaml:"channels"`

	Run Run `koanf:"run" yaml:"run"`
}

// Default returns the default configuration: a four line DAC with 1kΩ
// resistors on a 100nF capacitor clocked at 100MHz.
//
func Default() Config {
	return Config{
		Addr:      ":8000",
		Clock:     "100MHz",
		Rail:      "3.3V",
		Capacitor: 1e-7,
		Resistors: []float64{1e3, 1e3, 1e3, 1e3},
		IntBits:   dac.DefaultIntBits,
		FracBits:  dac.DefaultFracBits,
		Initial:   dac.DefaultInitial,
		Channels:  1,
		Run: Run{
			Cycles: 300000,
			Skip:   20000,
			Lo:     0.25,
			Hi:     0.75,
			Step:   4e-6,
			Output: "trace.csv",
		},
	}
}

// Load returns the default configuration overridden by the YAML file name, if
// it exists, and by the environment.
//
func Load(name string) (Config, error) {
	var c Config
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return c, errors.Wrap(err, "load defaults")
	}
	if name != "" {
		if _, err := os.Stat(name); err == nil {
			if err = k.Load(file.Provider(name), yaml.Parser()); err != nil {
				return c, errors.Wrapf(err, "load %s", name)
			}
		} else if !os.IsNotExist(err) {
			return c, errors.Wrap(err, "load config")
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil)
	if err != nil {
		return c, errors.Wrap(err, "load environment")
	}
	if err = k.Unmarshal("", &c); err != nil {
		return c, errors.Wrap(err, "decode config")
	}
	return c, c.Validate()
}

// Write writes c to w in YAML format.
//
func Write(w io.Writer, c Config) error {
	return errors.Wrap(yml.NewEncoder(w).Encode(c), "encode config")
}

// Validate checks the values that the DAC controller does not check itself.
//
func (c Config) Validate() error {
	if c.Channels <= 0 {
		return errors.Errorf("invalid channel count %d", c.Channels)
	}
	if c.Run.Cycles < 0 || c.Run.Skip < 0 {
		return errors.New("negative cycle count")
	}
	if !(c.Run.Lo < c.Run.Hi) || !(c.Run.Step > 0) {
		return errors.Errorf("invalid ramp %v to %v by %v", c.Run.Lo, c.Run.Hi, c.Run.Step)
	}
	if _, err := c.DeltaTime(); err != nil {
		return err
	}
	_, err := c.RailPotential()
	return err
}

// DeltaTime returns the clock period in seconds.
//
func (c Config) DeltaTime() (float64, error) {
	var f physic.Frequency
	if err := f.Set(c.Clock); err != nil {
		return 0, errors.Wrapf(err, "invalid clock %q", c.Clock)
	}
	if f <= 0 {
		return 0, errors.Errorf("invalid clock %q", c.Clock)
	}
	return float64(physic.Hertz) / float64(f), nil
}

// RailPotential returns the DAC output rail.
//
func (c Config) RailPotential() (physic.ElectricPotential, error) {
	var v physic.ElectricPotential
	if err := v.Set(c.Rail); err != nil {
		return 0, errors.Wrapf(err, "invalid rail %q", c.Rail)
	}
	if v <= 0 {
		return 0, errors.Errorf("invalid rail %q", c.Rail)
	}
	return v, nil
}

// DAC returns the controller configuration.
//
func (c Config) DAC() (dac.Config, error) {
	dt, err := c.DeltaTime()
	if err != nil {
		return dac.Config{}, err
	}
	return dac.Config{
		DeltaTime: dt,
		Capacitor: c.Capacitor,
		Resistors: append([]float64(nil), c.Resistors...),
		IntBits:   c.IntBits,
		FracBits:  c.FracBits,
		Initial:   dac.Float(c.Initial),
	}, nil
}
