// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command dacsim simulates the closed-loop RC DAC of the SEM scan generator.
//
// Usage:
//
//	dacsim [flags] <command>
//
// Commands are run, serve, mkconf, conf, help and version. See dacsim help.
//
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/db47h/semsim/dac"
	"github.com/db47h/semsim/internal/config"
	"github.com/db47h/semsim/internal/server"
	"github.com/golang/glog"
)

var (
	// Version is the version number. Typically injected via ldflags.
	Version = "0.1.0"

	configFlag  = flag.String("config", "dacsim.yml", "configuration file")
	workersFlag = flag.Int("workers", 0, "simulation worker goroutines; 0 for GOMAXPROCS")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `dacsim simulates a closed-loop RC DAC, cycle by cycle, with the same
fixed-point arithmetic as the FPGA implementation.

Usage:
	dacsim [flags] <command>

Commands:
	run      run a ramp through the DAC and its RC network, write a CSV trace
	serve    serve a bank of DAC channels over HTTP
	mkconf   write the current configuration to the configuration file
	conf     print the current configuration
	help     print configuration help
	version  print the version number

Flags:
`)
	flag.PrintDefaults()
}

func help() {
	fmt.Println(`dacsim is configured from a YAML file (see -config), then from environment
variables prefixed with ` + config.EnvPrefix + `: ` + config.EnvPrefix + `RUN_CYCLES overrides run.cycles.

	clock      controller clock, like "100MHz"
	rail       DAC output rail, like "3.3V"
	capacitor  filter capacitor in farads
	resistors  one resistor per output line, in ohms
	intbits    integer bits of the estimate register, excluding sign
	fracbits   fractional bits of the estimate register
	initial    initial estimate, normalized to the rail
	channels   channel count for serve
	addr       listen address for serve
	run        ramp parameters for run: cycles, skip, lo, hi, step, output

Use dacsim mkconf to write a configuration file with default values.`)
}

func mkconf(c config.Config) {
	f, err := os.Create(*configFlag)
	if err != nil {
		glog.Fatal(err)
	}
	defer f.Close()
	if err = config.Write(f, c); err != nil {
		glog.Fatal(err)
	}
	glog.Infof("configuration written to %s", *configFlag)
}

func run(c config.Config) {
	rec, err := simulate(c, *workersFlag)
	if err != nil {
		glog.Fatal(err)
	}
	var w io.Writer = os.Stdout
	if c.Run.Output != "-" {
		f, err := os.Create(c.Run.Output)
		if err != nil {
			glog.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	if err = rec.WriteCSV(w); err != nil {
		glog.Fatal(err)
	}
	s, err := rec.Summary(c.Run.Skip)
	if err != nil {
		glog.Fatal(err)
	}
	rail, _ := c.RailPotential()
	glog.Infof("%d cycles. tracking error: mean %v, rms %v (%v), max %v",
		s.Cycles, s.Tracking.Mean, s.Tracking.RMS, dac.Potential(s.Tracking.RMS, rail), s.Tracking.Max)
	glog.Infof("model error: mean %v, rms %v (%v), max %v",
		s.Model.Mean, s.Model.RMS, dac.Potential(s.Model.RMS, rail), s.Model.Max)
	glog.Infof("target/plant correlation: %v", s.Correlation)
}

func serve(c config.Config) {
	cfg, err := c.DAC()
	if err != nil {
		glog.Fatal(err)
	}
	bank, err := dac.NewBank(c.Channels, cfg)
	if err != nil {
		glog.Fatal(err)
	}
	rail, _ := c.RailPotential()
	srv := server.New(bank, rail)
	glog.Infof("serving %d channels of %d lines at %s", c.Channels, bank.Channel(0).Branches(), c.Addr)
	glog.Fatal(http.ListenAndServe(c.Addr, srv.Routes()))
}

func main() {
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() == 0 {
		usage()
		return
	}
	cmd := strings.ToLower(flag.Arg(0))
	switch cmd {
	case "help":
		help()
		return
	case "version":
		fmt.Printf("dacsim version %v\n", Version)
		return
	}

	c, err := config.Load(*configFlag)
	if err != nil {
		glog.Fatal(err)
	}
	switch cmd {
	case "mkconf":
		mkconf(c)
	case "conf":
		if err = config.Write(os.Stdout, c); err != nil {
			glog.Fatal(err)
		}
	case "run":
		run(c)
	case "serve":
		serve(c)
	default:
		glog.Fatalf("unknown command %q", cmd)
	}
}
