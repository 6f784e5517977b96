// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package server exposes a bank of simulated DAC channels over HTTP, so that
// test benches in other languages can drive the controller cycle by cycle and
// compare its output with the FPGA.
//
//	GET  /options   controller shape: option patterns, coefficients
//	GET  /state     current estimates
//	POST /step      {"targets": [...], "cycles": n}
//	POST /evaluate  {"channel": i, "vout": v, "pattern": p}
//	POST /reset
//	GET  /metrics   Prometheus metrics
//
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/db47h/semsim/dac"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/conn/v3/physic"
)

// MaxCycles is the maximum number of cycles run by a single step request.
//
const MaxCycles = 1 << 20

// Server serves a dac.Bank. Requests are serialized.
//
type Server struct {
	mu    sync.Mutex
	bank  *dac.Bank
	rail  physic.ElectricPotential
	cycle uint64

	reg      *prometheus.Registry
	estimate *prometheus.GaugeVec
	duration prometheus.Histogram
}

// New returns a new server for bank. Estimates are reported both normalized
// and scaled to rail.
//
func New(bank *dac.Bank, rail physic.ElectricPotential) *Server {
	s := &Server{
		bank: bank,
		rail: rail,
		reg:  prometheus.NewRegistry(),
		estimate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "semsim",
			Subsystem: "dac",
			Name:      "estimate",
			Help:      "Current estimate of the capacitor voltage, normalized to the rail.",
		}, []string{"channel"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semsim",
			Subsystem: "dac",
			Name:      "step_duration_seconds",
			Help:      "Time spent running step requests.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
	s.reg.MustRegister(s.estimate, s.duration, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "semsim",
		Subsystem: "dac",
		Name:      "cycle",
		Help:      "Cycles run since the last reset.",
	}, func() float64 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return float64(s.cycle)
	}))
	s.updateEstimates()
	return s
}

// updateEstimates must be called with s.mu held, or before s is shared.
//
func (s *Server) updateEstimates() {
	for i := 0; i < s.bank.Channels(); i++ {
		s.estimate.WithLabelValues(strconv.Itoa(i)).Set(s.bank.Channel(i).VOut().Float())
	}
}

// Options describes the controller.
//
type Options struct {
	Channels     int       `json:"channels"`
	Branches     int       `json:"branches"`
	Register     string    `json:"register"`
	Options      []uint64  `json:"options"`
	Coefficients []float64 `json:"coefficients"`
}

// Channel is the state of one channel.
//
type Channel struct {
	Estimate  float64 `json:"estimate"`
	Raw       int64   `json:"raw"`
	Potential string  `json:"potential"`
}

// State is the state of the bank.
//
type State struct {
	Cycle    uint64    `json:"cycle"`
	Channels []Channel `json:"channels"`
}

// StepRequest is the body of a step request. Cycles defaults to 1.
//
type StepRequest struct {
	Targets []float64 `json:"targets"`
	Cycles  int       `json:"cycles"`
}

// StepResponse holds the results of the last cycle run.
//
type StepResponse struct {
	Cycle   uint64       `json:"cycle"`
	Results []dac.Result `json:"results"`
}

// EvaluateRequest is the body of an evaluate request.
//
type EvaluateRequest struct {
	Channel int     `json:"channel"`
	VOut    float64 `json:"vout"`
	Pattern uint64  `json:"pattern"`
}

// Evaluation is the response to an evaluate request.
//
type Evaluation struct {
	Estimate float64 `json:"estimate"`
}

// Routes returns the server's router.
//
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/options", s.options)
	r.Get("/state", s.state)
	r.Post("/step", s.step)
	r.Post("/evaluate", s.evaluate)
	r.Post("/reset", s.reset)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return r
}

func respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("encode response: %v", err)
	}
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	c := s.bank.Channel(0)
	o := Options{
		Channels: s.bank.Channels(),
		Branches: c.Branches(),
		Register: c.Register().String(),
		Options:  c.Options(),
	}
	for _, k := range c.Coefficients() {
		o.Coefficients = append(o.Coefficients, k.Float())
	}
	respond(w, o)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := State{Cycle: s.cycle, Channels: make([]Channel, s.bank.Channels())}
	for i := range st.Channels {
		v := s.bank.Channel(i).VOut()
		st.Channels[i] = Channel{
			Estimate:  v.Float(),
			Raw:       v.Raw(),
			Potential: dac.Potential(v.Float(), s.rail).String(),
		}
	}
	s.mu.Unlock()
	respond(w, st)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, errors.Wrap(err, "decode request").Error(), http.StatusBadRequest)
		return
	}
	if req.Cycles == 0 {
		req.Cycles = 1
	}
	if req.Cycles < 0 || req.Cycles > MaxCycles {
		http.Error(w, errors.Errorf("invalid cycle count %d", req.Cycles).Error(), http.StatusBadRequest)
		return
	}
	if len(req.Targets) != s.bank.Channels() {
		http.Error(w, errors.Errorf("got %d targets for %d channels", len(req.Targets), s.bank.Channels()).Error(), http.StatusBadRequest)
		return
	}

	timer := prometheus.NewTimer(s.duration)
	defer timer.ObserveDuration()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.updateEstimates()
	var res []dac.Result
	for i := 0; i < req.Cycles; i++ {
		var err error
		if res, err = s.bank.Step(r.Context(), req.Targets); err != nil {
			// client went away; cycles already run stay run.
			glog.Warningf("step interrupted after %d of %d cycles: %v", i, req.Cycles, err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.cycle++
	}
	glog.V(1).Infof("ran %d cycles, now at cycle %d", req.Cycles, s.cycle)
	respond(w, StepResponse{Cycle: s.cycle, Results: res})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, errors.Wrap(err, "decode request").Error(), http.StatusBadRequest)
		return
	}
	if req.Channel < 0 || req.Channel >= s.bank.Channels() {
		http.Error(w, errors.Errorf("invalid channel %d", req.Channel).Error(), http.StatusBadRequest)
		return
	}
	respond(w, Evaluation{Estimate: s.bank.Channel(req.Channel).Evaluate(req.VOut, req.Pattern)})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.bank.Reset()
	s.cycle = 0
	s.updateEstimates()
	s.mu.Unlock()
	glog.Info("bank reset")
	w.WriteHeader(http.StatusNoContent)
}
