// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package trace records the cycle by cycle behavior of a DAC simulation and
// computes tracking statistics over it.
//
package trace

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// A Record is the state of one channel at the end of a clock cycle.
//
type Record struct {
	Cycle    uint64
	Target   float64 // requested voltage
	Pattern  uint64  // output lines driven high
	Estimate float64 // controller estimate
	Plant    float64 // simulated capacitor voltage
}

// Matrix columns.
//
const (
	ColCycle = iota
	ColTarget
	ColPattern
	ColEstimate
	ColPlant
	numCols
)

var header = []string{"cycle", "target", "pattern", "estimate", "plant"}

// A Recorder collects records. It is safe for concurrent use.
//
type Recorder struct {
	mu   sync.Mutex
	recs []Record
}

// Add appends r to the trace.
//
func (r *Recorder) Add(rec Record) {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
}

// Len returns the number of records.
//
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// Records returns a copy of the recorded trace.
//
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.recs...)
}

// Reset clears the trace.
//
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.recs = r.recs[:0]
	r.mu.Unlock()
}

// Matrix returns the trace as a matrix with one row per record, columns
// being indexed by the Col constants. It returns nil for an empty trace.
//
func (r *Recorder) Matrix() *mat.Dense {
	recs := r.Records()
	if len(recs) == 0 {
		return nil
	}
	data := make([]float64, 0, len(recs)*numCols)
	for _, rec := range recs {
		data = append(data, float64(rec.Cycle), rec.Target, float64(rec.Pattern), rec.Estimate, rec.Plant)
	}
	return mat.NewDense(len(recs), numCols, data)
}

// WriteCSV writes the trace to w in CSV format, with a header line.
//
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	row := make([]string, numCols)
	for _, rec := range r.Records() {
		row[ColCycle] = strconv.FormatUint(rec.Cycle, 10)
		row[ColTarget] = strconv.FormatFloat(rec.Target, 'g', -1, 64)
		row[ColPattern] = strconv.FormatUint(rec.Pattern, 10)
		row[ColEstimate] = strconv.FormatFloat(rec.Estimate, 'g', -1, 64)
		row[ColPlant] = strconv.FormatFloat(rec.Plant, 'g', -1, 64)
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write record %d", rec.Cycle)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush CSV")
}

// Stats are error statistics over a trace.
//
type Stats struct {
	Mean   float64 // signed mean error
	StdDev float64
	RMS    float64
	Max    float64 // largest absolute error
}

func errStats(a, b []float64) Stats {
	d := make([]float64, len(a))
	var s Stats
	var sq float64
	for i := range a {
		d[i] = a[i] - b[i]
		sq += d[i] * d[i]
		s.Max = math.Max(s.Max, math.Abs(d[i]))
	}
	s.Mean, s.StdDev = stat.MeanStdDev(d, nil)
	if len(d) < 2 {
		s.StdDev = 0
	}
	s.RMS = math.Sqrt(sq / float64(len(d)))
	return s
}

// A Summary describes how well a DAC channel performed over a trace.
//
type Summary struct {
	Cycles   int
	Tracking Stats // estimate - target
	Model    Stats // estimate - plant
	// Pearson correlation between the target and plant voltages. NaN if
	// either is constant.
	Correlation float64
}

// Summary computes statistics over records at index skip and above. Use skip
// to ignore the initial settling time. It returns an error if there is
// nothing left to summarize.
//
func (r *Recorder) Summary(skip int) (Summary, error) {
	m := r.Matrix()
	if m == nil {
		return Summary{}, errors.New("empty trace")
	}
	rows, _ := m.Dims()
	if skip < 0 || skip >= rows {
		return Summary{}, errors.Errorf("cannot skip %d of %d records", skip, rows)
	}
	m = m.Slice(skip, rows, 0, numCols).(*mat.Dense)
	target := mat.Col(nil, ColTarget, m)
	est := mat.Col(nil, ColEstimate, m)
	plant := mat.Col(nil, ColPlant, m)
	return Summary{
		Cycles:      len(est),
		Tracking:    errStats(est, target),
		Model:       errStats(est, plant),
		Correlation: stat.Correlation(target, plant, nil),
	}, nil
}
