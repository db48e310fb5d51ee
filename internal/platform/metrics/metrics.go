// Package metrics keeps in-process counters for the HTTP surface and the
// payroll engine, served as JSON on /metrics.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Computation outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

var outcomes = [...]string{OutcomeOK, OutcomeInvalid, OutcomeFailed}

type Collector struct {
	requests    atomic.Uint64
	serverErrs  atomic.Uint64
	rateLimited atomic.Uint64
	requestMs   atomic.Uint64

	computations [len(outcomes)]atomic.Uint64
	computeMs    atomic.Uint64

	batches        atomic.Uint64
	batchPaychecks atomic.Uint64
}

type Snapshot struct {
	RequestsTotal        uint64            `json:"requestsTotal"`
	ErrorsTotal          uint64            `json:"errorsTotal"`
	RateLimitedTotal     uint64            `json:"rateLimitedTotal"`
	AvgDurationMs        float64           `json:"avgDurationMs"`
	ComputationsTotal    uint64            `json:"computationsTotal"`
	ComputationsByResult map[string]uint64 `json:"computationsByResult"`
	AvgComputeMs         float64           `json:"avgComputeMs"`
	BatchesTotal         uint64            `json:"batchesTotal"`
	BatchPaychecksTotal  uint64            `json:"batchPaychecksTotal"`
}

func New() *Collector {
	return &Collector{}
}

// Record counts one HTTP response.
func (c *Collector) Record(status int, duration time.Duration) {
	c.requests.Add(1)
	c.requestMs.Add(uint64(duration.Milliseconds()))
	switch {
	case status >= http.StatusInternalServerError:
		c.serverErrs.Add(1)
	case status == http.StatusTooManyRequests:
		c.rateLimited.Add(1)
	}
}

// RecordComputation counts one paycheck computation. A nil collector is a
// no-op so callers need not check. Unknown outcomes count as failed.
func (c *Collector) RecordComputation(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	idx := len(outcomes) - 1
	for i, o := range outcomes {
		if o == outcome {
			idx = i
			break
		}
	}
	c.computations[idx].Add(1)
	c.computeMs.Add(uint64(duration.Milliseconds()))
}

// RecordBatch counts one accepted batch of size paychecks.
func (c *Collector) RecordBatch(size int) {
	if c == nil {
		return
	}
	c.batches.Add(1)
	c.batchPaychecks.Add(uint64(size))
}

func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		RequestsTotal:        c.requests.Load(),
		ErrorsTotal:          c.serverErrs.Load(),
		RateLimitedTotal:     c.rateLimited.Load(),
		ComputationsByResult: make(map[string]uint64, len(outcomes)),
		BatchesTotal:         c.batches.Load(),
		BatchPaychecksTotal:  c.batchPaychecks.Load(),
	}
	for i, o := range outcomes {
		n := c.computations[i].Load()
		snap.ComputationsByResult[o] = n
		snap.ComputationsTotal += n
	}
	snap.AvgDurationMs = mean(c.requestMs.Load(), snap.RequestsTotal)
	snap.AvgComputeMs = mean(c.computeMs.Load(), snap.ComputationsTotal)
	return snap
}

func mean(sum, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
