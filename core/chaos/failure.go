// Package chaos provides the failure-injection wrapper used in testing
// and staged rollouts to exercise the chain engine's fallback behavior
// under a controlled failure rate.
package chaos

import (
	"errors"

	"gitlab.com/NebulousLabs/fastrand"
)

// ErrSimulatedFailure is the sentinel error FailureSimulator.MaybeFail
// returns when the Bernoulli trial comes up "fail".
var ErrSimulatedFailure = errors.New("chaos: simulated failure")

// FailureSimulator runs a uniform Bernoulli trial on every MaybeFail call.
type FailureSimulator struct {
	failureRate float64
}

// New builds a FailureSimulator with the given failure rate, clamped into
// [0,1].
func New(failureRate float64) *FailureSimulator {
	if failureRate < 0 {
		failureRate = 0
	}
	if failureRate > 1 {
		failureRate = 1
	}
	return &FailureSimulator{failureRate: failureRate}
}

// MaybeFail returns ErrSimulatedFailure with probability failureRate, and
// nil otherwise.
func (f *FailureSimulator) MaybeFail() error {
	if f.failureRate <= 0 {
		return nil
	}
	if f.failureRate >= 1 {
		return ErrSimulatedFailure
	}
	draw := float64(fastrand.Uint64n(1<<32)) / float64(uint64(1)<<32)
	if draw < f.failureRate {
		return ErrSimulatedFailure
	}
	return nil
}
