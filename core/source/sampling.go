package source

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/metrics"
	"gitlab.com/NebulousLabs/fastrand"
)

// SamplingStrategy selects how SamplingDataSource decides to sample a
// given request.
type SamplingStrategy int

const (
	// StrategyRandom draws a fresh uniform random value per call.
	StrategyRandom SamplingStrategy = iota
	// StrategyDeterministic derives the decision from the request id, so
	// repeated calls for the same id always agree, including across
	// process restarts.
	StrategyDeterministic
)

// SamplingDataSource wraps a single inner source behind a probabilistic
// gate; this is the "probabilistic experimentation" wrapper named in the
// system overview table, with sampling rate and strategy both config.
type SamplingDataSource struct {
	inner        DataSource
	samplingRate float64
	strategy     SamplingStrategy
	counters     *metrics.Counters
}

// NewSamplingDataSource builds a sampling gate over inner. samplingRate
// must be in [0,1]; callers are expected to validate this at
// configuration time the same way the rest of this module validates
// config up front rather than per request.
func NewSamplingDataSource(inner DataSource, samplingRate float64, strategy SamplingStrategy, counters *metrics.Counters) *SamplingDataSource {
	return &SamplingDataSource{inner: inner, samplingRate: samplingRate, strategy: strategy, counters: counters}
}

func (s *SamplingDataSource) Name() string { return "sampling(" + s.inner.Name() + ")" }

func (s *SamplingDataSource) GetData(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	if err := core.CheckCancelled(s.Name(), ctx); err != nil {
		return core.ContiguousData{}, err
	}
	if !s.ShouldSample(req.ID) {
		return core.ContiguousData{}, core.NewError(s.Name(), core.KindFiltered, errNotSampled)
	}

	data, err := s.inner.GetData(ctx, req)
	if err != nil {
		if core.IsKind(err, core.KindCancelled) {
			return core.ContiguousData{}, err
		}
		s.counters.Inc("sampling_sampled_failure")
		return core.ContiguousData{}, err
	}
	s.counters.Inc("sampling_sampled_success")
	return data, nil
}

// ShouldSample is a pure function of (id, samplingRate) under the
// deterministic strategy: the same id always yields the same verdict,
// across calls and across process restarts, as required by the
// deterministic-sampling testable property.
func (s *SamplingDataSource) ShouldSample(id string) bool {
	if s.samplingRate <= 0 {
		return false
	}
	if s.samplingRate >= 1 {
		return true
	}
	switch s.strategy {
	case StrategyDeterministic:
		sum := sha256.Sum256([]byte(id))
		h := binary.BigEndian.Uint32(sum[:4])
		return float64(h)/math.Exp2(32) < s.samplingRate
	default:
		h := fastrand.Uint64n(1 << 32)
		return float64(h)/math.Exp2(32) < s.samplingRate
	}
}

type samplingError string

func (e samplingError) Error() string { return string(e) }

const errNotSampled = samplingError("request was not selected by sampling policy")
