// Package assembly wires the retrieval core's components together in
// the construction order the design notes prescribe for breaking the
// cyclic references between index, resolver, and data sources: leaves
// first (KV backends), then stores, then sources, then workers. Nothing
// here re-implements domain logic; it only constructs and connects the
// packages under core/ and external/.
package assembly

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/chunk"
	"github.com/ar-io/contiguous-core/core/kv"
	"github.com/ar-io/contiguous-core/core/metrics"
	"github.com/ar-io/contiguous-core/core/offsetmap"
	"github.com/ar-io/contiguous-core/core/source"
	"github.com/ar-io/contiguous-core/core/txoffset"
	"github.com/ar-io/contiguous-core/external"
	"github.com/ar-io/contiguous-core/verify"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/log"
)

// GatewayConfig describes one upstream gateway to chain, in trial order.
type GatewayConfig struct {
	Name                    string
	BaseURL                 string
	Trusted                 bool
	RateLimitBytesPerSecond int64
}

// SamplingConfig configures the probabilistic-experimentation wrapper
// placed around the finished chain, if enabled.
type SamplingConfig struct {
	Enabled       bool
	SamplingRate  float64
	Deterministic bool
}

// FilterConfig configures the policy filter placed around the finished
// chain.
type FilterConfig struct {
	BlockedOrigins []string
	BlockedIPs     []string
}

// Config is the single top-level configuration struct an external
// caller (CLI/config-file loading is out of scope) builds and hands to
// New. Every field maps directly onto one constructor argument
// somewhere in core/ or external/.
type Config struct {
	DataDir           string // root for chunk/attribute caches, read-through object cache, KV backends
	ChainGatewayURL   string
	ObjectStoreRegion string
	ObjectStoreBucket string
	OffsetMappingPath string // empty disables the mapping, forcing full-range search

	Gateways []GatewayConfig
	Sampling SamplingConfig
	Filter   FilterConfig

	VerifyWorkerCount  int
	VerifyMaxQueueSize int
	HTTPClient         *http.Client
}

// Core is everything New wires up: the request-facing chain, and the
// background re-verification worker queue that must be Stopped on
// shutdown.
type Core struct {
	Chain        source.DataSource
	RetryTracker *verify.RetryTracker
	Index        *external.ContiguousDataIndex
	NameResolver *external.NameResolver
}

// New builds a complete Core from cfg, in leaves-first order: KV
// backends, then the chunk/metadata/attribute stores built on them,
// then the data sources composed from those stores, then the worker
// queue that consumes the finished chain.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Core, error) {
	// --- leaves: KV backends ---
	metadataBackend := kv.NewLRUStore(1_000_000, 0)
	attributeBackend, err := kv.NewFilesystemStore(cfg.DataDir + "/attributes")
	if err != nil {
		return nil, err
	}
	arnsBackend := kv.NewLRUStore(100_000, 0)

	// --- stores built on the leaves ---
	dataStore, err := chunk.NewDataStore(cfg.DataDir+"/chunks", logger)
	if err != nil {
		return nil, err
	}
	metadataStore := chunk.NewMetadataStore(metadataBackend, logger)
	index := external.NewContiguousDataIndex(attributeBackend, logger)
	nameResolver := external.NewNameResolver(arnsBackend)

	// --- offset-to-block mapping; absent is a valid, handled state ---
	var mapping *offsetmap.Mapping
	if cfg.OffsetMappingPath != "" {
		mapping, err = offsetmap.Load(cfg.OffsetMappingPath, logger)
		if err != nil {
			logger.Printf("offset mapping unavailable, falling back to full-range search: %v", err)
			mapping = nil
		}
	}

	// --- chain client + tx-offset source ---
	chainClient := external.NewChainClient(cfg.ChainGatewayURL, cfg.HTTPClient)
	chainTxOffsets := txoffset.NewChainTxOffsetSource(chainClient, mapping)

	// --- object store + chunk/metadata sources, cached read-through ---
	objectStore, err := external.NewObjectStore(ctx, cfg.ObjectStoreRegion, "")
	if err != nil {
		return nil, err
	}
	objectChunkSource := external.NewObjectStoreChunkSource(objectStore, cfg.ObjectStoreBucket)
	objectMetadataSource := external.NewObjectStoreMetadataSource(objectStore, cfg.ObjectStoreBucket)
	cachedChunkSource := chunk.NewCachedSource(objectChunkSource, dataStore)
	cachedMetadataSource := chunk.NewCachedMetadataSource(objectMetadataSource, metadataStore)

	counters := metrics.NewCounters("contiguous_core", nil)

	reassembly := source.NewChunkReassemblyDataSource(chainTxOffsets, cachedChunkSource, cachedMetadataSource, logger)

	// --- gateway fallback chain, tried before on-chain reassembly ---
	var sources []source.DataSource
	for _, gw := range cfg.Gateways {
		gwSource := source.NewGatewayDataSource(source.GatewayConfig{
			Name:                    gw.Name,
			BaseURL:                 gw.BaseURL,
			Trusted:                 gw.Trusted,
			RateLimitBytesPerSecond: gw.RateLimitBytesPerSecond,
			HTTPClient:              cfg.HTTPClient,
		}, logger, counters)
		sources = append(sources, gwSource)
	}
	sources = append(sources, reassembly)

	readThroughDir := cfg.DataDir + "/objects"
	var chainSources []source.DataSource
	for _, s := range sources {
		cached, err := source.NewReadThroughCachingDataSource(s, readThroughDir, logger)
		if err != nil {
			return nil, err
		}
		ranged := source.NewByteRangeCachingDataSource(cached, readThroughDir)
		withAttributes := source.NewAttributesBackfillDataSource(ranged, index)
		chainSources = append(chainSources, withAttributes)
	}

	var chain source.DataSource = source.NewSequentialDataSource("root", logger, chainSources...)

	if cfg.Filter.BlockedOrigins != nil || cfg.Filter.BlockedIPs != nil {
		filtered, err := source.NewFilteredDataSource(chain, cfg.Filter.BlockedOrigins, cfg.Filter.BlockedIPs)
		if err != nil {
			return nil, err
		}
		chain = filtered
	}

	if cfg.Sampling.Enabled {
		strategy := source.StrategyRandom
		if cfg.Sampling.Deterministic {
			strategy = source.StrategyDeterministic
		}
		chain = source.NewSamplingDataSource(chain, cfg.Sampling.SamplingRate, strategy, counters)
	}

	// --- worker, last: consumes the finished chain ---
	fetcher := &chainFetcher{chain: chain, txOffsets: chainTxOffsets}
	workerCount := cfg.VerifyWorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	retryTracker := verify.NewRetryTracker(workerCount, cfg.VerifyMaxQueueSize, fetcher, index, logger)

	return &Core{Chain: chain, RetryTracker: retryTracker, Index: index, NameResolver: nameResolver}, nil
}

// chainFetcher adapts the finished DataSource chain plus the tx-offset
// resolver into a verify.Fetcher: the re-verification worker needs both
// the full object bytes and the data root they are checked against, and
// a DataSource alone only ever hands back the former.
type chainFetcher struct {
	chain     source.DataSource
	txOffsets txoffset.Source
}

func (f *chainFetcher) FetchForVerification(ctx context.Context, id string) (io.ReadCloser, string, error) {
	result, err := f.txOffsets.GetTxOffset(ctx, id)
	if err != nil || !result.IsValid() {
		return nil, "", errors.New("unable to resolve data root for verification")
	}
	data, err := f.chain.GetData(ctx, core.Request{ID: id, CancelCtx: ctx})
	if err != nil {
		return nil, "", err
	}
	return data.Stream, base64.RawURLEncoding.EncodeToString(result.DataRoot[:]), nil
}
