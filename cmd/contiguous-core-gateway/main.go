// Command contiguous-core-gateway assembles the retrieval core and
// drives it against a single transaction id, streaming the resolved
// bytes to stdout. It exists to exercise assembly.New end to end; an
// HTTP router sitting in front of the chain, and the CLI flag parsing
// that would normally configure such a thing, are both external
// collaborators this module only defines interfaces for. Configuration
// here is read entirely from the environment instead.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ar-io/contiguous-core/assembly"
	"github.com/ar-io/contiguous-core/core"
	"gitlab.com/NebulousLabs/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	id := os.Getenv("CONTIGUOUS_CORE_FETCH_ID")
	if id == "" {
		return fmt.Errorf("CONTIGUOUS_CORE_FETCH_ID must name the transaction id to fetch")
	}
	if !core.ValidID(id) {
		return fmt.Errorf("CONTIGUOUS_CORE_FETCH_ID %q is not a valid id", id)
	}

	logger, err := log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	cfg := assembly.Config{
		DataDir:            envOrDefault("CONTIGUOUS_CORE_DATA_DIR", "./data"),
		ChainGatewayURL:    envOrDefault("CONTIGUOUS_CORE_CHAIN_URL", "https://arweave.net"),
		ObjectStoreRegion:  envOrDefault("CONTIGUOUS_CORE_S3_REGION", "us-east-1"),
		ObjectStoreBucket:  envOrDefault("CONTIGUOUS_CORE_S3_BUCKET", "contiguous-core-chunks"),
		OffsetMappingPath:  os.Getenv("CONTIGUOUS_CORE_OFFSET_MAPPING"),
		Gateways:           gatewaysFromEnv("CONTIGUOUS_CORE_GATEWAYS"),
		VerifyWorkerCount:  envOrDefaultInt("CONTIGUOUS_CORE_VERIFY_WORKERS", 4),
		VerifyMaxQueueSize: envOrDefaultInt("CONTIGUOUS_CORE_VERIFY_QUEUE_SIZE", 1024),
		Filter: assembly.FilterConfig{
			BlockedOrigins: splitNonEmpty(os.Getenv("CONTIGUOUS_CORE_BLOCKED_ORIGINS")),
			BlockedIPs:     splitNonEmpty(os.Getenv("CONTIGUOUS_CORE_BLOCKED_IPS")),
		},
	}
	if rate, ok := os.LookupEnv("CONTIGUOUS_CORE_SAMPLING_RATE"); ok {
		parsed, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return fmt.Errorf("invalid CONTIGUOUS_CORE_SAMPLING_RATE: %w", err)
		}
		cfg.Sampling = assembly.SamplingConfig{
			Enabled:       true,
			SamplingRate:  parsed,
			Deterministic: os.Getenv("CONTIGUOUS_CORE_SAMPLING_DETERMINISTIC") == "true",
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := assembly.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("unable to assemble retrieval core: %w", err)
	}
	defer c.RetryTracker.Stop()

	data, err := c.Chain.GetData(ctx, core.Request{ID: id, CancelCtx: ctx})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", id, err)
	}
	defer data.Stream.Close()

	logger.Printf("fetched %s: %d bytes, verified=%v trusted=%v cached=%v", id, data.Size, data.Verified, data.Trusted, data.Cached)
	_, err = io.Copy(os.Stdout, data.Stream)
	return err
}

func gatewaysFromEnv(key string) []assembly.GatewayConfig {
	raw := splitNonEmpty(os.Getenv(key))
	gateways := make([]assembly.GatewayConfig, 0, len(raw))
	for i, url := range raw {
		gateways = append(gateways, assembly.GatewayConfig{
			Name:    "gateway-" + strconv.Itoa(i),
			BaseURL: url,
			Trusted: true,
		})
	}
	return gateways
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
