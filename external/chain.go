// Package external implements the adapter shims for the collaborator
// interfaces §6 of the design treats as outside the retrieval core's
// scope: a chain-gateway-backed ChainClient, a KV-backed
// ContiguousDataIndex, an S3 ObjectStore, and a KV-backed name resolver.
// None of these re-implement a protocol of their own; each is a thin
// HTTP/SDK/KV client satisfying the role interface the core packages
// already define.
package external

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ar-io/contiguous-core/core/txoffset"
	"gitlab.com/NebulousLabs/errors"
)

// ChainClient is the HTTP-backed implementation of §6's ChainClient role
// and of txoffset.ChainClient, fetching transaction records, blocks, and
// chain-tip height from a trusted chain gateway. It is intentionally
// thin: all binary-search and offset-bracket logic lives in
// core/txoffset and core/offsetmap, which only depend on the narrower
// txoffset.ChainClient interface this type satisfies.
type ChainClient struct {
	baseURL string
	client  *http.Client
}

// NewChainClient builds a ChainClient against baseURL.
func NewChainClient(baseURL string, client *http.Client) *ChainClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ChainClient{baseURL: baseURL, client: client}
}

type txRecordWire struct {
	ID       string `json:"id"`
	DataRoot string `json:"data_root"`
	DataSize string `json:"data_size"`
	Offset   string `json:"offset"`
}

func (c *ChainClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.AddContext(err, "chain client request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain client: unexpected status %d for %s", resp.StatusCode, path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.AddContext(err, "unable to read chain client response body")
	}
	return json.Unmarshal(body, out)
}

// GetTx implements txoffset.ChainClient: resolves a transaction's data
// root and declared size by id. Offset is filled only when the record
// carries a parseable "offset" field; ChainTxOffsetSource.GetTxOffset
// overwrites it with the end offset from GetTxBoundary.
func (c *ChainClient) GetTx(ctx context.Context, id string) (txoffset.Result, error) {
	var wire txRecordWire
	if err := c.getJSON(ctx, "/tx/"+id, &wire); err != nil {
		return txoffset.Result{}, err
	}
	return decodeTxRecord(wire)
}

func decodeTxRecord(wire txRecordWire) (txoffset.Result, error) {
	root, err := base64.RawURLEncoding.DecodeString(wire.DataRoot)
	if err != nil {
		return txoffset.Result{}, errors.AddContext(err, "unable to decode data_root")
	}
	size, err := strconv.ParseUint(wire.DataSize, 10, 64)
	if err != nil {
		return txoffset.Result{}, errors.AddContext(err, "unable to parse data_size")
	}
	var result txoffset.Result
	copy(result.DataRoot[:], root)
	result.ID = wire.ID
	result.DataSize = size
	if wire.Offset != "" {
		offset, err := strconv.ParseUint(wire.Offset, 10, 64)
		if err == nil {
			result.Offset = offset
		}
	}
	return result, nil
}

// GetTxBoundary implements txoffset.TxBoundaryLookup: the weave-absolute
// [start, end] range owned by a transaction.
func (c *ChainClient) GetTxBoundary(ctx context.Context, id string) (uint64, uint64, error) {
	var wire struct {
		Offset   string `json:"offset"`
		DataSize string `json:"data_size"`
	}
	if err := c.getJSON(ctx, "/tx/"+id+"/offset", &wire); err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseUint(wire.Offset, 10, 64)
	if err != nil {
		return 0, 0, errors.AddContext(err, "unable to parse offset")
	}
	size, err := strconv.ParseUint(wire.DataSize, 10, 64)
	if err != nil {
		return 0, 0, errors.AddContext(err, "unable to parse data_size")
	}
	return end - size + 1, end, nil
}

// GetBlockByHeight implements txoffset.ChainClient.
func (c *ChainClient) GetBlockByHeight(ctx context.Context, height uint64) (txoffset.Block, error) {
	var wire struct {
		WeaveBlockStart string   `json:"weave_block_start"`
		WeaveBlockEnd   string   `json:"weave_block_end"`
		TxIDs           []string `json:"txs"`
	}
	if err := c.getJSON(ctx, "/block/height/"+strconv.FormatUint(height, 10), &wire); err != nil {
		return txoffset.Block{}, err
	}
	start, err := strconv.ParseUint(wire.WeaveBlockStart, 10, 64)
	if err != nil {
		return txoffset.Block{}, errors.AddContext(err, "unable to parse weave_block_start")
	}
	end, err := strconv.ParseUint(wire.WeaveBlockEnd, 10, 64)
	if err != nil {
		return txoffset.Block{}, errors.AddContext(err, "unable to parse weave_block_end")
	}
	return txoffset.Block{WeaveBlockStart: start, WeaveBlockEnd: end, TxIDs: wire.TxIDs}, nil
}

// GetHeight implements txoffset.ChainClient. A transport failure is
// reported as height 0, so the search bracket FindTxByOffset derives
// from it ends at block 0 instead of the chain tip.
func (c *ChainClient) GetHeight(ctx context.Context) uint64 {
	var wire struct {
		Height uint64 `json:"height"`
	}
	if err := c.getJSON(ctx, "/height", &wire); err != nil {
		return 0
	}
	return wire.Height
}

// GetPendingTxIDs implements the broader §6 ChainClient role (not used
// by txoffset, which only needs the narrower interface above).
func (c *ChainClient) GetPendingTxIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/tx/pending", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetTxField implements the broader §6 ChainClient role: fetches a
// single named field of a transaction record without decoding the whole
// thing.
func (c *ChainClient) GetTxField(ctx context.Context, id, field string) (string, error) {
	var value string
	if err := c.getJSON(ctx, "/tx/"+id+"/"+field, &value); err != nil {
		return "", err
	}
	return value, nil
}
