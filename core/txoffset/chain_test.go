package txoffset

import (
	"context"
	"testing"
)

// fakeChainClient models a tiny weave: 5 blocks of 200 bytes, each
// containing 2 transactions of 100 bytes, so FindTxByOffset's binary search and
// per-block transaction enumeration can both be exercised.
type fakeChainClient struct {
	blocks []Block
	txSpan map[string][2]uint64 // id -> [start, end]
	txMeta map[string]Result
	height uint64
}

func newFakeChainClient() *fakeChainClient {
	c := &fakeChainClient{
		txSpan: make(map[string][2]uint64),
		txMeta: make(map[string]Result),
	}
	offset := uint64(0)
	for h := uint64(0); h < 5; h++ {
		blockStart := offset
		var ids []string
		for i := 0; i < 2; i++ {
			id := blockIDFor(h, i)
			size := uint64(100)
			start := offset + 1
			end := offset + size
			c.txSpan[id] = [2]uint64{start, end}
			c.txMeta[id] = Result{ID: id, DataRoot: [32]byte{byte(h), byte(i)}, DataSize: size, Offset: end}
			ids = append(ids, id)
			offset = end
		}
		c.blocks = append(c.blocks, Block{WeaveBlockStart: blockStart, WeaveBlockEnd: offset, TxIDs: ids})
	}
	c.height = uint64(len(c.blocks) - 1)
	return c
}

func blockIDFor(h uint64, i int) string {
	return "tx-" + string(rune('A'+h)) + string(rune('0'+i))
}

func (c *fakeChainClient) GetTxBoundary(ctx context.Context, id string) (uint64, uint64, error) {
	span, ok := c.txSpan[id]
	if !ok {
		return 0, 0, errNotFound
	}
	return span[0], span[1], nil
}

func (c *fakeChainClient) GetTx(ctx context.Context, id string) (Result, error) {
	r, ok := c.txMeta[id]
	if !ok {
		return Result{}, errNotFound
	}
	return r, nil
}

func (c *fakeChainClient) GetBlockByHeight(ctx context.Context, height uint64) (Block, error) {
	if height >= uint64(len(c.blocks)) {
		return Block{}, errNotFound
	}
	return c.blocks[height], nil
}

func (c *fakeChainClient) GetHeight(ctx context.Context) uint64 { return c.height }

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

func TestFindTxByOffsetLocatesOwningTransaction(t *testing.T) {
	client := newFakeChainClient()
	src := NewChainTxOffsetSource(client, nil)

	for _, block := range client.blocks {
		for _, id := range block.TxIDs {
			span := client.txSpan[id]
			mid := (span[0] + span[1]) / 2
			got, err := src.FindTxByOffset(context.Background(), mid)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != id {
				t.Fatalf("offset %d: got tx %q, want %q", mid, got.ID, id)
			}
		}
	}
}

func TestFindTxByOffsetUnknownOffsetReturnsAllUnset(t *testing.T) {
	client := newFakeChainClient()
	src := NewChainTxOffsetSource(client, nil)

	got, err := src.FindTxByOffset(context.Background(), client.blocks[len(client.blocks)-1].WeaveBlockEnd+1000)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsValid() {
		t.Fatalf("expected all-unset result for an offset beyond the weave, got %+v", got)
	}
}

func TestChainTxOffsetSourceGetTxOffsetByID(t *testing.T) {
	client := newFakeChainClient()
	src := NewChainTxOffsetSource(client, nil)

	id := client.blocks[2].TxIDs[1]
	got, err := src.GetTxOffset(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsValid() || got.ID != id {
		t.Fatalf("expected valid result for %q, got %+v", id, got)
	}
}

func TestChainTxOffsetSourceUnknownIDReturnsAllUnset(t *testing.T) {
	client := newFakeChainClient()
	src := NewChainTxOffsetSource(client, nil)

	got, err := src.GetTxOffset(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsValid() {
		t.Fatalf("expected all-unset result, got %+v", got)
	}
}
