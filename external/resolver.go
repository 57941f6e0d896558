package external

import (
	"context"
	"time"

	"github.com/ar-io/contiguous-core/core/kv"
)

// NameRecord is what NameResolver.ResolveName returns for a registered
// ArNS name: the transaction or process id it currently points at, and
// how long the resolution may be cached for, per §6's Name resolver
// role. Undername resolution (a sub-label of a name resolving to a
// distinct record, per the GLOSSARY) is represented by passing the full
// "undername_name" string as name — resolution itself does no parsing of
// the label structure, that belongs to the ArNS logic this module treats
// as out of scope (§1).
type NameRecord struct {
	TxID      string
	ProcessID string
	TTL       time.Duration
}

// nameRecordWire is NameRecord's JSON-on-the-wire shape for the
// underlying kv.JSONStore.
type nameRecordWire struct {
	TxID      string `json:"tx_id"`
	ProcessID string `json:"process_id"`
	TTLSecs   int64  `json:"ttl_secs"`
}

// NameResolver implements §6's Name resolver role as a read-through
// cache over a kv.Buffer: resolution itself (the ArNS/AO lookup) is out
// of scope per §1's Non-goals, so Cache takes the already-resolved
// record to cache, and ResolveName only ever serves from the cache or
// reports a miss for the caller to resolve out-of-band.
type NameResolver struct {
	store *kv.JSONStore[nameRecordWire]
}

// NewNameResolver builds a NameResolver over backend, namespacing keys
// with the "arns|" prefix §4.5 names for this logical store.
func NewNameResolver(backend kv.Buffer) *NameResolver {
	return &NameResolver{store: kv.NewJSONStore[nameRecordWire](backend, "arns|", true, 0)}
}

// ResolveName returns the cached record for name, if one is present. The
// record's TTL is returned as cached; ResolveName does not check it, so a
// record is served until Cache overwrites it. A miss means the caller
// must resolve out-of-band and call Cache to populate it.
func (r *NameResolver) ResolveName(ctx context.Context, name string) (NameRecord, bool, error) {
	wire, ok, err := r.store.Get(ctx, name)
	if err != nil || !ok {
		return NameRecord{}, false, err
	}
	return NameRecord{TxID: wire.TxID, ProcessID: wire.ProcessID, TTL: time.Duration(wire.TTLSecs) * time.Second}, true, nil
}

// Cache records rec as the resolution for name, for subsequent
// ResolveName calls to serve without re-resolving.
func (r *NameResolver) Cache(ctx context.Context, name string, rec NameRecord) error {
	return r.store.Set(ctx, name, nameRecordWire{TxID: rec.TxID, ProcessID: rec.ProcessID, TTLSecs: int64(rec.TTL.Seconds())})
}
