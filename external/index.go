package external

import (
	"context"
	"time"

	"github.com/ar-io/contiguous-core/core/kv"
	"gitlab.com/NebulousLabs/log"
)

// DataAttributes is the record ContiguousDataIndex.GetDataAttributes /
// GetDataItemAttributes return: the minimal attributes §4.9's
// content-type sniffing fallback (SPEC_FULL.md "SUPPLEMENTED FEATURES")
// needs to backfill a result missing SourceContentType.
type DataAttributes struct {
	ID                string `json:"id"`
	ContentType       string `json:"content_type"`
	ContentLength     uint64 `json:"content_length"`
	IsDataItem        bool   `json:"is_data_item"`
	VerificationTries int    `json:"verification_tries"`
}

// ContiguousDataIndex implements §6's ContiguousDataIndex role on top of
// two namespaced kv.JSONStore instances: one write-once store of
// attribute records (matching §4.5's "attribute stores ... write-once"
// note) and one last-write-wins store tracking verification state.
type ContiguousDataIndex struct {
	attributes   *kv.JSONStore[DataAttributes]
	verification *kv.JSONStore[verificationRecord]
	log          *log.Logger
}

type verificationRecord struct {
	Verified   bool `json:"verified"`
	RetryCount int  `json:"retry_count"`
}

// NewContiguousDataIndex builds an index over a shared kv.Buffer
// backend, namespacing attribute records under "H|" and verification
// records under "#|", matching the example prefixes §4.5 names for
// per-logical-store namespacing.
func NewContiguousDataIndex(backend kv.Buffer, logger *log.Logger) *ContiguousDataIndex {
	return &ContiguousDataIndex{
		attributes:   kv.NewJSONStore[DataAttributes](backend, "H|", false, 0),
		verification: kv.NewJSONStore[verificationRecord](backend, "#|", true, 0),
		log:          logger,
	}
}

// GetDataAttributes resolves the attribute record for a transaction id.
func (idx *ContiguousDataIndex) GetDataAttributes(ctx context.Context, id string) (DataAttributes, bool, error) {
	return idx.attributes.Get(ctx, id)
}

// GetDataItemAttributes resolves the attribute record for a bundled data
// item id; data items and transactions share the same attribute schema
// and store, distinguished only by the IsDataItem flag.
func (idx *ContiguousDataIndex) GetDataItemAttributes(ctx context.Context, id string) (DataAttributes, bool, error) {
	return idx.attributes.Get(ctx, id)
}

// SaveDataContentAttributes writes rec write-once: a second save for the
// same id leaves the previously indexed record in place and returns nil;
// the kv.ErrWriteOnce rejection is logged at debug level, not returned.
func (idx *ContiguousDataIndex) SaveDataContentAttributes(ctx context.Context, rec DataAttributes) error {
	err := idx.attributes.Set(ctx, rec.ID, rec)
	if kv.IsWriteOnce(err) {
		idx.log.Debugln("data content attributes already recorded for", rec.ID)
		return nil
	}
	return err
}

// SaveVerificationStatus records whether id's bytes were confirmed to
// match their declared data root.
func (idx *ContiguousDataIndex) SaveVerificationStatus(ctx context.Context, id string, ok bool) error {
	rec, _, _ := idx.verification.Get(ctx, id)
	rec.Verified = ok
	return idx.verification.Set(ctx, id, rec)
}

// IncrementVerificationRetryCount bumps id's retry counter, used by
// verify.RetryTracker to back off repeatedly-failing re-verification
// attempts.
func (idx *ContiguousDataIndex) IncrementVerificationRetryCount(ctx context.Context, id string) error {
	rec, _, _ := idx.verification.Get(ctx, id)
	rec.RetryCount++
	return idx.verification.Set(ctx, id, rec)
}

// ContentType implements source.AttributesIndex: a narrow lookup used
// only to backfill a missing SourceContentType on an otherwise-complete
// result.
func (idx *ContiguousDataIndex) ContentType(ctx context.Context, id string) (string, bool) {
	rec, ok, err := idx.attributes.Get(ctx, id)
	if err != nil || !ok || rec.ContentType == "" {
		return "", false
	}
	return rec.ContentType, true
}

// VerificationRetryCount returns id's current retry counter.
func (idx *ContiguousDataIndex) VerificationRetryCount(ctx context.Context, id string) int {
	rec, _, _ := idx.verification.Get(ctx, id)
	return rec.RetryCount
}

// defaultIndexTTL is unused by this write-once index (attribute and
// verification records never expire) but documents why NewJSONStore is
// called with a zero ttl above rather than omitted.
const defaultIndexTTL = time.Duration(0)
