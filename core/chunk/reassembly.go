package chunk

import (
	"context"
	"crypto/sha256"
	"io"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/merkle"
	"gitlab.com/NebulousLabs/errors"
)

// Producer is the explicit state machine behind the chunk reassembly
// pipeline (§4.2, and the "streams with dynamically-rebinding closures"
// re-architecting note in §9): rather than a callback-driven stream
// capturing outer scope, every field the pipeline needs survives between
// Read calls on the struct itself, and the transport stream (Producer
// itself, as an io.ReadCloser) is a thin pull adapter over it.
//
// The pipeline is single-producer and pull-driven: at most one chunk
// fetch is in flight at a time, and the next fetch is only issued once
// the current chunk's bytes have been fully drained by the reader,
// bounding memory to one chunk's worth of buffering.
type Producer struct {
	ctx context.Context

	chunkSource    Source
	metadataSource MetadataSource

	dataRoot    [32]byte
	size        uint64 // total bytes the transaction owns
	startOffset uint64 // weave-absolute offset of the transaction's first byte

	bytes  uint64 // bytes emitted to the caller so far (== relative offset of the next chunk)
	buf    []byte // undrained bytes of the current chunk
	err    error  // sticky terminal error, once set every Read returns it
	closed bool
}

// NewProducer builds a reassembly stream for a transaction with the
// given data root and total size, whose first byte sits at weave
// position startOffset (i.e. startOffset = offset - size + 1, using the
// TxOffsetResult's weave-absolute end offset).
func NewProducer(ctx context.Context, chunkSource Source, metadataSource MetadataSource, dataRoot [32]byte, size, startOffset uint64) *Producer {
	return &Producer{
		ctx:            ctx,
		chunkSource:    chunkSource,
		metadataSource: metadataSource,
		dataRoot:       dataRoot,
		size:           size,
		startOffset:    startOffset,
	}
}

// Read implements io.Reader. It pulls and verifies one chunk at a time,
// copying from the current chunk's buffer into p until p is full or the
// buffer is drained, at which point the next chunk is requested.
func (p *Producer) Read(dst []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}

	n := 0
	for n < len(dst) {
		if len(p.buf) == 0 {
			if p.bytes >= p.size {
				p.err = io.EOF
				break
			}
			if err := p.fetchNext(); err != nil {
				p.err = err
				break
			}
		}
		copied := copy(dst[n:], p.buf)
		p.buf = p.buf[copied:]
		n += copied
	}

	if n > 0 {
		return n, nil
	}
	return 0, p.err
}

// fetchNext requests, verifies, and buffers the next chunk, advancing
// bytes on success. This is step 3 of §4.2.
func (p *Producer) fetchNext() error {
	if err := core.CheckCancelled("chunk-reassembly", p.ctx); err != nil {
		return err
	}

	req := Request{
		TxSize:         p.size,
		AbsoluteOffset: p.startOffset + p.bytes,
		DataRoot:       p.dataRoot,
		RelativeOffset: p.bytes,
	}

	meta, err := p.metadataSource.GetMetadata(p.ctx, req)
	if err != nil {
		return err
	}
	data, err := p.chunkSource.GetChunk(p.ctx, req)
	if err != nil {
		return err
	}

	if sha256.Sum256(data.Chunk) != meta.Hash {
		return core.NewError("chunk-reassembly", core.KindDataCorrupt,
			errors.New("chunk bytes do not match declared hash"))
	}
	if _, err := merkle.ValidatePath(p.dataRoot, p.bytes, 0, p.size, meta.DataPath); err != nil {
		return core.NewError("chunk-reassembly", core.KindDataCorrupt,
			errors.AddContext(err, "chunk merkle path failed validation"))
	}

	p.buf = data.Chunk
	p.bytes += uint64(len(data.Chunk))
	if p.bytes > p.size {
		return core.NewError("chunk-reassembly", core.KindDataCorrupt,
			errors.New("chunk overruns declared transaction size"))
	}
	return nil
}

// Close implements io.Closer; the producer holds no resources of its own
// beyond the current undrained buffer, so Close only marks the stream
// terminal.
func (p *Producer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.err == nil {
		p.err = io.EOF
	}
	return nil
}
