package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionAlgo specifies the compression applied to stored documents.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 10 * 1024

// documentCodec packs the wire documents of an entry into one column,
// compressing them once they exceed threshold bytes.
type documentCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newDocumentCodec(threshold int) (*documentCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &documentCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

func (c *documentCodec) pack(docs [][]byte) ([]byte, CompressionAlgo, error) {
	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, "", fmt.Errorf("marshal documents: %w", err)
	}
	if len(raw) <= c.threshold {
		return raw, CompressionNone, nil
	}
	return c.encoder.EncodeAll(raw, nil), CompressionZstd, nil
}

func (c *documentCodec) unpack(data []byte, algo CompressionAlgo) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw := data
	switch algo {
	case CompressionNone, "":
	case CompressionZstd:
		var err error
		if raw, err = c.decoder.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress documents: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown compression %q", algo)
	}
	var docs [][]byte
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return docs, nil
}
