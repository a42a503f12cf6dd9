package ledger

import (
	"encoding/asn1"
	"math/big"

	"github.com/minio/sha256-simd"
)

type asn1Header struct {
	Number       *big.Int
	PreviousHash []byte
	DataHash     []byte
}

// HeaderBytes returns the ASN.1 DER encoding of the block header, the bytes a block hash is computed on.
func HeaderBytes(h BlockHeader) ([]byte, error) {
	return asn1.Marshal(asn1Header{
		Number:       new(big.Int).SetUint64(h.Number),
		PreviousHash: h.PreviousHash,
		DataHash:     h.DataHash,
	})
}

// HeaderHash returns the SHA-256 hash of the block header.
func HeaderHash(h BlockHeader) ([]byte, error) {
	b, err := HeaderBytes(h)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(b)

	return sum[:], nil
}
