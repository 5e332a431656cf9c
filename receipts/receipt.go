package receipts

import "encoding/hex"

// ScalarReceipt is either a legacy pool-based receipt or a TAP EIP-712
// signed receipt (spec.md section 3, "Receipt"). Named after the teacher
// ecosystem's historical "Scalar" micropayment scheme, matching the
// original source's ScalarReceipt enum.
type ScalarReceipt interface {
	// GRTValue returns the receipt's fee, in the smallest GRT-wei-equivalent
	// unit this module tracks.
	GRTValue() uint64
	// Allocation returns the allocation address this receipt collateralizes.
	Allocation() [20]byte
	// Serialize returns the header value to send to the indexer (spec.md
	// section 6, "Receipt headers emitted to indexers").
	Serialize() (string, error)
	// HeaderName returns the HTTP header this receipt is carried in.
	HeaderName() string
}

// LegacyReceipt is the pool-based receipt format: a fee plus opaque bytes
// whose first 20 bytes encode the allocation and whose last 32 bytes are a
// commitment secret never sent to the indexer (spec.md section 3).
type LegacyReceipt struct {
	Fee   uint64
	Bytes []byte // allocation[20] || commitment[32]
}

func (r *LegacyReceipt) GRTValue() uint64 { return r.Fee }

func (r *LegacyReceipt) Allocation() [20]byte {
	var a [20]byte
	copy(a[:], r.Bytes[:20])
	return a
}

// Serialize returns the hex of receipt[0:len-32] (the trailing 32-byte
// commitment is local-only, spec.md section 6).
func (r *LegacyReceipt) Serialize() (string, error) {
	if len(r.Bytes) < 32 {
		return "", errMalformedLegacyReceipt
	}
	return hex.EncodeToString(r.Bytes[:len(r.Bytes)-32]), nil
}

func (r *LegacyReceipt) HeaderName() string { return "Scalar-Receipt" }
