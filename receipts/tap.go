package receipts

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Domain is the EIP-712 domain this gateway signs TAP receipts under
// (spec.md section 6, "EIP-712 domain").
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract [20]byte
}

// TAPMessage is the signed payload of a TAP receipt (spec.md section 3,
// "Receipt", TAP variant).
type TAPMessage struct {
	AllocationID [20]byte
	TimestampNs  uint64
	Nonce        uint64
	Value        uint64
}

// TAPReceipt is an EIP-712 signed TAP micropayment receipt.
type TAPReceipt struct {
	Message   TAPMessage
	Signature [65]byte // recovery-id byte (decred compact-sig convention) || r(32) || s(32)
}

func (r *TAPReceipt) GRTValue() uint64        { return r.Message.Value }
func (r *TAPReceipt) Allocation() [20]byte    { return r.Message.AllocationID }
func (r *TAPReceipt) HeaderName() string      { return "Tap-Receipt" }

// Serialize JSON-encodes the signed message for the Tap-Receipt header
// (spec.md section 6).
func (r *TAPReceipt) Serialize() (string, error) {
	wire := struct {
		Message struct {
			AllocationID string `json:"allocation_id"`
			TimestampNs  uint64 `json:"timestamp_ns"`
			Nonce        uint64 `json:"nonce"`
			Value        uint64 `json:"value"`
		} `json:"message"`
		Signature string `json:"signature"`
	}{}
	wire.Message.AllocationID = "0x" + hexString(r.Message.AllocationID[:])
	wire.Message.TimestampNs = r.Message.TimestampNs
	wire.Message.Nonce = r.Message.Nonce
	wire.Message.Value = r.Message.Value
	wire.Signature = "0x" + hexString(r.Signature[:])

	b, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("receipts: serializing tap receipt: %w", err)
	}
	return string(b), nil
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0xf]
	}
	return string(out)
}

// keccak256 hashes data with the Keccak-256 (pre-NIST SHA3) variant EIP-712
// specifies, via golang.org/x/crypto/sha3's legacy Keccak constructor.
func keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func encodeUint256(v uint64) [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}

func encodeAddress(addr [20]byte) [32]byte {
	var out [32]byte
	copy(out[12:], addr[:])
	return out
}

// domainSeparator computes the EIP-712 domain separator: keccak256 of the
// ABI-encoded (typeHash, name-hash, version-hash, chainId, verifyingContract)
// tuple, no salt (spec.md section 6).
func domainSeparator(d Domain) [32]byte {
	typeHash := keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	nameHash := keccak256([]byte(d.Name))
	versionHash := keccak256([]byte(d.Version))
	chainID := encodeUint256(d.ChainID)
	verifier := encodeAddress(d.VerifyingContract)
	return keccak256(typeHash[:], nameHash[:], versionHash[:], chainID[:], verifier[:])
}

// messageStructHash computes the EIP-712 struct hash for one TAPMessage.
func messageStructHash(m TAPMessage) [32]byte {
	typeHash := keccak256([]byte("Receipt(address allocation_id,uint64 timestamp_ns,uint64 nonce,uint128 value)"))
	allocation := encodeAddress(m.AllocationID)
	ts := encodeUint256(m.TimestampNs)
	nonce := encodeUint256(m.Nonce)
	value := encodeUint256(m.Value)
	return keccak256(typeHash[:], allocation[:], ts[:], nonce[:], value[:])
}

// signDigest builds the final EIP-712 digest (0x19 0x01 || domainSeparator
// || structHash) and signs it, returning a 65-byte recoverable signature.
func signDigest(priv *secp256k1.PrivateKey, domain Domain, msg TAPMessage) ([32]byte, [65]byte) {
	sep := domainSeparator(domain)
	structHash := messageStructHash(msg)
	digest := keccak256([]byte{0x19, 0x01}, sep[:], structHash[:])

	sig := ecdsa.SignCompact(priv, digest[:], false)
	var out [65]byte
	copy(out[:], sig)
	return digest, out
}

// recoverAddress recovers the signer address from a signed TAP message, used
// by the round-trip test property in spec.md section 8.
func recoverAddress(domain Domain, msg TAPMessage, sig [65]byte) ([20]byte, error) {
	sep := domainSeparator(domain)
	structHash := messageStructHash(msg)
	digest := keccak256([]byte{0x19, 0x01}, sep[:], structHash[:])

	pub, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return [20]byte{}, fmt.Errorf("receipts: recovering tap signer: %w", err)
	}
	return pubkeyToAddress(pub), nil
}

// pubkeyToAddress derives the Ethereum-style address (last 20 bytes of
// keccak256 of the uncompressed public key, sans the 0x04 prefix byte).
func pubkeyToAddress(pub *secp256k1.PublicKey) [20]byte {
	uncompressed := pub.SerializeUncompressed()
	hash := keccak256(uncompressed[1:])
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// cryptoRandNonce draws a CSPRNG u64 nonce (spec.md section 3 invariant:
// "nonce drawn from a cryptographically secure RNG").
func cryptoRandNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("receipts: generating nonce: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
