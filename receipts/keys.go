// Package receipts implements the dual-format micropayment Receipt Signer:
// legacy pool-based receipts and EIP-712 signed TAP receipts, plus signing
// key derivation from a BIP-39 mnemonic (spec.md section 4.7, section 6
// "Signing key derivation").
package receipts

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/hdkeychain"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
)

// mainnetParams supplies the extended-key version bytes hdkeychain needs;
// this gateway never serializes the derived key to its base58 xprv form, so
// only the derivation math (network-independent) is actually exercised.
var mainnetParams = chaincfg.MainNetParams

// SignerKey is an opaque secp256k1 signing handle (spec.md section 1,
// "cryptographic key material... consumed as opaque signing handles").
// Callers never see the raw scalar; only Address() and the package-internal
// signing helpers touch key.priv.
type SignerKey struct {
	priv *secp256k1.PrivateKey
}

// Address returns the Ethereum-style address (last 20 bytes of
// keccak256(uncompressed pubkey)) corresponding to this key.
func (k *SignerKey) Address() [20]byte {
	return pubkeyToAddress(k.priv.PubKey())
}

// DeriveSignerKey derives a secp256k1 signing key from a BIP-39 mnemonic via
// BIP-32: seed -> master extended key -> child at the non-standard path
// "scalar/allocations" -> raw private key (spec.md section 6). The mnemonic
// and intermediate seed are not retained past this call; the caller is
// responsible for zeroing the mnemonic string's backing memory if it came
// from a sensitive source (spec.md section 9, "zeroize the mnemonic-derived
// seed after use").
func DeriveSignerKey(mnemonic string) (*SignerKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("receipts: invalid signer mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer zero(seed)

	master, err := hdkeychain.NewMaster(seed, &mainnetParams)
	if err != nil {
		return nil, fmt.Errorf("receipts: deriving master key: %w", err)
	}

	child := master
	for _, segment := range []string{"scalar", "allocations"} {
		child, err = child.Child(hardenedIndex(segment))
		if err != nil {
			return nil, fmt.Errorf("receipts: deriving child key %q: %w", segment, err)
		}
	}

	ecPriv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("receipts: extracting private key: %w", err)
	}
	raw := ecPriv.Serialize()
	defer zero(raw)

	return &SignerKey{priv: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// hardenedIndex deterministically maps a path segment name to a hardened
// BIP-32 child index, since "scalar/allocations" is not a numeric BIP-44
// path. Grounded on the same "stable hash of a name" idiom the original
// Rust source uses to turn this named path into a derivation index.
func hardenedIndex(segment string) uint32 {
	sum := sha256.Sum256([]byte(segment))
	idx := binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff
	return idx + hdkeychain.HardenedKeyStart
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
