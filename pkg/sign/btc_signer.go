package sign

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Ensure our types implement the interfaces at compile time.
var _ Signer = (*BitcoinSigner)(nil)
var _ AddressRecoverer = (*BitcoinAddressRecoverer)(nil)
var _ PublicKey = (*BitcoinPublicKey)(nil)
var _ Address = (*BitcoinAddress)(nil)

const (
	// compactSigLen is the length of a compact recoverable signature:
	// 1 header byte followed by the 32-byte R and S values.
	compactSigLen = 65
	// compactSigHeaderBase is the smallest valid compact signature header
	// byte. Headers run from 27 (uncompressed key, recovery id 0) through
	// 34 (compressed key, recovery id 3).
	compactSigHeaderBase = 27
)

// BitcoinAddress implements the Address interface for Bitcoin addresses.
type BitcoinAddress struct{ btcutil.Address }

func (a BitcoinAddress) String() string { return a.Address.EncodeAddress() }

// NewBitcoinAddress creates a new Bitcoin address from a btcutil.Address.
func NewBitcoinAddress(addr btcutil.Address) BitcoinAddress {
	return BitcoinAddress{addr}
}

// NewBitcoinAddressFromString decodes a base58check-encoded address and
// checks that it belongs to the given network.
func NewBitcoinAddressFromString(encoded string, params *chaincfg.Params) (BitcoinAddress, error) {
	addr, err := btcutil.DecodeAddress(encoded, params)
	if err != nil {
		return BitcoinAddress{}, fmt.Errorf("could not parse bitcoin address: %w", err)
	}
	if !addr.IsForNet(params) {
		return BitcoinAddress{}, fmt.Errorf("address %s is not valid for network %s", encoded, params.Name)
	}
	return BitcoinAddress{addr}, nil
}

// Equals returns true if this address equals the other address.
func (a BitcoinAddress) Equals(other Address) bool {
	if otherAddr, ok := other.(BitcoinAddress); ok {
		return a.EncodeAddress() == otherAddr.EncodeAddress()
	}
	// Fallback to string comparison for cross-blockchain compatibility
	return a.String() == other.String()
}

// BitcoinPublicKey implements the PublicKey interface for Bitcoin. It bundles
// the secp256k1 point with the network and serialization mode used to derive
// the pay-to-pubkey-hash address, since compressed and uncompressed forms of
// the same key hash to different addresses.
type BitcoinPublicKey struct {
	key        *btcec.PublicKey
	params     *chaincfg.Params
	compressed bool
}

// NewBitcoinPublicKey creates a new Bitcoin public key for the given network.
func NewBitcoinPublicKey(key *btcec.PublicKey, params *chaincfg.Params, compressed bool) BitcoinPublicKey {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return BitcoinPublicKey{key: key, params: params, compressed: compressed}
}

// Bytes returns the serialized public key in its configured form.
func (p BitcoinPublicKey) Bytes() []byte {
	if p.compressed {
		return p.key.SerializeCompressed()
	}
	return p.key.SerializeUncompressed()
}

// Address derives the P2PKH address for this key on its network.
func (p BitcoinPublicKey) Address() Address {
	pkHash := btcutil.Hash160(p.Bytes())
	// Hash160 output is always 20 bytes, so construction cannot fail.
	addr, _ := btcutil.NewAddressPubKeyHash(pkHash, p.params)
	return BitcoinAddress{addr}
}

// Key returns the underlying secp256k1 public key.
func (p BitcoinPublicKey) Key() *btcec.PublicKey { return p.key }

// BitcoinSigner is the Bitcoin implementation of the Signer interface. It
// produces compact recoverable signatures of the form header || R || S, the
// format consumed by signed-message verifiers.
type BitcoinSigner struct {
	privateKey *btcec.PrivateKey
	publicKey  BitcoinPublicKey
}

func (s *BitcoinSigner) PublicKey() PublicKey { return s.publicKey }

// Sign expects the input to be a 32-byte digest (e.g. a magic hash) and
// returns a 65-byte compact signature whose header byte encodes the recovery
// id and the compression flag.
func (s *BitcoinSigner) Sign(hash []byte) (Signature, error) {
	sig := btcecdsa.SignCompact(s.privateKey, hash, s.publicKey.compressed)
	return Signature(sig), nil
}

// NewBitcoinSigner creates a new Bitcoin signer from a hex-encoded private
// key. Addresses derive from the compressed form of the public key.
func NewBitcoinSigner(privateKeyHex string, params *chaincfg.Params) (Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("could not parse bitcoin private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("bitcoin private key must be 32 bytes, got %d", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return NewBitcoinSignerFromKey(key, params), nil
}

// NewBitcoinSignerFromKey creates a new Bitcoin signer from an existing
// secp256k1 private key.
func NewBitcoinSignerFromKey(key *btcec.PrivateKey, params *chaincfg.Params) *BitcoinSigner {
	return &BitcoinSigner{
		privateKey: key,
		publicKey:  NewBitcoinPublicKey(key.PubKey(), params, true),
	}
}

// BitcoinAddressRecoverer implements the AddressRecoverer interface for
// Bitcoin. A nil Params defaults to mainnet.
type BitcoinAddressRecoverer struct {
	Params *chaincfg.Params
}

// RecoverAddress recovers the signer address from a compact signature over
// the double SHA-256 hash of the raw message bytes.
func (r *BitcoinAddressRecoverer) RecoverAddress(message []byte, signature Signature) (Address, error) {
	hash := chainhash.DoubleHashB(message)
	addr, _, err := RecoverBitcoinAddressFromHash(hash, signature, r.Params)
	return addr, err
}

// RecoverBitcoinPublicKey recovers the public key that produced the compact
// signature over the given digest. The returned key carries the compression
// mode the signature committed to, so address derivation matches the signer.
func RecoverBitcoinPublicKey(hash []byte, sig Signature, params *chaincfg.Params) (BitcoinPublicKey, error) {
	if len(sig) != compactSigLen {
		return BitcoinPublicKey{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	key, compressed, err := btcecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return BitcoinPublicKey{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return NewBitcoinPublicKey(key, params, compressed), nil
}

// RecoverBitcoinAddressFromHash recovers the P2PKH address implied by a
// compact signature over a pre-computed digest. The boolean reports whether
// the signature committed to the compressed form of the public key.
func RecoverBitcoinAddressFromHash(hash []byte, sig Signature, params *chaincfg.Params) (Address, bool, error) {
	pub, err := RecoverBitcoinPublicKey(hash, sig, params)
	if err != nil {
		return nil, false, err
	}
	return pub.Address(), pub.compressed, nil
}

// VerifyBitcoinHashSignature runs a plain, non-recovering ECDSA verification
// of a compact signature against a public key.
func VerifyBitcoinHashSignature(hash []byte, sig Signature, pub BitcoinPublicKey) bool {
	if len(sig) != compactSigLen {
		return false
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[1:33]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig[33:65]); overflow {
		return false
	}
	return btcecdsa.NewSignature(&r, &s).Verify(hash, pub.key)
}
