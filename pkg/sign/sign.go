package sign

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signer is an interface for a blockchain-agnostic signer.
type Signer interface {
	PublicKey() PublicKey                // Public key associated with this signer.
	Sign(hash []byte) (Signature, error) // Sign generates a recoverable signature for the given digest.
}

// AddressRecoverer is an interface for recovering addresses from signatures.
type AddressRecoverer interface {
	RecoverAddress(message []byte, signature Signature) (Address, error)
}

// PublicKey is an interface for a blockchain-agnostic public key.
type PublicKey interface {
	Address() Address
	Bytes() []byte
}

// Address is an interface for a blockchain-specific address.
type Address interface {
	fmt.Stringer // All addresses must have a string representation.

	// Equals returns true if this address equals the other address.
	Equals(other Address) bool
}

// Signature is a generic byte slice representing a recoverable cryptographic
// signature. Both supported chains use a 65-byte layout; they differ in where
// the recovery information lives (see Type).
type Signature []byte

// Type represents the signature type/platform used for signatures.
type Type uint8

const (
	TypeBitcoin Type = iota
	TypeEthereum
	TypeUnknown = 255
)

// String returns the string representation of the signature type.
func (t Type) String() string {
	switch t {
	case TypeBitcoin:
		return "Bitcoin"
	case TypeEthereum:
		return "Ethereum"
	default:
		return "Unknown"
	}
}

// Type returns the signature type for this signature based on its length and
// structure. Bitcoin compact signatures carry their recovery header as the
// first byte (27-34); Ethereum signatures carry V as the last byte. The
// detection is a heuristic: a 65-byte signature whose first byte falls in the
// Bitcoin header range is classified as Bitcoin.
func (s Signature) Type() Type {
	if len(s) != 65 {
		return TypeUnknown
	}
	if s[0] >= compactSigHeaderBase && s[0] < compactSigHeaderBase+8 {
		return TypeBitcoin
	}
	return TypeEthereum
}

// MarshalJSON implements the json.Marshaler interface, encoding the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// String implements the fmt.Stringer interface
func (s Signature) String() string {
	return hexutil.Encode(s)
}

// Base64 returns the signature in the base64 text form used by the
// signed-message protocol.
func (s Signature) Base64() string {
	return base64.StdEncoding.EncodeToString(s)
}

// ParseBase64Signature decodes a base64-encoded compact signature.
func ParseBase64Signature(encoded string) (Signature, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 signature: %w", err)
	}
	return Signature(decoded), nil
}

// NewAddressRecoverer creates an appropriate AddressRecoverer based on the signature algorithm.
func NewAddressRecoverer(sigType Type) (AddressRecoverer, error) {
	switch sigType {
	case TypeBitcoin:
		return &BitcoinAddressRecoverer{}, nil
	case TypeEthereum:
		return &EthereumAddressRecoverer{}, nil
	default:
		return nil, fmt.Errorf("unsupported signature type: %s", sigType.String())
	}
}

// NewAddressRecovererFromSignature creates an AddressRecoverer based on signature algorithm detection.
func NewAddressRecovererFromSignature(signature Signature) (AddressRecoverer, error) {
	return NewAddressRecoverer(signature.Type())
}
