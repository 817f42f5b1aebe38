package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/openproof/signet/pkg/sign"
)

// magicPrefix binds every signed message to this protocol. No transaction
// byte stream starts with this varint+prefix pattern, so a message signature
// can never double as a signature over transaction data.
const magicPrefix = "Bitcoin Signed Message:\n"

// Diagnostic reasons recorded on verification failure. The exact wording is
// part of the protocol surface; existing clients match on these strings.
const (
	ReasonDigestMismatch   = "The signature did not match the message digest"
	ReasonInvalidSignature = "The signature was invalid"
)

var (
	// ErrNilPrivateKey is returned by Sign when no private key is provided.
	ErrNilPrivateKey = errors.New("message: private key is required for signing")
	// ErrNilAddress is returned by Verify when no address is provided.
	ErrNilAddress = errors.New("message: address is required for verification")
	// ErrInvalidAddress wraps address parsing failures in VerifyString.
	ErrInvalidAddress = errors.New("message: invalid address")
	// ErrInvalidSignatureEncoding wraps failures to decode or structurally
	// parse the base64 compact signature, including signatures no public key
	// can be recovered from.
	ErrInvalidSignatureEncoding = errors.New("message: invalid signature encoding")
)

// Message is a piece of UTF-8 text that can be signed to prove control of a
// private key, or verified against a claimed address. The text is fixed at
// construction; the only mutable state is the advisory last-error diagnostic
// written by Verify.
//
// Distinct Message values are independent and safe to use concurrently.
// Concurrent Verify calls on the same instance race on the diagnostic field;
// keep one in-flight Verify per instance, or treat LastError as best-effort.
type Message struct {
	text      string
	params    *chaincfg.Params
	lastError string
}

// New creates a Message for mainnet address semantics.
func New(text string) *Message {
	return NewForNet(text, &chaincfg.MainNetParams)
}

// NewForNet creates a Message whose verification resolves addresses against
// the given network. A nil params defaults to mainnet.
func NewForNet(text string, params *chaincfg.Params) *Message {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &Message{text: text, params: params}
}

// Object is the serialized object form of a Message.
type Object struct {
	Message string `json:"message"`
}

// FromObject creates a Message from its parsed object form.
func FromObject(obj Object) *Message {
	return New(obj.Message)
}

// FromJSON creates a Message from a JSON document carrying a "message" field.
func FromJSON(data []byte) (*Message, error) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("message: failed to parse JSON: %w", err)
	}
	return FromObject(obj), nil
}

// ToObject returns the object form of the message.
func (m *Message) ToObject() Object {
	return Object{Message: m.text}
}

// ToJSON returns the JSON-encoded object form.
func (m *Message) ToJSON() (string, error) {
	data, err := json.Marshal(m.ToObject())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// String returns the raw message text.
func (m *Message) String() string {
	return m.text
}

// GoString returns a human-readable debug rendering.
func (m *Message) GoString() string {
	return fmt.Sprintf("<Message: '%s'>", m.text)
}

// LastError returns the diagnostic reason recorded by the most recent failed
// Verify call, or the empty string if the last call succeeded. Best-effort:
// meaningful only for the latest completed call on this instance.
func (m *Message) LastError() string {
	return m.lastError
}

// MagicHash returns the double SHA-256 digest of
//
//	varint(len(prefix)) || prefix || varint(len(text)) || text
//
// the digest both Sign and Verify operate on. It is recomputed on every call
// and depends only on the message text.
func (m *Message) MagicHash() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = wire.WriteVarInt(&buf, 0, uint64(len(magicPrefix)))
	buf.WriteString(magicPrefix)
	_ = wire.WriteVarInt(&buf, 0, uint64(len(m.text)))
	buf.WriteString(m.text)
	return chainhash.DoubleHashB(buf.Bytes())
}

// Sign signs the magic hash with the given private key and returns the
// 65-byte compact recoverable signature in base64. The signature commits to
// the compressed form of the public key.
func (m *Message) Sign(key *btcec.PrivateKey) (string, error) {
	if key == nil {
		return "", ErrNilPrivateKey
	}
	signer := sign.NewBitcoinSignerFromKey(key, m.params)
	sig, err := signer.Sign(m.MagicHash())
	if err != nil {
		return "", fmt.Errorf("message: signing failed: %w", err)
	}
	return sig.Base64(), nil
}

// VerifyResult reports the outcome of a verification together with the
// diagnostic reason for a failure.
type VerifyResult struct {
	OK     bool
	Reason string
}

// Verify checks a base64 compact signature against a claimed address.
//
// Malformed inputs (nil address, undecodable or unrecoverable signatures)
// surface as errors. A well-formed signature that simply does not prove
// control of the address is not an error: Verify returns false and records
// the reason, readable via LastError.
func (m *Message) Verify(address btcutil.Address, signature string) (bool, error) {
	res, err := m.VerifyDetailed(address, signature)
	return res.OK, err
}

// VerifyString is Verify for a base58check-encoded address, resolved against
// the message's network. Undecodable or wrong-network addresses surface as
// ErrInvalidAddress.
func (m *Message) VerifyString(address, signature string) (bool, error) {
	addr, err := sign.NewBitcoinAddressFromString(address, m.params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return m.Verify(addr.Address, signature)
}

// VerifyDetailed runs the verification and returns the structured result.
// The checks run in a fixed order:
//
//  1. decode the base64 signature and recover the candidate public key from
//     it and the magic hash (structural failures surface as
//     ErrInvalidSignatureEncoding);
//  2. derive the P2PKH address implied by the recovered key and compare its
//     string form with the claimed address; a mismatch fails with
//     ReasonDigestMismatch without touching the curve again;
//  3. fully verify the signature against the recovered key; a mismatch
//     fails with ReasonInvalidSignature.
func (m *Message) VerifyDetailed(address btcutil.Address, signature string) (VerifyResult, error) {
	m.lastError = ""
	if address == nil {
		return VerifyResult{}, ErrNilAddress
	}

	sig, err := sign.ParseBase64Signature(signature)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	hash := m.MagicHash()
	pub, err := sign.RecoverBitcoinPublicKey(hash, sig, m.params)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	claimed := sign.NewBitcoinAddress(address)
	if !pub.Address().Equals(claimed) {
		return m.fail(ReasonDigestMismatch), nil
	}

	if !sign.VerifyBitcoinHashSignature(hash, sig, pub) {
		return m.fail(ReasonInvalidSignature), nil
	}

	return VerifyResult{OK: true}, nil
}

func (m *Message) fail(reason string) VerifyResult {
	m.lastError = reason
	return VerifyResult{OK: false, Reason: reason}
}
