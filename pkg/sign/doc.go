// Package sign provides blockchain-agnostic cryptographic signing interfaces.
//
// This package defines core interfaces for recoverable digital signatures
// that can be implemented by various blockchain ecosystems while maintaining
// a consistent API for signing operations.
//
// The primary interfaces are:
//
//   - Signer: Core interface for cryptographic signing operations
//   - PublicKey: Interface for public key operations
//   - Address: Interface for blockchain addresses
//   - AddressRecoverer: Optional interface for signature-based address recovery
//
// Two implementations ship with the package: a Bitcoin one producing compact
// recoverable signatures (header || R || S) with base58check P2PKH address
// derivation, and an Ethereum one producing R || S || V signatures with
// EIP-191 personal-message hashing.
//
// # Security Design
//
// This package follows security best practices by:
//   - Never exposing private key material through interfaces
//   - Providing only necessary operations (signing and public key access)
//   - Supporting hardware security modules (HSM) and key management services (KMS)
//   - Preventing accidental private key leakage in logs or debugging
//
// Usage
//
//	// Create a new Bitcoin signer from a hex-encoded private key
//	signer, err := sign.NewBitcoinSigner(privateKeyHex, &chaincfg.MainNetParams)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Sign a digest (provide hash, not raw message)
//	hash := chainhash.DoubleHashB([]byte("hello world"))
//	signature, err := signer.Sign(hash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Get the address
//	address := signer.PublicKey().Address()
//	fmt.Println("Address:", address.String())
package sign
