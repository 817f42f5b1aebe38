// Package message implements the Bitcoin signed-message protocol: a compact,
// transferable proof that the holder of a private key controls the key behind
// an address, bound to an arbitrary piece of text.
//
// Signing and verification both operate on the "magic hash", a double SHA-256
// digest of the message framed with a fixed protocol prefix:
//
//	varint(len("Bitcoin Signed Message:\n")) || "Bitcoin Signed Message:\n" ||
//	varint(len(text)) || text
//
// The framing domain-separates message signatures from transaction
// signatures. Signatures are 65-byte compact recoverable signatures carried
// as base64 text, so a verifier needs only the address and the message: the
// public key is recovered from the signature itself.
//
// Usage
//
//	msg := message.New("hello world")
//	sigB64, err := msg.Sign(privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ok, err := msg.VerifyString(addressString, sigB64)
//	if err != nil {
//	    log.Fatal(err) // malformed address or signature
//	}
//	if !ok {
//	    fmt.Println("rejected:", msg.LastError())
//	}
package message
