// Package keys implements the public key cryptography used to sign and verify
// ledger transactions.
//
// Every transaction carries the uncompressed public key of its signer, so a
// transaction can be verified without any external key lookup. The sender
// identifier of a transaction is derived from that public key (see
// PublicKeyHex).
//
// We use ECDSA over the secp256k1 curve. Signatures are DER encoded and always
// computed over the SHA256 digest of the message.
//
// Private key material never leaves this package except through DumpPrivateKey,
// which exists for external key stores.
package keys
