package keys

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
)

// Sign signs the SHA256 digest of message and returns the DER encoded
// signature. Nonces are derived deterministically (RFC6979), so signing does not
// consume randomness.
func Sign(kp *Keypair, message []byte) ([]byte, error) {
	if kp == nil {
		return nil, fmt.Errorf("nil keypair")
	}

	digest := sha256.Sum256(message)

	sig, err := kp.priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}

	return sig.Serialize(), nil
}

// Verify reports whether sig is a valid signature of the SHA256 digest of
// message by the owner of pub. Malformed keys or signatures are reported as
// invalid.
func Verify(pub []byte, message []byte, sig []byte) bool {
	pubKey, err := ParsePublicKey(pub)
	if err != nil {
		return false
	}

	signature, err := btcec.ParseDERSignature(sig, Curve())
	if err != nil {
		return false
	}

	digest := sha256.Sum256(message)

	return signature.Verify(digest[:], pubKey)
}
