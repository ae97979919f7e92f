package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// seedSize is the number of random bytes drawn to build a private key.
const seedSize = 32

// randReader is the source of key seeds. It is only swapped in tests.
var randReader io.Reader = rand.Reader

// KeyGenerationError is returned when the secure random source cannot provide
// a seed. It is fatal: callers must not continue with a degraded key.
type KeyGenerationError struct {
	Err error
}

// Error implements the error interface.
func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("key generation failed: %v", e.Err)
}

// Unwrap returns the underlying read error.
func (e *KeyGenerationError) Unwrap() error {
	return e.Err
}

// Keypair holds a secp256k1 private key along with the encodings of its public
// half. It is immutable and safe to share between goroutines.
type Keypair struct {
	priv *btcec.PrivateKey

	pubBytes []byte
	pubHex   string
}

// GenerateKeypair draws a fresh 32-byte seed from the secure random source. A
// seed outside [1, N) is redrawn.
func GenerateKeypair() (*Keypair, error) {
	seed := make([]byte, seedSize)

	for {
		if _, err := io.ReadFull(randReader, seed); err != nil {
			return nil, &KeyGenerationError{Err: err}
		}

		if validScalar(new(big.Int).SetBytes(seed)) {
			break
		}
	}

	priv, _ := btcec.PrivKeyFromBytes(Curve(), seed)

	return newKeypair(priv), nil
}

// MustGenerateKeypair is like GenerateKeypair but panics if the random source
// is unavailable.
func MustGenerateKeypair() *Keypair {
	kp, err := GenerateKeypair()
	if err != nil {
		panic(err)
	}
	return kp
}

// KeypairFromPrivateKey wraps an existing ecdsa private key. The key must be on
// the secp256k1 curve.
func KeypairFromPrivateKey(key *ecdsa.PrivateKey) (*Keypair, error) {
	if key == nil || key.D == nil {
		return nil, fmt.Errorf("nil private key")
	}

	priv, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		return nil, err
	}

	return newKeypair((*btcec.PrivateKey)(priv)), nil
}

func newKeypair(priv *btcec.PrivateKey) *Keypair {
	pub := priv.PubKey().SerializeUncompressed()
	return &Keypair{
		priv:     priv,
		pubBytes: pub,
		pubHex:   PublicKeyHexFromBytes(pub),
	}
}

// PrivateKey returns the underlying ecdsa private key.
func (k *Keypair) PrivateKey() *ecdsa.PrivateKey {
	return k.priv.ToECDSA()
}

// PublicKeyBytes returns the uncompressed encoding of the public key.
func (k *Keypair) PublicKeyBytes() []byte {
	return k.pubBytes
}

// PublicKeyHex returns the identifier derived from the public key.
func (k *Keypair) PublicKeyHex() string {
	return k.pubHex
}
