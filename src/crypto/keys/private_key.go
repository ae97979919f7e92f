package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// DumpPrivateKey returns the private scalar as a fixed 32-byte big-endian
// value. This is the format of keyfiles.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil || priv.D == nil {
		return nil
	}
	if priv.D.BitLen() > 8*seedSize {
		return priv.D.Bytes()
	}
	return priv.D.FillBytes(make([]byte, seedSize))
}

// ParsePrivateKey is the inverse of DumpPrivateKey. The scalar must lie in
// [1, N).
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != seedSize {
		return nil, fmt.Errorf("invalid private key length %d, need %d bytes", len(d), seedSize)
	}

	if !validScalar(new(big.Int).SetBytes(d)) {
		return nil, fmt.Errorf("invalid private key, outside [1, N)")
	}

	priv, _ := btcec.PrivKeyFromBytes(Curve(), d)

	return priv.ToECDSA(), nil
}

// PrivateKeyHex returns the hex encoding of DumpPrivateKey.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}

func validScalar(d *big.Int) bool {
	return d.Sign() > 0 && d.Cmp(secp256k1N) < 0
}
