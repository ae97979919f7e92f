package keys

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/dagledger/src/common"
)

// ParsePublicKey decodes a public key in compressed or uncompressed form and
// checks that it is a point on the curve.
func ParsePublicKey(pub []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(pub, Curve())
}

// PublicKeyHexFromBytes returns the identifier of a public key: the 0X-prefixed
// uppercase hex of its encoding. This is the sender identifier carried by
// transactions.
func PublicKeyHexFromBytes(pub []byte) string {
	return common.EncodeToString(pub)
}
