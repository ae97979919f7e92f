package keys

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

/*
Keys and signing are based on elliptic curve cryptography. We use the secp256k1
curve because it is also used by Bitcoin and Ethereum, which lets existing
wallets sign ledger transactions.
*/

//Parameters of the secp256k1 curve. They are used in other functions to verify
//that a private key is valid.
var (
	secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
)

//Curve returns the secp256k1 curve from btcsuite's golang implementation.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}
