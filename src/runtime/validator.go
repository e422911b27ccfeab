package runtime

import (
	"crypto/ecdsa"
	"strings"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/crypto/keys"
)

// Validator is a member of a session's validator set.
type Validator struct {
	PubKeyHex string
	Moniker   string

	pubKey *ecdsa.PublicKey
}

// NewValidator ...
func NewValidator(pubKeyHex, moniker string) *Validator {
	v := &Validator{
		PubKeyHex: cleansePubKeyHex(pubKeyHex),
		Moniker:   moniker,
	}
	v.pubKey = keys.ToPublicKey(v.PubKeyBytes())
	return v
}

// PubKeyBytes returns the raw public key, or nil if PubKeyHex is malformed.
func (v *Validator) PubKeyBytes() []byte {
	res, err := common.DecodeFromString(v.PubKeyHex)
	if err != nil {
		return nil
	}
	return res
}

// PubKey returns the validator's public key, or nil if PubKeyHex does not
// encode a point on the curve.
func (v *Validator) PubKey() *ecdsa.PublicKey {
	if v.pubKey != nil {
		return v.pubKey
	}
	return keys.ToPublicKey(v.PubKeyBytes())
}

// cleansePubKeyHex standardises public key strings to match the format derived
// from a private key.
func cleansePubKeyHex(pubKeyHex string) string {
	return "0X" + strings.TrimPrefix(strings.ToUpper(pubKeyHex), "0X")
}
