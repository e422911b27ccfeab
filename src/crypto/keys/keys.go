package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/disputes/src/common"
)

// GenerateECDSAKey creates a new validator key.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// PrivateKeyHex returns the 32-byte scalar of the key in hex.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString((*btcec.PrivateKey)(key).Serialize())
}

// ParsePrivateKeyHex is the inverse of PrivateKeyHex. Surrounding whitespace
// is ignored.
func ParsePrivateKeyHex(s string) (*ecdsa.PrivateKey, error) {
	d, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}

	if len(d) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key should be %d bytes, got %d", btcec.PrivKeyBytesLen, len(d))
	}

	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), d)
	if priv.D.Sign() == 0 || priv.D.Cmp(btcec.S256().N) >= 0 {
		return nil, fmt.Errorf("private key out of range")
	}

	return priv.ToECDSA(), nil
}

// PublicKeyHex returns the 0X-prefixed uppercase hex of the uncompressed
// public key. This is the form in which validators are listed in a session's
// validator set.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	if pub == nil || pub.X == nil {
		return ""
	}
	return common.EncodeToString((*btcec.PublicKey)(pub).SerializeUncompressed())
}

// ToPublicKey parses a serialized public key. It returns nil if pub is not a
// point on the curve.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return nil
	}
	return key.ToECDSA()
}
