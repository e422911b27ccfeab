package keys

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec"
)

// Sign signs a digest and returns the DER encoded signature in hex. Signatures
// are deterministic (RFC6979).
func Sign(priv *ecdsa.PrivateKey, digest []byte) (string, error) {
	sig, err := (*btcec.PrivateKey)(priv).Sign(digest)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks a signature produced by Sign. A malformed signature is an
// error, a signature by another key is not.
func Verify(pub *ecdsa.PublicKey, digest []byte, sig string) (bool, error) {
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return false, err
	}

	s, err := btcec.ParseDERSignature(raw, btcec.S256())
	if err != nil {
		return false, err
	}

	return s.Verify(digest, (*btcec.PublicKey)(pub)), nil
}
