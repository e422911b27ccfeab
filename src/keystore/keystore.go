// Package keystore gives the dispute coordinator a narrow signing capability
// over validator keys held by the local node.
package keystore

import (
	"crypto/ecdsa"
	"sort"
	"strings"
	"sync"

	"github.com/mosaicnetworks/disputes/src/crypto/keys"
)

// Signer signs digests on behalf of validators whose keys are held locally.
// Keys are identified by their public key in hex. Sign reports ok=false,
// without error, when the key is not held.
type Signer interface {
	HasKey(pubKeyHex string) bool
	Sign(pubKeyHex string, digest []byte) (sig string, ok bool, err error)
}

// LocalKeystore is an in-memory Signer.
type LocalKeystore struct {
	l    sync.RWMutex
	keys map[string]*ecdsa.PrivateKey
}

// NewLocalKeystore creates a keystore holding the given keys.
func NewLocalKeystore(privKeys ...*ecdsa.PrivateKey) *LocalKeystore {
	ks := &LocalKeystore{
		keys: make(map[string]*ecdsa.PrivateKey),
	}
	for _, k := range privKeys {
		ks.Add(k)
	}
	return ks
}

// LoadLocalKeystore reads every key file with a SimpleKeyfile and returns a
// keystore holding them.
func LoadLocalKeystore(paths ...string) (*LocalKeystore, error) {
	ks := NewLocalKeystore()
	for _, p := range paths {
		key, err := keys.NewSimpleKeyfile(p).ReadKey()
		if err != nil {
			return nil, err
		}
		ks.Add(key)
	}
	return ks, nil
}

func normalise(pubKeyHex string) string {
	return "0X" + strings.TrimPrefix(strings.ToUpper(pubKeyHex), "0X")
}

// Add inserts a key.
func (ks *LocalKeystore) Add(key *ecdsa.PrivateKey) {
	ks.l.Lock()
	defer ks.l.Unlock()
	ks.keys[keys.PublicKeyHex(&key.PublicKey)] = key
}

// Remove deletes a key.
func (ks *LocalKeystore) Remove(pubKeyHex string) {
	ks.l.Lock()
	defer ks.l.Unlock()
	delete(ks.keys, normalise(pubKeyHex))
}

// PubKeys returns the sorted public keys of the held keys.
func (ks *LocalKeystore) PubKeys() []string {
	ks.l.RLock()
	defer ks.l.RUnlock()

	res := make([]string, 0, len(ks.keys))
	for pk := range ks.keys {
		res = append(res, pk)
	}
	sort.Strings(res)
	return res
}

// HasKey implements Signer.
func (ks *LocalKeystore) HasKey(pubKeyHex string) bool {
	ks.l.RLock()
	defer ks.l.RUnlock()
	_, ok := ks.keys[normalise(pubKeyHex)]
	return ok
}

// Sign implements Signer.
func (ks *LocalKeystore) Sign(pubKeyHex string, digest []byte) (string, bool, error) {
	ks.l.RLock()
	key, ok := ks.keys[normalise(pubKeyHex)]
	ks.l.RUnlock()

	if !ok {
		return "", false, nil
	}

	sig, err := keys.Sign(key, digest)
	if err != nil {
		return "", true, err
	}

	return sig, true, nil
}
