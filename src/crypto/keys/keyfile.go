package keys

import (
	"crypto/ecdsa"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

// SimpleKeyfile stores one validator key, as hex, in a file readable by its
// owner only.
type SimpleKeyfile struct {
	l    sync.Mutex
	path string
}

// NewSimpleKeyfile ...
func NewSimpleKeyfile(path string) *SimpleKeyfile {
	return &SimpleKeyfile{path: path}
}

// ReadKey loads the key. It refuses files that group or others can access.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	info, err := os.Stat(k.path)
	if err != nil {
		return nil, err
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("%s: key file is accessible by group or others (%o)", k.path, perm)
	}

	buf, err := ioutil.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKeyHex(string(buf))
}

// WriteKey saves the key, creating the parent directory if needed.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(k.path, []byte(PrivateKeyHex(key)), 0600)
}
