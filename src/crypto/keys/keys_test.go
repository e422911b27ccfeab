package keys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/crypto"
)

func testDir(t *testing.T) string {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "keys")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestValidatorKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	raw := PrivateKeyHex(key)
	if len(raw) != 64 {
		t.Fatalf("private key hex should be 64 chars, not %d", len(raw))
	}

	parsed, err := ParsePrivateKeyHex(" " + raw + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if parsed.D.Cmp(key.D) != 0 {
		t.Fatal("parsed key should have the same scalar")
	}
	if PublicKeyHex(&parsed.PublicKey) != PublicKeyHex(&key.PublicKey) {
		t.Fatal("parsed key should have the same public key")
	}

	for _, bad := range []string{
		"",
		"zz",
		raw[:62],
		strings.Repeat("0", 64),
		strings.Repeat("f", 64),
	} {
		if _, err := ParsePrivateKeyHex(bad); err == nil {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestValidatorPublicKey(t *testing.T) {
	key, _ := GenerateECDSAKey()

	pubHex := PublicKeyHex(&key.PublicKey)
	if !strings.HasPrefix(pubHex, "0X04") || strings.ToUpper(pubHex) != pubHex {
		t.Fatalf("public key should be uppercase uncompressed hex, got %s", pubHex)
	}

	raw, err := common.DecodeFromString(pubHex)
	if err != nil {
		t.Fatal(err)
	}

	pub := ToPublicKey(raw)
	if pub == nil || pub.X.Cmp(key.X) != 0 || pub.Y.Cmp(key.Y) != 0 {
		t.Fatal("public key should round-trip through its hex form")
	}

	if ToPublicKey(nil) != nil || ToPublicKey([]byte{4, 1, 2, 3}) != nil {
		t.Fatal("garbage should not produce a public key")
	}

	if PublicKeyHex(nil) != "" {
		t.Fatal("nil key should have no hex form")
	}
}

func TestVoteSignature(t *testing.T) {
	key, _ := GenerateECDSAKey()
	other, _ := GenerateECDSAKey()

	digest := crypto.SHA256([]byte("session 10, candidate 0XAB, invalid"))

	sig, err := Sign(key, digest)
	if err != nil {
		t.Fatal(err)
	}

	again, _ := Sign(key, digest)
	if again != sig {
		t.Fatal("signatures should be deterministic")
	}

	ok, err := Verify(&key.PublicKey, digest, sig)
	if err != nil || !ok {
		t.Fatalf("signature should verify, ok=%v err=%v", ok, err)
	}

	ok, err = Verify(&other.PublicKey, digest, sig)
	if err != nil || ok {
		t.Fatalf("signature should not verify with another key, ok=%v err=%v", ok, err)
	}

	ok, _ = Verify(&key.PublicKey, crypto.SHA256([]byte("valid")), sig)
	if ok {
		t.Fatal("signature should not verify another digest")
	}

	for _, bad := range []string{"", "not hex", "3006020101020101"[:10]} {
		if _, err := Verify(&key.PublicKey, digest, bad); err == nil {
			t.Fatalf("%q should be rejected as malformed", bad)
		}
	}
}

func TestSimpleKeyfile(t *testing.T) {
	dir := testDir(t)

	keyfile := NewSimpleKeyfile(filepath.Join(dir, "validator", "priv_key"))

	if _, err := keyfile.ReadKey(); err == nil {
		t.Fatal("reading a missing key file should fail")
	}

	key, _ := GenerateECDSAKey()
	if err := keyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	read, err := keyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}
	if PublicKeyHex(&read.PublicKey) != PublicKeyHex(&key.PublicKey) {
		t.Fatal("key read back should be the key written")
	}
}

func TestSimpleKeyfilePermissions(t *testing.T) {
	dir := testDir(t)

	key, _ := GenerateECDSAKey()
	raw := []byte(PrivateKeyHex(key))

	cases := []struct {
		mode os.FileMode
		ok   bool
	}{
		{0600, true},
		{0400, true},
		{0700, true},
		{0640, false},
		{0604, false},
		{0666, false},
		{0777, false},
	}

	for i, c := range cases {
		p := filepath.Join(dir, "priv_key_"+string(rune('a'+i)))
		if err := ioutil.WriteFile(p, raw, c.mode); err != nil {
			t.Fatal(err)
		}
		// WriteFile is subject to umask
		if err := os.Chmod(p, c.mode); err != nil {
			t.Fatal(err)
		}

		_, err := NewSimpleKeyfile(p).ReadKey()
		if c.ok && err != nil {
			t.Fatalf("%o: key file should be accepted: %v", c.mode, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("%o: key file should be refused", c.mode)
		}
	}
}
