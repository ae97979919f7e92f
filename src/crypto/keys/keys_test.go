package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	kp, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if kp != nil {
		t.Fatalf("key is not nil")
	}

	// Initialize a key and try a write
	kp = MustGenerateKeypair()

	if err := simpleKeyfile.WriteKey(kp); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should get key
	nKp, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKp.PublicKeyHex() != kp.PublicKeyHex() {
		t.Fatalf("Keys do not match")
	}

	if PrivateKeyHex(nKp.PrivateKey()) != PrivateKeyHex(kp.PrivateKey()) {
		t.Fatalf("Private keys do not match")
	}
}

func TestSimpleKeyfileWriteKeepsExistingKey(t *testing.T) {
	simpleKeyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "priv_key"))

	kp := MustGenerateKeypair()
	if err := simpleKeyfile.WriteKey(kp); err != nil {
		t.Fatal(err)
	}

	if err := simpleKeyfile.WriteKey(MustGenerateKeypair()); !os.IsExist(err) {
		t.Fatalf("second WriteKey should fail with an exists error, got %v", err)
	}

	nKp, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}
	if nKp.PublicKeyHex() != kp.PublicKeyHex() {
		t.Fatalf("key was replaced")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	kp := MustGenerateKeypair()
	rawKey := hex.EncodeToString(DumpPrivateKey(kp.PrivateKey()))

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
		0477, 0466, 0444,
	}

	for _, fm := range shouldErr {
		if err := os.WriteFile(badKeyPath, []byte(rawKey), fm); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(badKeyPath, fm); err != nil {
			t.Fatal(err)
		}

		badKeyFile := NewSimpleKeyfile(badKeyPath)

		if _, err := badKeyFile.ReadKey(); err == nil {
			t.Fatalf("%o || badKeyFile should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	shouldNotErr := []os.FileMode{
		0700, 0600,
	}

	for _, fm := range shouldNotErr {
		if err := os.WriteFile(goodKeyPath, []byte(rawKey), fm); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(goodKeyPath, fm); err != nil {
			t.Fatal(err)
		}

		goodKeyFile := NewSimpleKeyfile(goodKeyPath)

		if _, err := goodKeyFile.ReadKey(); err != nil {
			t.Fatalf("%o || goodKeyFile should not return error. Got %v", fm, err)
		}
	}
}

func TestGenerateKeypairDistinct(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 20; i++ {
		kp, err := GenerateKeypair()
		if err != nil {
			t.Fatal(err)
		}
		if seen[kp.PublicKeyHex()] {
			t.Fatalf("duplicate key generated: %s", kp.PublicKeyHex())
		}
		seen[kp.PublicKeyHex()] = true
	}
}

func TestPublicKeyHexFormat(t *testing.T) {
	kp := MustGenerateKeypair()

	id := kp.PublicKeyHex()

	// 0X prefix + 65 bytes of uncompressed point
	if len(id) != 2+2*65 {
		t.Fatalf("unexpected identifier length %d", len(id))
	}

	if !strings.HasPrefix(id, "0X04") {
		t.Fatalf("identifier should start with 0X04, got %s", id[:4])
	}

	if id != strings.ToUpper(id) {
		t.Fatalf("identifier should be uppercase")
	}

	if id != PublicKeyHexFromBytes(kp.PublicKeyBytes()) {
		t.Fatalf("identifier should be derived from public key bytes")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGenerateKeypairRandomSourceFailure(t *testing.T) {
	prev := randReader
	randReader = failingReader{}
	defer func() { randReader = prev }()

	kp, err := GenerateKeypair()
	if err == nil {
		t.Fatalf("GenerateKeypair should fail")
	}
	if kp != nil {
		t.Fatalf("keypair should be nil")
	}

	var kerr *KeyGenerationError
	if !errors.As(err, &kerr) {
		t.Fatalf("expected KeyGenerationError, got %T", err)
	}
}

func TestGenerateKeypairRedrawsZeroSeed(t *testing.T) {
	seed := append(make([]byte, seedSize), bytes.Repeat([]byte{0x01}, seedSize)...)

	prev := randReader
	randReader = bytes.NewReader(seed)
	defer func() { randReader = prev }()

	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Repeat("01", seedSize)
	if got := PrivateKeyHex(kp.PrivateKey()); got != want {
		t.Fatalf("private key should come from second seed, got %s", got)
	}
}

func TestSignVerify(t *testing.T) {
	kp := MustGenerateKeypair()
	other := MustGenerateKeypair()

	msg := []byte("J'aime mieux forger mon ame que la meubler")

	sig, err := Sign(kp, msg)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(kp.PublicKeyBytes(), msg, sig) {
		t.Fatalf("signature should verify")
	}

	if Verify(other.PublicKeyBytes(), msg, sig) {
		t.Fatalf("signature should not verify under another key")
	}

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0x01
	if Verify(kp.PublicKeyBytes(), tampered, sig) {
		t.Fatalf("signature should not verify a different message")
	}

	if Verify([]byte{0x04, 0x01}, msg, sig) {
		t.Fatalf("malformed public key should not verify")
	}

	if Verify(kp.PublicKeyBytes(), msg, []byte("garbage")) {
		t.Fatalf("malformed signature should not verify")
	}
}

func TestSignatureBitFlips(t *testing.T) {
	kp := MustGenerateKeypair()
	msg := []byte("transfer")

	sig, err := Sign(kp, msg)
	if err != nil {
		t.Fatal(err)
	}

	for i := range sig {
		flipped := append([]byte{}, sig...)
		flipped[i] ^= 0x01
		if Verify(kp.PublicKeyBytes(), msg, flipped) {
			t.Fatalf("signature with byte %d flipped should not verify", i)
		}
	}
}

func TestKeypairFromPrivateKey(t *testing.T) {
	kp := MustGenerateKeypair()

	copyKp, err := KeypairFromPrivateKey(kp.PrivateKey())
	if err != nil {
		t.Fatal(err)
	}

	if copyKp.PublicKeyHex() != kp.PublicKeyHex() {
		t.Fatalf("public keys should match")
	}

	if _, err := KeypairFromPrivateKey(nil); err == nil {
		t.Fatalf("nil private key should be rejected")
	}
}

func TestParsePrivateKey(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero private key should be rejected")
	}

	if _, err := ParsePrivateKey([]byte{0x01}); err == nil {
		t.Fatalf("short private key should be rejected")
	}

	if _, err := ParsePrivateKey(bytes.Repeat([]byte{0xff}, 32)); err == nil {
		t.Fatalf("private key >= N should be rejected")
	}
}
