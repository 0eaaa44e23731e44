package seal

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestChecksumKnownVector(t *testing.T) {
	t.Parallel()
	const empty = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Checksum(nil); got != empty {
		t.Errorf("Checksum(nil) = %s, want %s", got, empty)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	data := []byte("tarball")
	sum := Checksum(data)

	if err := Verify(data, sum); err != nil {
		t.Errorf("Verify(prefixed): %v", err)
	}
	if err := Verify(data, strings.TrimPrefix(sum, "sha256:")); err != nil {
		t.Errorf("Verify(bare hex): %v", err)
	}
	if err := Verify([]byte("tampered"), sum); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Verify(tampered) err = %v, want ErrChecksumMismatch", err)
	}
}

func TestHMACSigner(t *testing.T) {
	t.Parallel()
	if _, err := NewHMACSigner(nil); err == nil {
		t.Fatal("NewHMACSigner(nil) should fail")
	}
	s, err := NewHMACSigner([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	sig, err := s.Sign(context.Background(), "sha256:abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 32 {
		t.Errorf("len(sig) = %d, want 32", len(sig))
	}
	if !s.Valid("sha256:abc", sig) {
		t.Error("own signature did not validate")
	}
	if s.Valid("sha256:abd", sig) {
		t.Error("signature validated for a different checksum")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sign(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Sign(cancelled) err = %v", err)
	}
}
