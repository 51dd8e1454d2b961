package crypto

import (
	"strings"
	"testing"
)

func TestAccountRoundTripBech32(t *testing.T) {
	var id AccountID
	for i := range id {
		id[i] = byte(i)
	}
	encoded := id.String()
	if !strings.HasPrefix(encoded, AccountPrefix+"1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	decoded, err := ParseAccount(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decoded != id {
		t.Fatalf("round trip mismatch: %x != %x", decoded, id)
	}
}

func TestParseAccountHex(t *testing.T) {
	raw := "0x" + strings.Repeat("ab", AccountIDLength)
	id, err := ParseAccount(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id[0] != 0xab || id[AccountIDLength-1] != 0xab {
		t.Fatalf("unexpected bytes: %x", id)
	}
	if _, err := ParseAccount("0xabcd"); err == nil {
		t.Fatalf("expected short hex rejection")
	}
}

func TestDerivePoolAccount(t *testing.T) {
	first, err := DerivePoolAccount("py/rewrd")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := DerivePoolAccount("py/rewrd")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if first != second {
		t.Fatalf("derivation must be deterministic")
	}
	if string(first[:12]) != "modlpy/rewrd" {
		t.Fatalf("unexpected layout: %q", first[:12])
	}
	for _, b := range first[12:] {
		if b != 0 {
			t.Fatalf("expected zero padding, got %x", first)
		}
	}
	if _, err := DerivePoolAccount("too-long-seed"); err == nil {
		t.Fatalf("expected long seed rejection")
	}
	if _, err := DerivePoolAccount(""); err == nil {
		t.Fatalf("expected empty seed rejection")
	}
}
