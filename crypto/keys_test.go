package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 20)
	addr, err := NewAddress(EscrowPrefix, raw)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(EscrowPrefix)+"1") {
		t.Fatalf("encoded address %q lacks the prefix", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip changed the payload")
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress(EscrowPrefix, make([]byte, 19)); err == nil {
		t.Fatalf("19-byte address must be rejected")
	}
	if _, err := NewAddress(EscrowPrefix, make([]byte, 21)); err == nil {
		t.Fatalf("21-byte address must be rejected")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	foreign := MustNewAddress("oth", bytes.Repeat([]byte{0x01}, 20)).String()
	if _, err := DecodeAddress(foreign); err == nil {
		t.Fatalf("foreign prefix must be rejected")
	}
	if _, err := DecodeAddress("not-bech32-at-all"); err == nil {
		t.Fatalf("malformed string must be rejected")
	}
}

func TestGeneratedKeyDerivesStableAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	first := key.PubKey().Address()
	second := key.PubKey().Address()
	if first.String() != second.String() {
		t.Fatalf("address derivation must be deterministic")
	}
	if first.Prefix() != EscrowPrefix {
		t.Fatalf("derived address carries prefix %q", first.Prefix())
	}

	other, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	if other.PubKey().Address().String() == first.String() {
		t.Fatalf("two fresh keys must not share an address")
	}
}

func TestAddressBytesAreCopied(t *testing.T) {
	raw := bytes.Repeat([]byte{0x07}, 20)
	addr := MustNewAddress(EscrowPrefix, raw)
	leaked := addr.Bytes()
	leaked[0] = 0xFF
	if addr.Bytes()[0] != 0x07 {
		t.Fatalf("Bytes must return a copy")
	}
}
