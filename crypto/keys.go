package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 account address.
type AddressPrefix string

// EscrowPrefix is the prefix carried by every account address on the custody
// ledger.
const EscrowPrefix AddressPrefix = "esc"

// Address represents a 20-byte account address with its bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long, got %d", len(b))
	}
	buf := make([]byte, 20)
	copy(buf, b)
	return Address{prefix: prefix, bytes: buf}, nil
}

// MustNewAddress is a convenience for callers holding a known-good 20-byte
// value, such as event constructors.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	buf := make([]byte, len(a.bytes))
	copy(buf, a.bytes)
	return buf
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32-encoded account address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address payload: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address must decode to 20 bytes, got %d", len(conv))
	}
	if AddressPrefix(prefix) != EscrowPrefix {
		return Address{}, fmt.Errorf("unsupported address prefix %q", prefix)
	}
	return Address{prefix: AddressPrefix(prefix), bytes: conv}, nil
}

// PrivateKey wraps an secp256k1 key used to identify a custody participant.
type PrivateKey struct {
	PrivateKey *ecdsa.PrivateKey
}

// GeneratePrivateKey creates a new random secp256k1 private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: key}, nil
}

// PubKey returns the public key associated with the private key.
func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{PublicKey: &p.PrivateKey.PublicKey}
}

// PublicKey wraps the verifying half of a participant key.
type PublicKey struct {
	PublicKey *ecdsa.PublicKey
}

// Address derives the bech32 account address from the public key, following
// the Ethereum convention of keccak256(pubkey)[12:].
func (p *PublicKey) Address() Address {
	raw := ethcrypto.FromECDSAPub(p.PublicKey)
	hash := ethcrypto.Keccak256(raw[1:])
	return MustNewAddress(EscrowPrefix, hash[12:])
}
