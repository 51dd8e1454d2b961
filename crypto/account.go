package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountPrefix is the human-readable part used when rendering account ids.
const AccountPrefix = "fire"

// AccountIDLength is the fixed width of an account identifier.
const AccountIDLength = 32

// poolAccountTag mirrors the "modl" prefix used when turning a module
// identifier into an account.
var poolAccountTag = []byte("modl")

// AccountID is an opaque fixed-width account identifier.
type AccountID [AccountIDLength]byte

// ZeroAccount is the all-zero identifier. It never resolves to a payable account.
var ZeroAccount AccountID

// AccountFromBytes copies b into an AccountID. The slice must be exactly
// AccountIDLength bytes long.
func AccountFromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != AccountIDLength {
		return id, fmt.Errorf("crypto: account id must be %d bytes (got %d)", AccountIDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns a copy of the raw identifier.
func (a AccountID) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// IsZero reports whether the identifier is unset.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

// Compare orders identifiers byte-wise.
func (a AccountID) Compare(other AccountID) int {
	return bytes.Compare(a[:], other[:])
}

// Hex renders the identifier as lowercase hex without prefix.
func (a AccountID) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a AccountID) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return a.Hex()
	}
	encoded, err := bech32.Encode(AccountPrefix, conv)
	if err != nil {
		return a.Hex()
	}
	return encoded
}

// MarshalText implements encoding.TextMarshaler using the bech32 form.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts either the bech32 form or 0x-prefixed hex.
func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccount decodes an account from its bech32 representation. A 0x
// prefixed 64 character hex string is accepted as well.
func ParseAccount(value string) (AccountID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("crypto: account id required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hexutil.Decode("0x" + trimmed[2:])
		if err != nil {
			return AccountID{}, fmt.Errorf("crypto: decode hex account: %w", err)
		}
		return AccountFromBytes(raw)
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AccountPrefix {
		return AccountID{}, fmt.Errorf("crypto: unexpected account prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return AccountID{}, fmt.Errorf("crypto: convert bits: %w", err)
	}
	return AccountFromBytes(conv)
}

// DerivePoolAccount turns a module seed (at most 8 bytes) into the account
// holding pooled funds: "modl" followed by the seed, zero padded and truncated
// to the account width. The derivation is deterministic and has no secret.
func DerivePoolAccount(seed string) (AccountID, error) {
	var id AccountID
	if seed == "" {
		return id, fmt.Errorf("crypto: pool seed required")
	}
	if len(seed) > 8 {
		return id, fmt.Errorf("crypto: pool seed %q longer than 8 bytes", seed)
	}
	n := copy(id[:], poolAccountTag)
	copy(id[n:], seed)
	return id, nil
}
