package chain

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsHexAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ChecksumAddress returns the EIP-55 mixed-case form of address.
func ChecksumAddress(address string) (string, error) {
	if !IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}

	lower := strings.ToLower(address[2:])
	hash := hex.EncodeToString(keccak256([]byte(lower)))

	var b strings.Builder
	b.Grow(42)
	b.WriteString("0x")
	for i, c := range lower {
		// Letters are upper-cased when the matching hash nibble is >= 8.
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			b.WriteRune(c - 'a' + 'A')
			continue
		}
		b.WriteRune(c)
	}
	return b.String(), nil
}

// SameAddress compares two addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// FunctionSelector returns the 4-byte selector of a Solidity signature such
// as "deposit()".
func FunctionSelector(signature string) []byte {
	return keccak256([]byte(signature))[:4]
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
