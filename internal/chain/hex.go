package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ErrInvalidHex is returned for malformed hex quantities or data.
var ErrInvalidHex = errors.New("invalid hex")

// EncodeBig encodes v as a JSON-RPC quantity ("0x0" for zero or nil).
func EncodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// EncodeUint64 encodes v as a JSON-RPC quantity.
func EncodeUint64(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// EncodeBytes encodes b as 0x-prefixed hex data.
func EncodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeBig decodes a JSON-RPC quantity.
func DecodeBig(s string) (*big.Int, error) {
	digits, err := trimHexPrefix(s)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative quantity %q", ErrInvalidHex, s)
	}
	return v, nil
}

// DecodeUint64 decodes a JSON-RPC quantity that fits in 64 bits.
func DecodeUint64(s string) (uint64, error) {
	digits, err := trimHexPrefix(s)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return v, nil
}

func trimHexPrefix(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("%w: missing 0x prefix in %q", ErrInvalidHex, s)
	}
	digits := s[2:]
	if digits == "" {
		return "", fmt.Errorf("%w: empty quantity", ErrInvalidHex)
	}
	return digits, nil
}
