// Package hexutil decodes and encodes the hex strings the CLI accepts
// and prints. Hex handling sits outside the VM core, mirroring the
// reference's decode_hex/encode_hex standing apart from VmRom/run_evm.
package hexutil

import (
	"encoding/hex"
	"strings"

	"github.com/oisee/evmvm/pkg/u256"
)

// Decode parses s as a hex string, tolerating an optional "0x"/"0X"
// prefix. An odd-length input or a non-hex character is an error.
func Decode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// Encode renders bytes as lowercase hex with no prefix, matching the
// reference's encode_hex.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// EncodeU256 renders v as "0x" followed by 64 lowercase hex digits, the
// root command's output format.
func EncodeU256(v u256.U256) string {
	raw := v.Bytes32()
	return "0x" + hex.EncodeToString(raw[:])
}
