package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateCode returns a random numeric verification code of the given
// length. Leading zeros are valid, every digit is drawn independently.
func GenerateCode(length int) string {
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b)
}

// RandomHex returns n random bytes hex-encoded. Used for session ids
// (20 bytes) and one-time tokens (32 bytes).
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// RandomInt returns a uniform random int in [0, max).
func RandomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int(n.Int64())
}
