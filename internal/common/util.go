package common

import "crypto/rand"

// GenerateRandByteArray returns size cryptographically random bytes.
// crypto/rand.Read never fails on supported platforms; a failure here means
// the process cannot safely continue.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as passwords from memory
// after use. If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
