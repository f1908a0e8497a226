// Package cryptox implements the cryptographic primitives of taskgrid:
// argon2id password hashing, constant-time comparison, hybrid encryption
// of response payloads for a named recipient, and RSA-PSS signature
// verification for the signature-based login flow.
package cryptox

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/kpawlak/taskgrid/internal/common"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters. The encoded form carries its own parameters, so
// VerifyPassword keeps working for hashes produced with older values.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword derives an argon2id hash of the given password over a fresh
// random salt and returns it in the standard encoded form:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<base64 salt>$<base64 key>
//
// The result is one-way; there is no decryption path.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// VerifyPassword reports whether plain matches the encoded argon2id hash.
// The derived key is compared with subtle.ConstantTimeCompare; a malformed
// encoded hash simply verifies as false.
func VerifyPassword(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(plain), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// SecureCompare compares two strings in constant time. Used wherever the
// compared values are secrets or identities and a timing side-channel would
// leak information.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NormalizePublicKey accepts either a full PEM envelope or a bare base64
// SPKI body (some clients strip the armor before sending) and returns PEM.
func NormalizePublicKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return trimmed
	}

	raw := strings.Join(strings.Fields(trimmed), "")
	var b strings.Builder
	b.WriteString("-----BEGIN PUBLIC KEY-----\n")
	for len(raw) > 64 {
		b.WriteString(raw[:64])
		b.WriteByte('\n')
		raw = raw[64:]
	}
	if len(raw) > 0 {
		b.WriteString(raw)
		b.WriteByte('\n')
	}
	b.WriteString("-----END PUBLIC KEY-----")
	return b.String()
}

// ParseRSAPublicKey loads an RSA public key from PEM (or bare base64) SPKI
// form. Returns common.ErrorInvalidKey when the material cannot be parsed
// or is not an RSA key.
func ParseRSAPublicKey(key string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(NormalizePublicKey(key)))
	if block == nil {
		return nil, common.ErrorInvalidKey
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, common.ErrorInvalidKey
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, common.ErrorInvalidKey
	}

	return rsaKey, nil
}

// sessionKeyLen is the AES-256 key size used for payload encryption.
const sessionKeyLen = 32

// EncryptForRecipient encrypts plaintext to the recipient's RSA public key.
// Raw OAEP caps the plaintext at modulusSize-66 bytes (190 for RSA-2048),
// which a token envelope or a multi-row listing already exceeds, so the
// payload is sealed with a fresh AES-256-GCM key and only that key is
// OAEP-wrapped. The returned blob is
//
//	wrappedKey (modulus size) || nonce (12) || GCM ciphertext
//
// and DecryptForRecipient splits it again using the private key's size.
func EncryptForRecipient(publicKey string, plaintext []byte) ([]byte, error) {
	rsaKey, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	key := common.GenerateRandByteArray(sessionKeyLen)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorEncryptionFailed, err)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaKey, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorEncryptionFailed, err)
	}

	nonce := common.GenerateRandByteArray(gcm.NonceSize())
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(wrapped)+len(nonce)+len(sealed))
	out = append(out, wrapped...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// DecryptForRecipient reverses EncryptForRecipient with the recipient's
// private key: unwraps the AES key, then opens the GCM ciphertext.
func DecryptForRecipient(priv *rsa.PrivateKey, blob []byte) ([]byte, error) {
	keySize := priv.Size()
	if len(blob) < keySize {
		return nil, common.ErrorDecryptionFailed
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, blob[:keySize], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryptionFailed, err)
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryptionFailed, err)
	}

	rest := blob[keySize:]
	if len(rest) < gcm.NonceSize() {
		return nil, common.ErrorDecryptionFailed
	}

	plain, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryptionFailed, err)
	}
	return plain, nil
}

// VerifySignature checks an RSA-PSS signature (SHA-256, base64-encoded) over
// message against the given public key. Any malformed input verifies as
// false; this function never returns an error.
func VerifySignature(publicKey string, message []byte, signatureB64 string) bool {
	rsaKey, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(message)
	err = rsa.VerifyPSS(rsaKey, crypto.SHA256, digest[:], sig, nil)
	return err == nil
}
