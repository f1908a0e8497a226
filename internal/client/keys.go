package client

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kpawlak/taskgrid/internal/filex"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
	keyBits        = 2048
)

// LoadOrCreateKeys returns the client's RSA keypair from dirName, creating
// the directory and a fresh 2048-bit pair on first run. The public key is
// returned in PEM SPKI form, ready to be sent at login.
func LoadOrCreateKeys(dirName string) (*rsa.PrivateKey, string, error) {
	dir, err := filex.EnsureSubdDir(dirName)
	if err != nil {
		return nil, "", err
	}

	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)

	if data, err := os.ReadFile(privPath); err == nil {
		priv, err := parsePrivateKey(data)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", privPath, err)
		}
		pub, err := encodePublicKey(priv)
		if err != nil {
			return nil, "", err
		}
		return priv, pub, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("reading %s: %w", privPath, err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, "", fmt.Errorf("generating keypair: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, "", err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, "", fmt.Errorf("writing %s: %w", privPath, err)
	}

	pub, err := encodePublicKey(priv)
	if err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(pubPath, []byte(pub), 0o644); err != nil {
		return nil, "", fmt.Errorf("writing %s: %w", pubPath, err)
	}

	return priv, pub, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Older files may carry PKCS#1.
		if rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 == nil {
			return rsaKey, nil
		}
		return nil, err
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return rsaKey, nil
}

func encodePublicKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
