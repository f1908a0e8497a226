package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrCreateKeys_CreateThenReload(t *testing.T) {
	t.Chdir(t.TempDir())

	priv, pub, err := LoadOrCreateKeys("keys")
	if err != nil {
		t.Fatalf("LoadOrCreateKeys error: %v", err)
	}
	if priv == nil || !strings.HasPrefix(pub, "-----BEGIN PUBLIC KEY-----") {
		t.Fatalf("unexpected key material: %q", pub)
	}

	// Both files exist on disk.
	for _, name := range []string{privateKeyFile, publicKeyFile} {
		if _, err := os.Stat(filepath.Join("keys", name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	// A second call loads the same pair instead of generating a new one.
	priv2, pub2, err := LoadOrCreateKeys("keys")
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if pub2 != pub {
		t.Fatal("reload produced a different public key")
	}
	if priv2.D.Cmp(priv.D) != 0 {
		t.Fatal("reload produced a different private key")
	}
}

func TestLoadOrCreateKeys_CorruptPrivateKey(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("keys", 0o770); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join("keys", privateKeyFile), []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := LoadOrCreateKeys("keys"); err == nil {
		t.Fatal("want error for corrupt key file")
	}
}
