package deploy

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// EnsureKeyPair makes sure an ed25519 SSH keypair exists at keyPath,
// generating one if missing, and returns the authorized-keys line for the
// public key. The private key file is written with owner-only permissions
// as SSH requires.
func EnsureKeyPair(keyPath, comment string) (string, error) {
	if data, err := os.ReadFile(keyPath + ".pub"); err == nil {
		return string(data), nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return "", fmt.Errorf("encode private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return "", fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", fmt.Errorf("write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("encode public key: %w", err)
	}
	authorized := ssh.MarshalAuthorizedKey(sshPub)
	if err := os.WriteFile(keyPath+".pub", authorized, 0o644); err != nil {
		return "", fmt.Errorf("write public key: %w", err)
	}
	return string(authorized), nil
}
