package main

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/go-adb/adbcore/adb/keystore"
)

// loadOrCreateIdentity reads the PKCS#1 PEM identity at path, generating
// and persisting a fresh RSA-2048 key the first time adbctl runs against a
// given key path (like the real adb client's first-run "adbkey"; no
// "adbkey.pub" file is written).
func loadOrCreateIdentity(path string) (*keystore.Identity, error) {
	label := identityLabel()

	data, err := os.ReadFile(path)
	if err == nil {
		return keystore.ParsePKCS1PrivateKeyPEM(data, label)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	log.Info().Str("path", path).Msg("no identity found, generating a new one")
	identity, err := keystore.GenerateIdentity(label)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, identity.MarshalPKCS1PrivateKeyPEM(), 0o600); err != nil {
		return nil, err
	}
	return identity, nil
}

func identityLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "adbctl"
	}
	return user + "@" + host
}
