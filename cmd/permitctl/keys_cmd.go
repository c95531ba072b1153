package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"permitledger/crypto"
)

type keyInfo struct {
	Scheme    string `json:"scheme"`
	PublicKey string `json:"public_key"`
	Account   string `json:"account"`
	File      string `json:"file,omitempty"`
}

func describeKey(pub crypto.PublicKey, file string) keyInfo {
	return keyInfo{
		Scheme:    pub.Scheme().String(),
		PublicKey: pub.String(),
		Account:   pub.Address().String(),
		File:      file,
	}
}

func runKeygen(_ *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	schemeName := fs.String("scheme", "ed25519", "signature scheme: ed25519 or secp256k1")
	out := fs.String("out", "", "file to write the key to")
	force := fs.Bool("force", false, "overwrite an existing key file")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		return failf(stderr, "--out is required")
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return failf(stderr, "%s already exists; pass --force to overwrite", path)
	}
	scheme, err := crypto.ParseScheme(*schemeName)
	if err != nil {
		return fail(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey(scheme)
	if err != nil {
		return fail(stderr, err)
	}

	switch k := key.(type) {
	case *crypto.Secp256k1PrivateKey:
		pass, err := passphraseFor()()
		if err != nil {
			return fail(stderr, err)
		}
		if err := crypto.SaveToKeystore(path, k, pass); err != nil {
			return fail(stderr, err)
		}
	case *crypto.Ed25519PrivateKey:
		if err := crypto.SaveSeedFile(path, k); err != nil {
			return fail(stderr, err)
		}
	default:
		return failf(stderr, "unsupported key type %T", key)
	}
	writeJSON(stdout, describeKey(key.PublicKey(), path))
	return 0
}

func runAddress(_ *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	keyPath := fs.String("key", "", "key file (seed or keystore)")
	pubHex := fs.String("pubkey", "", "tagged public key (hex) or base58 Ed25519 key")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	switch {
	case *keyPath != "" && *pubHex != "":
		return failf(stderr, "pass either --key or --pubkey, not both")
	case *keyPath != "":
		key, err := loadKey(*keyPath)
		if err != nil {
			return fail(stderr, err)
		}
		writeJSON(stdout, describeKey(key.PublicKey(), *keyPath))
	case *pubHex != "":
		pub, err := crypto.ParsePublicKey(*pubHex)
		if err != nil {
			return fail(stderr, err)
		}
		writeJSON(stdout, describeKey(pub, ""))
	default:
		fmt.Fprintln(stderr, "Error: --key or --pubkey is required")
		return 1
	}
	return 0
}
