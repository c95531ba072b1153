package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"permitledger/native/permit"
)

func runNonce(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nonce", stderr)
	accountFlag := fs.String("account", "", "account or public key")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	account, err := parseAccount(*accountFlag)
	if err != nil {
		return failf(stderr, "--account: %v", err)
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	nonce, err := contract.NonceOf(account)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, nonce)
	return 0
}

// runMessage prints the exact bytes a wallet must sign. It needs only the
// config, not the ledger.
func runMessage(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("message", stderr)
	toFlag := fs.String("to", "", "recipient account")
	amountFlag := fs.String("amount", "", "amount in base units")
	nonce := fs.Uint64("nonce", 0, "signer nonce")
	deadline := fs.Uint64("deadline", 0, "unix deadline in seconds")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	to, err := parseAccount(*toFlag)
	if err != nil {
		return failf(stderr, "--to: %v", err)
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return failf(stderr, "--amount: %v", err)
	}
	cfg, err := env.Config()
	if err != nil {
		return fail(stderr, err)
	}
	domain := permit.Domain{NetworkID: cfg.NetworkName, ContractID: cfg.ContractID}
	_, _ = stdout.Write(domain.Message(to, amount, *nonce, *deadline))
	fmt.Fprintln(stdout)
	return 0
}

func runSign(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sign", stderr)
	keyPath := fs.String("key", "", "key file of the paying account")
	toFlag := fs.String("to", "", "recipient account")
	amountFlag := fs.String("amount", "", "amount in base units")
	nonceFlag := fs.Int64("nonce", -1, "signer nonce (default: current ledger nonce)")
	deadline := fs.Uint64("deadline", 0, "unix deadline in seconds")
	ttl := fs.Duration("ttl", 10*time.Minute, "validity window when --deadline is not set")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	to, err := parseAccount(*toFlag)
	if err != nil {
		return failf(stderr, "--to: %v", err)
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return failf(stderr, "--amount: %v", err)
	}
	key, err := env.signingKey(*keyPath)
	if err != nil {
		return fail(stderr, err)
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}

	nonce := uint64(*nonceFlag)
	if *nonceFlag < 0 {
		if nonce, err = contract.NonceOf(key.PublicKey().Address()); err != nil {
			return fail(stderr, err)
		}
	}
	expiry := *deadline
	if expiry == 0 {
		if *ttl <= 0 {
			return failf(stderr, "--ttl must be positive")
		}
		expiry = clock() + uint64(ttl.Seconds())
	}

	auth, err := permit.Sign(key, contract.Domain(), to, amount, nonce, expiry)
	if err != nil {
		return fail(stderr, err)
	}
	writeJSON(stdout, auth)
	return 0
}

func runClaim(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("claim", stderr)
	authPath := fs.String("auth", "", "authorization JSON file, or - for stdin")
	dryRun := fs.Bool("dry-run", false, "verify without settling")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	auth, err := readAuthorization(*authPath)
	if err != nil {
		return fail(stderr, err)
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	if *dryRun {
		if err := contract.VerifyPayment(auth); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, "valid")
		return 0
	}
	if err := contract.ClaimPayment(auth); err != nil {
		return fail(stderr, err)
	}
	nonce, err := contract.NonceOf(auth.Account())
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "settled %s from %s to %s (next nonce %d)\n",
		auth.Amount.Dec(), auth.Account(), auth.Recipient, nonce)
	return 0
}

var stdin io.Reader = os.Stdin

func readAuthorization(path string) (*permit.Authorization, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--auth is required")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var auth permit.Authorization
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("decode authorization: %w", err)
	}
	return &auth, nil
}
