package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const defaultConfigPath = "permit.toml"

type commandFunc func(env *cliEnv, args []string, stdout, stderr io.Writer) int

var commands = map[string]commandFunc{
	"init":          runInit,
	"keygen":        runKeygen,
	"address":       runAddress,
	"metadata":      runMetadata,
	"balance":       runBalance,
	"holders":       runHolders,
	"allowance":     runAllowance,
	"transfer":      runTransfer,
	"approve":       runApprove,
	"transfer-from": runTransferFrom,
	"nonce":         runNonce,
	"message":       runMessage,
	"sign":          runSign,
	"claim":         runClaim,
	"events":        runEvents,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("permitctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	configPath := fs.String("config", envOr("PERMIT_CONFIG", defaultConfigPath), "path to the ledger config (TOML or YAML)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	name := rest[0]
	if name == "help" {
		fmt.Fprintln(stdout, usage())
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", name)
		fmt.Fprintln(stderr, usage())
		return 1
	}
	env := &cliEnv{configPath: *configPath, stderr: stderr}
	defer env.Close()
	return cmd(env, rest[1:], stdout, stderr)
}

func usage() string {
	return strings.TrimSpace(`
Usage: permitctl [--config permit.toml] <command> [flags]

Ledger:
  init           --deployer <account>           initialise the token and credit the supply
  metadata                                      show token name, symbol, decimals and supply
  balance        --account <account>
  holders                                       list every account with a non-zero balance
  allowance      --owner <account> --spender <account>
  transfer       --key <file> --to <account> --amount <n>
  approve        --key <file> --spender <account> --amount <n> [--mode set|increase|decrease]
  transfer-from  --key <file> --owner <account> --to <account> --amount <n>
  events         [--from <seq>] [--limit <n>]

Permits:
  nonce          --account <account>
  message        --to <account> --amount <n> --nonce <n> --deadline <unix>
  sign           --key <file> --to <account> --amount <n> [--nonce <n>] [--deadline <unix> | --ttl <dur>]
  claim          --auth <file|-> [--dry-run]

Keys:
  keygen         --scheme ed25519|secp256k1 --out <file>
  address        --key <file> | --pubkey <hex>

Secp256k1 keystores read their passphrase from PERMIT_KEYSTORE_PASS or prompt.`)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
