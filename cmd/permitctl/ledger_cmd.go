package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"permitledger/core/state"
)

type metadataView struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Network     string `json:"network"`
	Contract    string `json:"contract"`
}

func runInit(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("init", stderr)
	deployerFlag := fs.String("deployer", "", "account credited with the whole supply")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	deployer, err := parseAccount(*deployerFlag)
	if err != nil {
		return failf(stderr, "--deployer: %v", err)
	}
	cfg, err := env.Config()
	if err != nil {
		return fail(stderr, err)
	}
	supply, err := cfg.Token.Supply()
	if err != nil {
		return fail(stderr, err)
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	meta := state.TokenMetadata{
		Name:        cfg.Token.Name,
		Symbol:      cfg.Token.Symbol,
		Decimals:    cfg.Token.Decimals,
		TotalSupply: supply,
	}
	if err := contract.Init(deployer, meta); err != nil {
		if errors.Is(err, state.ErrAlreadyInitialized) {
			return failf(stderr, "ledger in %s is already initialised", cfg.DataDir)
		}
		return fail(stderr, err)
	}
	return runMetadata(env, nil, stdout, stderr)
}

func runMetadata(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("metadata", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	meta, err := contract.Metadata()
	if err != nil {
		return fail(stderr, err)
	}
	domain := contract.Domain()
	writeJSON(stdout, metadataView{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: meta.TotalSupply.Dec(),
		Network:     domain.NetworkID,
		Contract:    domain.ContractID,
	})
	return 0
}

func runBalance(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
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
	bal, err := contract.BalanceOf(account)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, bal.Dec())
	return 0
}

func runHolders(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("holders", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	holders, err := contract.Holders()
	if err != nil {
		return fail(stderr, err)
	}
	for _, h := range holders {
		fmt.Fprintf(stdout, "%s %s\n", h.Account, h.Balance.Dec())
	}
	return 0
}

func runAllowance(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("allowance", stderr)
	ownerFlag := fs.String("owner", "", "account granting the allowance")
	spenderFlag := fs.String("spender", "", "account allowed to spend")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	owner, err := parseAccount(*ownerFlag)
	if err != nil {
		return failf(stderr, "--owner: %v", err)
	}
	spender, err := parseAccount(*spenderFlag)
	if err != nil {
		return failf(stderr, "--spender: %v", err)
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	allowance, err := contract.Allowance(owner, spender)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, allowance.Dec())
	return 0
}

func runTransfer(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	keyPath := fs.String("key", "", "key file of the sending account (default: KeystorePath)")
	toFlag := fs.String("to", "", "recipient account")
	amountFlag := fs.String("amount", "", "amount in base units")
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
	if err := contract.Transfer(key.PublicKey().Address(), to, amount); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

func runApprove(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("approve", stderr)
	keyPath := fs.String("key", "", "key file of the owning account")
	spenderFlag := fs.String("spender", "", "account allowed to spend")
	amountFlag := fs.String("amount", "", "amount in base units")
	mode := fs.String("mode", "set", "set, increase or decrease the allowance")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	spender, err := parseAccount(*spenderFlag)
	if err != nil {
		return failf(stderr, "--spender: %v", err)
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
	owner := key.PublicKey().Address()
	switch strings.ToLower(*mode) {
	case "set":
		err = contract.Approve(owner, spender, amount)
	case "increase":
		err = contract.IncreaseAllowance(owner, spender, amount)
	case "decrease":
		err = contract.DecreaseAllowance(owner, spender, amount)
	default:
		return failf(stderr, "--mode must be set, increase or decrease")
	}
	if err != nil {
		return fail(stderr, err)
	}
	allowance, err := contract.Allowance(owner, spender)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, allowance.Dec())
	return 0
}

func runTransferFrom(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer-from", stderr)
	keyPath := fs.String("key", "", "key file of the spending account")
	ownerFlag := fs.String("owner", "", "account whose allowance is spent")
	toFlag := fs.String("to", "", "recipient account")
	amountFlag := fs.String("amount", "", "amount in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	owner, err := parseAccount(*ownerFlag)
	if err != nil {
		return failf(stderr, "--owner: %v", err)
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
	if err := contract.TransferFrom(key.PublicKey().Address(), owner, to, amount); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

func runEvents(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	from := fs.Uint64("from", 0, "first sequence number")
	limit := fs.Int("limit", 0, "maximum events to print (0 = all)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	contract, err := env.Contract()
	if err != nil {
		return fail(stderr, err)
	}
	evts, err := contract.Events(*from, *limit)
	if err != nil {
		return fail(stderr, err)
	}
	for _, evt := range evts {
		fmt.Fprintf(stdout, "%d %s", evt.Seq, evt.Type)
		for _, k := range evt.SortedKeys() {
			fmt.Fprintf(stdout, " %s=%s", k, evt.Attributes[k])
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
