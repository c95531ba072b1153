package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Token captures the metadata written once when the ledger is initialised.
// TotalSupply is a base-10 string so supplies beyond 64 bits survive TOML.
type Token struct {
	Name        string `toml:"Name" yaml:"Name"`
	Symbol      string `toml:"Symbol" yaml:"Symbol"`
	Decimals    uint8  `toml:"Decimals" yaml:"Decimals"`
	TotalSupply string `toml:"TotalSupply" yaml:"TotalSupply"`
}

// DefaultToken returns the token used by freshly generated configs.
func DefaultToken() Token {
	return Token{
		Name:        "Permit Token",
		Symbol:      "PMT",
		Decimals:    9,
		TotalSupply: "1000000000000000000",
	}
}

// Supply parses TotalSupply into a 256-bit amount.
func (t Token) Supply() (*uint256.Int, error) {
	return parseUintAmount(t.TotalSupply)
}

func parseUintAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

// Telemetry enables OTLP/HTTP trace export when Endpoint is set.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"Endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"Insecure"`
	Headers     string  `toml:"Headers" yaml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"SampleRatio"`
}

// Enabled reports whether traces should be exported.
func (t Telemetry) Enabled() bool { return strings.TrimSpace(t.Endpoint) != "" }
