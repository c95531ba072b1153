package config

import (
	"fmt"
	"strings"
)

var knownBackends = map[string]struct{}{
	"memory":  {},
	"leveldb": {},
	"bolt":    {},
}

// Validate rejects configurations the ledger cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		return fmt.Errorf("NetworkName must not be empty")
	}
	if strings.ContainsRune(c.NetworkName, ':') {
		return fmt.Errorf("NetworkName must not contain ':'")
	}
	if strings.TrimSpace(c.ContractID) == "" {
		return fmt.Errorf("ContractID must not be empty")
	}
	if strings.ContainsRune(c.ContractID, ':') {
		return fmt.Errorf("ContractID must not contain ':'")
	}
	if _, ok := knownBackends[strings.ToLower(c.Backend)]; !ok {
		return fmt.Errorf("unknown Backend %q", c.Backend)
	}
	if strings.TrimSpace(c.Token.Name) == "" || strings.TrimSpace(c.Token.Symbol) == "" {
		return fmt.Errorf("token: Name and Symbol are required")
	}
	if _, err := c.Token.Supply(); err != nil {
		return fmt.Errorf("token: TotalSupply: %w", err)
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
