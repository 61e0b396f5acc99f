// Package config holds the static deployment tables and environment helpers.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"paidchat/internal/chain"
	"paidchat/internal/domain"
)

// Chains maps chain id to its payment configuration.
type Chains map[int64]domain.Chain

// Lookup returns the chain with id, if configured.
func (c Chains) Lookup(id int64) (domain.Chain, bool) {
	ch, ok := c[id]
	return ch, ok
}

// IDs returns the configured chain ids in ascending order.
func (c Chains) IDs() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DefaultChains returns the deployment table of supported testnets.
func DefaultChains() Chains {
	const (
		shared   = "0x4E1caAfd8610B0157a77f20807bfEB27B6f5B0C6"
		base     = "0x18432A3527339bB8D9b850aEBC1C2754b0ADe096"
		taraxa   = "0xc4834def135e5c97504bb0cd3bcd3ffb5afac55d"
		zksync   = "0x2Ad88469d56fCDAAc8ef812Bd3D7635EA44A7231"
		decimals = 18
	)
	entries := []domain.Chain{
		{ID: 296, Name: "Hedera Testnet", Symbol: "HBAR", PaymentAddress: shared},
		{ID: 300, Name: "zkSync Sepolia", Symbol: "ETH", PaymentAddress: zksync},
		{ID: 545, Name: "Flow EVM Testnet", Symbol: "FLOW", PaymentAddress: shared},
		{ID: 842, Name: "Taraxa Testnet", Symbol: "TARA", PaymentAddress: taraxa},
		{ID: 1315, Name: "Story Aeneid", Symbol: "IP", PaymentAddress: shared},
		{ID: 2368, Name: "KiteAI Testnet", Symbol: "KITE", PaymentAddress: shared},
		{ID: 48899, Name: "Zircuit Testnet", Symbol: "ETH", PaymentAddress: shared},
		{ID: 84532, Name: "Base Sepolia", Symbol: "ETH", PaymentAddress: base},
	}
	out := make(Chains, len(entries))
	for _, e := range entries {
		e.Decimals = decimals
		e.Shape = domain.PaymentShapeTransfer
		e.PaymentAddress, _ = chain.ChecksumAddress(e.PaymentAddress)
		out[e.ID] = e
	}
	return out
}

type chainFile struct {
	Chains []chainEntry `yaml:"chains"`
}

type chainEntry struct {
	ID             int64  `yaml:"id"`
	Name           string `yaml:"name"`
	Symbol         string `yaml:"symbol"`
	Decimals       int32  `yaml:"decimals"`
	PaymentAddress string `yaml:"paymentAddress"`
	Shape          string `yaml:"shape"`
	Disabled       bool   `yaml:"disabled"`
}

// LoadChains returns DefaultChains overlaid with the YAML file at path.
// Entries replace defaults by id; disabled entries remove them.
// A missing file is not an error.
func LoadChains(path string) (Chains, error) {
	chains := DefaultChains()
	if path == "" {
		return chains, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return chains, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := chains.overlay(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return chains, nil
}

func (c Chains) overlay(data []byte) error {
	var f chainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for i, e := range f.Chains {
		if e.ID <= 0 {
			return fmt.Errorf("chains[%d]: id must be positive", i)
		}
		if e.Disabled {
			delete(c, e.ID)
			continue
		}
		ch, err := e.toDomain(c[e.ID])
		if err != nil {
			return fmt.Errorf("chains[%d] (%d): %w", i, e.ID, err)
		}
		c[e.ID] = ch
	}
	return nil
}

// toDomain fills unset fields from base.
func (e chainEntry) toDomain(base domain.Chain) (domain.Chain, error) {
	ch := base
	ch.ID = e.ID
	if e.Name != "" {
		ch.Name = e.Name
	}
	if e.Symbol != "" {
		ch.Symbol = strings.ToUpper(e.Symbol)
	}
	if e.Decimals != 0 {
		ch.Decimals = e.Decimals
	}
	if e.PaymentAddress != "" {
		ch.PaymentAddress = e.PaymentAddress
	}
	if e.Shape != "" {
		ch.Shape = domain.PaymentShape(strings.ToLower(e.Shape))
	}
	if ch.Decimals == 0 {
		ch.Decimals = 18
	}
	if ch.Shape == "" {
		ch.Shape = domain.PaymentShapeTransfer
	}

	if ch.Symbol == "" {
		return ch, fmt.Errorf("symbol is required")
	}
	if !ch.Shape.IsValid() {
		return ch, fmt.Errorf("unknown payment shape %q", ch.Shape)
	}
	addr, err := chain.ChecksumAddress(ch.PaymentAddress)
	if err != nil {
		return ch, fmt.Errorf("payment address: %w", err)
	}
	ch.PaymentAddress = addr
	return ch, nil
}
