// Package chain talks to the prediction market contract: read-only views,
// locally signed EIP-1559 transactions, and MarketCreated log parsing.
package chain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/market.json
var marketABIJSON string

const eventMarketCreated = "MarketCreated"

// LoadABI parses the ABI at path, or the embedded market ABI when path is
// empty.
func LoadABI(path string) (abi.ABI, error) {
	src := marketABIJSON
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("chain: read abi: %w", err)
		}
		src = string(data)
	}
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chain: parse abi: %w", err)
	}
	for _, m := range []string{"createMarket", "resolveMarket", "getMarketInfo", "hasRole"} {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("chain: abi is missing %s", m)
		}
	}
	if _, ok := parsed.Events[eventMarketCreated]; !ok {
		return abi.ABI{}, fmt.Errorf("chain: abi is missing event %s", eventMarketCreated)
	}
	return parsed, nil
}
