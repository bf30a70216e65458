package domain

import (
	"context"
	"math/big"
)

// MarketContract is the on-chain prediction market for one room. Addresses
// are 0x-prefixed hex strings.
type MarketContract interface {
	Address() string
	CreateMarket(ctx context.Context, question string, options []string, duration int64) (CreatedMarket, error)
	ResolveMarket(ctx context.Context, marketID int64, outcome int) (txHash string, err error)
	GetMarketInfo(ctx context.Context, marketID int64) (MarketInfo, error)
	GetSharesBalance(ctx context.Context, marketID int64, user string) ([]*big.Int, error)
	ClaimWinnings(ctx context.Context, marketID int64) (txHash string, err error)
	HasRole(ctx context.Context, role Role, account string) (bool, error)
	GrantRole(ctx context.Context, role Role, account string) (txHash string, err error)
	RevokeRole(ctx context.Context, role Role, account string) (txHash string, err error)
}

// ContractRegistry resolves the contract for a room.
type ContractRegistry interface {
	Contract(room Room) (MarketContract, error)
	Rooms() []Room
}
