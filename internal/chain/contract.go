package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vmarket/vmarket/internal/crypto"
	"github.com/vmarket/vmarket/internal/domain"
)

// Contract is the market contract deployed for one room.
type Contract struct {
	room    domain.Room
	address common.Address
	abi     abi.ABI
	backend Backend
	sender  *Sender

	roleMu     sync.RWMutex
	roleHashes map[domain.Role][32]byte
}

var _ domain.MarketContract = (*Contract)(nil)

// NewContract binds the ABI to address. Reads go through backend; writes go
// through sender.
func NewContract(room domain.Room, address common.Address, parsed abi.ABI, backend Backend, sender *Sender) *Contract {
	return &Contract{
		room:       room,
		address:    address,
		abi:        parsed,
		backend:    backend,
		sender:     sender,
		roleHashes: make(map[domain.Role][32]byte),
	}
}

// Room returns the room the contract serves.
func (c *Contract) Room() domain.Room { return c.room }

// Address implements domain.MarketContract.
func (c *Contract) Address() string { return c.address.Hex() }

// CreateMarket submits createMarket and reads the new market id from the
// MarketCreated log emitted by this contract.
func (c *Contract) CreateMarket(ctx context.Context, question string, options []string, duration int64) (domain.CreatedMarket, error) {
	receipt, err := c.transact(ctx, "createMarket", question, options, big.NewInt(duration))
	if err != nil {
		return domain.CreatedMarket{}, err
	}
	created, err := c.parseMarketCreated(receipt)
	if err != nil {
		return domain.CreatedMarket{TxHash: receipt.TxHash.Hex()}, err
	}
	created.TxHash = receipt.TxHash.Hex()
	return created, nil
}

func (c *Contract) parseMarketCreated(receipt *types.Receipt) (domain.CreatedMarket, error) {
	ev := c.abi.Events[eventMarketCreated]
	for _, lg := range receipt.Logs {
		if lg.Address != c.address || len(lg.Topics) < 2 || lg.Topics[0] != ev.ID {
			continue
		}
		id := new(big.Int).SetBytes(lg.Topics[1].Bytes())
		out := domain.CreatedMarket{MarketID: id.Int64()}
		vals, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
		if err == nil && len(vals) == 3 {
			if end, ok := vals[2].(*big.Int); ok {
				out.EndTime = end.Int64()
			}
		}
		return out, nil
	}
	return domain.CreatedMarket{}, fmt.Errorf("chain: %s: tx %s: %w", c.room, receipt.TxHash.Hex(), domain.ErrMarketEventMissing)
}

// ResolveMarket submits resolveMarket(marketID, outcome).
func (c *Contract) ResolveMarket(ctx context.Context, marketID int64, outcome int) (string, error) {
	receipt, err := c.transact(ctx, "resolveMarket", big.NewInt(marketID), big.NewInt(int64(outcome)))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// ClaimWinnings submits claimWinnings for the sending account.
func (c *Contract) ClaimWinnings(ctx context.Context, marketID int64) (string, error) {
	receipt, err := c.transact(ctx, "claimWinnings", big.NewInt(marketID))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// GetMarketInfo reads the on-chain market.
func (c *Contract) GetMarketInfo(ctx context.Context, marketID int64) (domain.MarketInfo, error) {
	out, err := c.call(ctx, "getMarketInfo", big.NewInt(marketID))
	if err != nil {
		return domain.MarketInfo{}, err
	}
	if len(out) != 6 {
		return domain.MarketInfo{}, fmt.Errorf("chain: getMarketInfo: unexpected %d return values", len(out))
	}
	info := domain.MarketInfo{MarketID: marketID}
	var ok [6]bool
	info.Question, ok[0] = out[0].(string)
	info.Options, ok[1] = out[1].([]string)
	var end, outcome *big.Int
	end, ok[2] = out[2].(*big.Int)
	outcome, ok[3] = out[3].(*big.Int)
	info.TotalShares, ok[4] = out[4].([]*big.Int)
	info.Resolved, ok[5] = out[5].(bool)
	for i, v := range ok {
		if !v {
			return domain.MarketInfo{}, fmt.Errorf("chain: getMarketInfo: return value %d has type %T", i, out[i])
		}
	}
	info.EndTime = end.Int64()
	info.Outcome = outcome.Int64()
	return info, nil
}

// GetSharesBalance reads user's shares per option.
func (c *Contract) GetSharesBalance(ctx context.Context, marketID int64, user string) ([]*big.Int, error) {
	addr, err := crypto.ParseAddress(user)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, "getSharesBalance", big.NewInt(marketID), addr)
	if err != nil {
		return nil, err
	}
	shares, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getSharesBalance: return type %T", out[0])
	}
	return shares, nil
}

// RoleHash reads the bytes32 constant for role. Hashes never change for a
// deployed contract so they are cached after the first read.
func (c *Contract) RoleHash(ctx context.Context, role domain.Role) ([32]byte, error) {
	c.roleMu.RLock()
	h, ok := c.roleHashes[role]
	c.roleMu.RUnlock()
	if ok {
		return h, nil
	}

	out, err := c.call(ctx, role.Getter())
	if err != nil {
		return [32]byte{}, err
	}
	h, ok = out[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("chain: %s: return type %T", role.Getter(), out[0])
	}

	c.roleMu.Lock()
	c.roleHashes[role] = h
	c.roleMu.Unlock()
	return h, nil
}

// HasRole reports whether account holds role.
func (c *Contract) HasRole(ctx context.Context, role domain.Role, account string) (bool, error) {
	addr, err := crypto.ParseAddress(account)
	if err != nil {
		return false, err
	}
	h, err := c.RoleHash(ctx, role)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, "hasRole", h, addr)
	if err != nil {
		return false, err
	}
	has, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: hasRole: return type %T", out[0])
	}
	return has, nil
}

// GrantRole submits grantRole.
func (c *Contract) GrantRole(ctx context.Context, role domain.Role, account string) (string, error) {
	return c.roleTx(ctx, "grantRole", role, account)
}

// RevokeRole submits revokeRole.
func (c *Contract) RevokeRole(ctx context.Context, role domain.Role, account string) (string, error) {
	return c.roleTx(ctx, "revokeRole", role, account)
}

func (c *Contract) roleTx(ctx context.Context, method string, role domain.Role, account string) (string, error) {
	addr, err := crypto.ParseAddress(account)
	if err != nil {
		return "", err
	}
	h, err := c.RoleHash(ctx, role)
	if err != nil {
		return "", err
	}
	receipt, err := c.transact(ctx, method, h, addr)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: call %s: %w", c.room, method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: unpack %s: %w", c.room, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s: %s returned nothing", c.room, method)
	}
	return out, nil
}

func (c *Contract) transact(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	if c.sender == nil {
		return nil, fmt.Errorf("chain: %s: %s: read-only contract: %w", c.room, method, domain.ErrUnauthorized)
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	receipt, err := c.sender.Send(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %s: %w", c.room, method, err)
	}
	return receipt, nil
}
