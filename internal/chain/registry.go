package chain

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vmarket/vmarket/internal/crypto"
	"github.com/vmarket/vmarket/internal/domain"
)

// RoomConfig locates one room's contract.
type RoomConfig struct {
	Room            domain.Room
	RPCURL          string
	ContractAddress string
	ABIPath         string
}

// Registry maps rooms to their contracts.
type Registry struct {
	contracts map[domain.Room]*Contract
	clients   []*ethclient.Client
}

var _ domain.ContractRegistry = (*Registry)(nil)

// NewRegistry indexes already-built contracts by room.
func NewRegistry(contracts ...*Contract) *Registry {
	r := &Registry{contracts: make(map[domain.Room]*Contract, len(contracts))}
	for _, c := range contracts {
		r.contracts[c.Room()] = c
	}
	return r
}

// Dial connects every room. Rooms on the same RPC endpoint share one client
// and one Sender. signer may be nil for a read-only deployment.
func Dial(ctx context.Context, rooms []RoomConfig, signer *crypto.Signer, opts TxOptions) (*Registry, error) {
	r := NewRegistry()
	type conn struct {
		client *ethclient.Client
		sender *Sender
	}
	conns := make(map[string]conn)

	for _, rc := range rooms {
		if !common.IsHexAddress(rc.ContractAddress) {
			r.Close()
			return nil, fmt.Errorf("chain: room %s: invalid contract address %q", rc.Room, rc.ContractAddress)
		}
		parsed, err := LoadABI(rc.ABIPath)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("chain: room %s: %w", rc.Room, err)
		}

		cn, ok := conns[rc.RPCURL]
		if !ok {
			client, err := ethclient.DialContext(ctx, rc.RPCURL)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("chain: room %s: dial: %w", rc.Room, err)
			}
			r.clients = append(r.clients, client)
			var sender *Sender
			if signer != nil {
				sender, err = NewSender(ctx, client, signer, opts)
				if err != nil {
					r.Close()
					return nil, fmt.Errorf("chain: room %s: %w", rc.Room, err)
				}
			}
			cn = conn{client: client, sender: sender}
			conns[rc.RPCURL] = cn
		}

		r.contracts[rc.Room] = NewContract(rc.Room, common.HexToAddress(rc.ContractAddress), parsed, cn.client, cn.sender)
	}
	return r, nil
}

// Contract implements domain.ContractRegistry.
func (r *Registry) Contract(room domain.Room) (domain.MarketContract, error) {
	c, ok := r.contracts[room]
	if !ok {
		return nil, fmt.Errorf("chain: room %q: %w", room, domain.ErrUnknownRoom)
	}
	return c, nil
}

// Rooms returns every configured room in name order.
func (r *Registry) Rooms() []domain.Room {
	out := make([]domain.Room, 0, len(r.contracts))
	for room := range r.contracts {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close releases RPC connections.
func (r *Registry) Close() {
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = nil
}
