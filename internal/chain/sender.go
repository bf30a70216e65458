package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vmarket/vmarket/internal/crypto"
	"github.com/vmarket/vmarket/internal/domain"
)

// Backend is the subset of *ethclient.Client the contract client needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxOptions tunes transaction submission.
type TxOptions struct {
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	GasMultiplier  float64
}

func (o TxOptions) withDefaults() TxOptions {
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 2 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.GasMultiplier < 1 {
		o.GasMultiplier = 1.2
	}
	return o
}

// Sender signs and submits transactions for one account on one chain.
// Contracts sharing an account and RPC endpoint must share a Sender so
// nonces are assigned in order.
type Sender struct {
	backend Backend
	signer  *crypto.Signer
	chainID *big.Int
	opts    TxOptions

	mu sync.Mutex
}

// NewSender binds signer to backend. signer may be nil for a read-only
// deployment; transactions then fail with ErrUnauthorized.
func NewSender(ctx context.Context, backend Backend, signer *crypto.Signer, opts TxOptions) (*Sender, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	return &Sender{
		backend: backend,
		signer:  signer,
		chainID: chainID,
		opts:    opts.withDefaults(),
	}, nil
}

// ChainID returns the chain the sender is bound to.
func (s *Sender) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// From returns the sending account, or the zero address when read-only.
func (s *Sender) From() common.Address {
	if s.signer == nil {
		return common.Address{}
	}
	return s.signer.Address()
}

// Send submits a call to `to` with data and waits for a successful receipt.
func (s *Sender) Send(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	tx, err := s.submit(ctx, to, data)
	if err != nil {
		return nil, err
	}
	receipt, err := s.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("chain: tx %s: %w", tx.Hash().Hex(), domain.ErrTxReverted)
	}
	return receipt, nil
}

func (s *Sender) submit(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("chain: no signing key configured: %w", domain.ErrUnauthorized)
	}
	from := s.signer.Address()

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: pending nonce: %w", err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas tip: %w", err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("chain: estimate gas: %w", err)
	}
	gas = uint64(float64(gas) * s.opts.GasMultiplier)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := s.signer.SignTx(tx, s.chainID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send tx: %w", err)
	}
	return signed, nil
}

func (s *Sender) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("chain: receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
