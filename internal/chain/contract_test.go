package chain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/crypto"
	"github.com/vmarket/vmarket/internal/domain"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	otherAddr    = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	userAddr     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// fakeBackend is an in-memory node. View calls are answered by views keyed
// on method name; sent transactions get a receipt built by onSend.
type fakeBackend struct {
	abi     abi.ABI
	chainID *big.Int
	baseFee *big.Int
	tip     *big.Int
	gas     uint64

	mu            sync.Mutex
	views         map[string]func(args []any) []any
	viewCalls     map[string]int
	onSend        func(method string, args []any) (status uint64, logs []*types.Log)
	sent          []*types.Transaction
	receipts      map[common.Hash]*types.Receipt
	receiptMisses int
	nonce         uint64
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	parsed, err := LoadABI("")
	require.NoError(t, err)
	return &fakeBackend{
		abi:       parsed,
		chainID:   big.NewInt(11155111),
		baseFee:   big.NewInt(10),
		tip:       big.NewInt(2),
		gas:       100_000,
		views:     map[string]func([]any) []any{},
		viewCalls: map[string]int{},
		receipts:  map[common.Hash]*types.Receipt{},
		nonce:     7,
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.viewCalls[method.Name]++
	h := f.views[method.Name]
	f.mu.Unlock()
	if h == nil {
		return nil, ethereum.NotFound
	}
	return method.Outputs.Pack(h(args)...)
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tip, nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	method, err := f.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}
	status, logs := types.ReceiptStatusSuccessful, []*types.Log(nil)
	if f.onSend != nil {
		status, logs = f.onSend(method.Name, args)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	f.receipts[tx.Hash()] = &types.Receipt{Status: status, TxHash: tx.Hash(), Logs: logs}
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) marketCreatedLog(t *testing.T, addr common.Address, id int64, end int64) *types.Log {
	t.Helper()
	ev := f.abi.Events[eventMarketCreated]
	data, err := ev.Inputs.NonIndexed().Pack("q", []string{"a", "b"}, big.NewInt(end))
	require.NoError(t, err)
	return &types.Log{
		Address: addr,
		Topics:  []common.Hash{ev.ID, common.BigToHash(big.NewInt(id))},
		Data:    data,
	}
}

func newTestContract(t *testing.T, fb *fakeBackend) (*Contract, *crypto.Signer) {
	t.Helper()
	signer, err := crypto.NewSigner(testKey)
	require.NoError(t, err)
	sender, err := NewSender(context.Background(), fb, signer, TxOptions{
		ReceiptTimeout: time.Second,
		PollInterval:   time.Millisecond,
		GasMultiplier:  1.5,
	})
	require.NoError(t, err)
	return NewContract("vesta", contractAddr, fb.abi, fb, sender), signer
}

func TestCreateMarket_ParsesEventFromContract(t *testing.T) {
	fb := newFakeBackend(t)
	fb.receiptMisses = 2
	fb.onSend = func(method string, args []any) (uint64, []*types.Log) {
		assert.Equal(t, "createMarket", method)
		assert.Equal(t, "Bulls vs Lakers?", args[0])
		assert.Equal(t, []string{"Bulls", "Lakers"}, args[1])
		assert.Equal(t, big.NewInt(600), args[2])
		return types.ReceiptStatusSuccessful, []*types.Log{
			fb.marketCreatedLog(t, otherAddr, 99, 1),
			fb.marketCreatedLog(t, contractAddr, 42, 1700000600),
		}
	}
	c, signer := newTestContract(t, fb)

	got, err := c.CreateMarket(context.Background(), "Bulls vs Lakers?", []string{"Bulls", "Lakers"}, 600)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.MarketID)
	assert.EqualValues(t, 1700000600, got.EndTime)

	require.Len(t, fb.sent, 1)
	tx := fb.sent[0]
	assert.Equal(t, got.TxHash, tx.Hash().Hex())
	assert.EqualValues(t, 7, tx.Nonce())
	assert.Equal(t, big.NewInt(22), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(2), tx.GasTipCap())
	assert.EqualValues(t, 150_000, tx.Gas())
	assert.Equal(t, contractAddr, *tx.To())

	from, err := types.Sender(types.LatestSignerForChainID(fb.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
}

func TestCreateMarket_MissingEvent(t *testing.T) {
	fb := newFakeBackend(t)
	fb.onSend = func(string, []any) (uint64, []*types.Log) {
		return types.ReceiptStatusSuccessful, []*types.Log{fb.marketCreatedLog(t, otherAddr, 5, 1)}
	}
	c, _ := newTestContract(t, fb)

	got, err := c.CreateMarket(context.Background(), "q", []string{"a", "b"}, 60)
	assert.ErrorIs(t, err, domain.ErrMarketEventMissing)
	assert.NotEmpty(t, got.TxHash)
}

func TestResolveMarket_Reverted(t *testing.T) {
	fb := newFakeBackend(t)
	fb.onSend = func(method string, args []any) (uint64, []*types.Log) {
		assert.Equal(t, "resolveMarket", method)
		assert.Equal(t, big.NewInt(3), args[0])
		assert.Equal(t, big.NewInt(1), args[1])
		return types.ReceiptStatusFailed, nil
	}
	c, _ := newTestContract(t, fb)

	_, err := c.ResolveMarket(context.Background(), 3, 1)
	assert.ErrorIs(t, err, domain.ErrTxReverted)
}

func TestSequentialNonces(t *testing.T) {
	fb := newFakeBackend(t)
	c, _ := newTestContract(t, fb)

	_, err := c.ClaimWinnings(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.ClaimWinnings(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, fb.sent, 2)
	assert.EqualValues(t, 7, fb.sent[0].Nonce())
	assert.EqualValues(t, 8, fb.sent[1].Nonce())
}

func TestGetMarketInfo(t *testing.T) {
	fb := newFakeBackend(t)
	fb.views["getMarketInfo"] = func(args []any) []any {
		assert.Equal(t, big.NewInt(12), args[0])
		return []any{"Who wins?", []string{"A", "B", "Draw"}, big.NewInt(1700000000), big.NewInt(2),
			[]*big.Int{big.NewInt(5), big.NewInt(6), big.NewInt(7)}, true}
	}
	c, _ := newTestContract(t, fb)

	info, err := c.GetMarketInfo(context.Background(), 12)
	require.NoError(t, err)
	assert.EqualValues(t, 12, info.MarketID)
	assert.Equal(t, "Who wins?", info.Question)
	assert.Equal(t, []string{"A", "B", "Draw"}, info.Options)
	assert.EqualValues(t, 1700000000, info.EndTime)
	assert.EqualValues(t, 2, info.Outcome)
	assert.True(t, info.Resolved)
	require.Len(t, info.TotalShares, 3)
	assert.Equal(t, big.NewInt(7), info.TotalShares[2])
}

func TestGetSharesBalance(t *testing.T) {
	fb := newFakeBackend(t)
	fb.views["getSharesBalance"] = func(args []any) []any {
		assert.Equal(t, common.HexToAddress(userAddr), args[1])
		return []any{[]*big.Int{big.NewInt(1), big.NewInt(4)}}
	}
	c, _ := newTestContract(t, fb)

	shares, err := c.GetSharesBalance(context.Background(), 1, userAddr)
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(4)}, shares)

	_, err = c.GetSharesBalance(context.Background(), 1, "nope")
	assert.Error(t, err)
}

func TestHasRole_CachesRoleHash(t *testing.T) {
	fb := newFakeBackend(t)
	creatorHash := [32]byte{1, 2, 3}
	fb.views["CREATOR_ROLE"] = func([]any) []any { return []any{creatorHash} }
	fb.views["hasRole"] = func(args []any) []any {
		return []any{args[0] == creatorHash && args[1] == common.HexToAddress(userAddr)}
	}
	c, _ := newTestContract(t, fb)

	for i := 0; i < 2; i++ {
		ok, err := c.HasRole(context.Background(), domain.RoleCreator, userAddr)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, fb.viewCalls["CREATOR_ROLE"])
	assert.Equal(t, 2, fb.viewCalls["hasRole"])

	// RESOLVER_ROLE has no view registered, so the read fails.
	_, err := c.HasRole(context.Background(), domain.RoleResolver, userAddr)
	assert.Error(t, err)
}

func TestGrantRole(t *testing.T) {
	fb := newFakeBackend(t)
	adminHash := [32]byte{}
	fb.views["DEFAULT_ADMIN_ROLE"] = func([]any) []any { return []any{adminHash} }
	fb.onSend = func(method string, args []any) (uint64, []*types.Log) {
		assert.Equal(t, "grantRole", method)
		assert.Equal(t, common.HexToAddress(userAddr), args[1])
		return types.ReceiptStatusSuccessful, nil
	}
	c, _ := newTestContract(t, fb)

	hash, err := c.GrantRole(context.Background(), domain.RoleAdmin, userAddr)
	require.NoError(t, err)
	assert.Equal(t, fb.sent[0].Hash().Hex(), hash)
}

func TestReadOnlyContract(t *testing.T) {
	fb := newFakeBackend(t)
	c := NewContract("usdc", contractAddr, fb.abi, fb, nil)

	_, err := c.ResolveMarket(context.Background(), 1, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, fb.sent)
}

func TestLoadABI_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abi.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"type":"function","name":"createMarket","inputs":[],"outputs":[]}]`), 0o600))
	_, err := LoadABI(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(marketABIJSON), 0o600))
	_, err = LoadABI(path)
	assert.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	fb := newFakeBackend(t)
	r := NewRegistry(NewContract("vesta", contractAddr, fb.abi, fb, nil), NewContract("usdc", otherAddr, fb.abi, fb, nil))
	assert.Equal(t, []domain.Room{"usdc", "vesta"}, r.Rooms())

	c, err := r.Contract("usdc")
	require.NoError(t, err)
	assert.Equal(t, otherAddr.Hex(), c.Address())

	_, err = r.Contract("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}
