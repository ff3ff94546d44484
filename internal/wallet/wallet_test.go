package wallet

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"swapPilot/internal/model"
	"swapPilot/internal/swap"
)

type fakeBackend struct {
	mu      sync.Mutex
	nonce   uint64
	gas     uint64
	tip     *big.Int
	baseFee *big.Int
	sent    []*types.Transaction
	sendErr error
	lastMsg ethereum.CallMsg
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.lastMsg = msg
	return b.gas, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return b.tip, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func TestKeyedWalletSignsDynamicFeeTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{nonce: 7, gas: 120_000, tip: big.NewInt(2), baseFee: big.NewInt(10)}
	chainID := big.NewInt(11155111)

	w, err := NewKeyedWallet(backend, key, chainID, nil, nil)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), w.Address())

	router := common.HexToAddress("0xE6DC9225E4C76f9c0b002Ab2782F687e35cc7666")
	hash, err := w.SignAndSend(context.Background(), model.TxRequest{
		Kind:  model.TxSwap,
		To:    router,
		Data:  []byte{0x04, 0xe4, 0x5a, 0xaf},
		Value: big.NewInt(1000),
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	require.Equal(t, hash, tx.Hash())
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(120_000), tx.Gas())
	require.Equal(t, int64(2), tx.GasTipCap().Int64())
	require.Equal(t, int64(22), tx.GasFeeCap().Int64())
	require.Equal(t, router, *tx.To())
	require.Equal(t, int64(1000), tx.Value().Int64())
	require.Equal(t, w.Address(), backend.lastMsg.From)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender)
}

func TestKeyedWalletDeclined(t *testing.T) {
	key, _ := crypto.GenerateKey()
	backend := &fakeBackend{gas: 50_000, tip: big.NewInt(1), baseFee: big.NewInt(1)}
	decline := func(context.Context, model.TxRequest) (bool, error) { return false, nil }

	w, err := NewKeyedWallet(backend, key, big.NewInt(1), decline, nil)
	require.NoError(t, err)

	_, err = w.SignAndSend(context.Background(), model.TxRequest{Kind: model.TxApprove, To: common.HexToAddress("0x01")})
	require.ErrorIs(t, err, swap.ErrRejectedBySigner)
	require.Empty(t, backend.sent)
}

func TestKeyedWalletSendError(t *testing.T) {
	key, _ := crypto.GenerateKey()
	backend := &fakeBackend{gas: 50_000, tip: big.NewInt(1), baseFee: big.NewInt(1), sendErr: errors.New("nonce too low")}
	w, err := NewKeyedWallet(backend, key, big.NewInt(1), nil, nil)
	require.NoError(t, err)

	_, err = w.SignAndSend(context.Background(), model.TxRequest{Kind: model.TxApprove, To: common.HexToAddress("0x01")})
	require.Error(t, err)
	require.NotErrorIs(t, err, swap.ErrRejectedBySigner)
	require.Contains(t, err.Error(), "nonce too low")
}

func TestTerminalConfirm(t *testing.T) {
	var out strings.Builder
	confirm := TerminalConfirm(strings.NewReader("y\nno\n"), &out, func(req model.TxRequest) string {
		return "swap of 1 KAJU"
	})

	ok, err := confirm(context.Background(), model.TxRequest{Kind: model.TxSwap})
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "Sign swap of 1 KAJU? [y/N]")

	ok, err = confirm(context.Background(), model.TxRequest{Kind: model.TxSwap})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = confirm(context.Background(), model.TxRequest{Kind: model.TxSwap})
	require.NoError(t, err)
	require.False(t, ok, "EOF declines")
}

func TestLoadPrivateKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))
	want := crypto.PubkeyToAddress(key.PublicKey)

	got, err := LoadPrivateKey("0x"+hexKey, "", nil)
	require.NoError(t, err)
	require.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))

	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte(hexKey+"\n"), 0o600))
	got, err = LoadPrivateKey("", path, nil)
	require.NoError(t, err)
	require.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))

	got, err = LoadPrivateKey("", "", func() ([]byte, error) { return []byte(hexKey), nil })
	require.NoError(t, err)
	require.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))

	_, err = LoadPrivateKey("", "", nil)
	require.Error(t, err)
	_, err = LoadPrivateKey("zz", "", nil)
	require.Error(t, err)
}

type fakeReceiptBackend struct {
	mu    sync.Mutex
	calls int
	steps []func() (*types.Receipt, error)
}

func (b *fakeReceiptBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.calls
	b.calls++
	if i >= len(b.steps) {
		i = len(b.steps) - 1
	}
	return b.steps[i]()
}

func notFound() (*types.Receipt, error) { return nil, ethereum.NotFound }

func TestReceiptPollerConfirmed(t *testing.T) {
	backend := &fakeReceiptBackend{steps: []func() (*types.Receipt, error){
		notFound,
		func() (*types.Receipt, error) { return nil, errors.New("connection reset") },
		notFound,
		func() (*types.Receipt, error) { return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil },
	}}
	p := NewReceiptPoller(backend, time.Millisecond, 3, time.Millisecond, nil)

	status, err := p.AwaitConfirmation(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, status)
	require.Equal(t, 4, backend.calls)
}

func TestReceiptPollerReverted(t *testing.T) {
	backend := &fakeReceiptBackend{steps: []func() (*types.Receipt, error){
		func() (*types.Receipt, error) { return &types.Receipt{Status: types.ReceiptStatusFailed}, nil },
	}}
	p := NewReceiptPoller(backend, time.Millisecond, 0, time.Millisecond, nil)

	status, err := p.AwaitConfirmation(context.Background(), common.HexToHash("0x02"))
	require.NoError(t, err)
	require.Equal(t, model.TxFailed, status)
}

func TestReceiptPollerWaitsForContext(t *testing.T) {
	backend := &fakeReceiptBackend{steps: []func() (*types.Receipt, error){notFound}}
	p := NewReceiptPoller(backend, time.Millisecond, 0, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.AwaitConfirmation(ctx, common.HexToHash("0x03"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, backend.calls, 1)
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)

	attempts = 0
	err = withRetry(context.Background(), 1, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.EqualError(t, err, "permanent")
	require.Equal(t, 2, attempts)
}
