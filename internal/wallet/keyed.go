package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"swapPilot/internal/model"
	"swapPilot/internal/swap"
)

// Backend is the RPC surface needed to build and broadcast a transaction.
// *chain.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ConfirmFunc is asked before every signature. Returning false declines.
type ConfirmFunc func(ctx context.Context, req model.TxRequest) (bool, error)

// KeyedWallet signs EIP-1559 transactions with a local private key.
type KeyedWallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	confirm ConfirmFunc
	logger  *zap.Logger

	// serialises nonce lookup and broadcast
	mu sync.Mutex
}

// NewKeyedWallet builds a wallet for key on chainID. A nil confirm signs
// without asking.
func NewKeyedWallet(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, confirm ConfirmFunc, logger *zap.Logger) (*KeyedWallet, error) {
	if backend == nil {
		return nil, errors.New("wallet backend is nil")
	}
	if key == nil {
		return nil, errors.New("private key is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyedWallet{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
		confirm: confirm,
		logger:  logger,
	}, nil
}

func (w *KeyedWallet) Address() common.Address { return w.address }

func (w *KeyedWallet) ChainID() *big.Int { return new(big.Int).Set(w.chainID) }

// SignAndSend asks for confirmation, fills nonce, gas and fee caps from the
// node, signs and broadcasts req.
func (w *KeyedWallet) SignAndSend(ctx context.Context, req model.TxRequest) (common.Hash, error) {
	if w.confirm != nil {
		ok, err := w.confirm(ctx, req)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", swap.ErrRejectedBySigner, err)
		}
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: %s declined", swap.ErrRejectedBySigner, req.Kind)
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &to, Value: value, Data: req.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	tip, maxFee, err := w.feeCaps(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	w.logger.Info("transaction sent",
		zap.String("kind", string(req.Kind)),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return signed.Hash(), nil
}

// feeCaps returns the node's suggested tip and maxFee = 2*baseFee + tip.
func (w *KeyedWallet) feeCaps(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	header, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	return tip, maxFee.Add(maxFee, tip), nil
}

// ParsePrivateKey decodes a hex private key with or without 0x.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// LoadPrivateKey resolves the key from an inline value, then a file, then
// prompt. The first non-empty source wins.
func LoadPrivateKey(inline, file string, prompt func() ([]byte, error)) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(inline) != "" {
		return ParsePrivateKey(inline)
	}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return ParsePrivateKey(string(raw))
	}
	if prompt == nil {
		return nil, errors.New("no private key configured")
	}
	raw, err := prompt()
	if err != nil {
		return nil, err
	}
	defer zeroBytes(raw)
	return ParsePrivateKey(string(raw))
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
