package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapPilot/internal/model"
)

// ReceiptBackend fetches mined receipts. *chain.Client satisfies it.
type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ReceiptPoller waits for receipts by polling eth_getTransactionReceipt.
type ReceiptPoller struct {
	backend    ReceiptBackend
	interval   time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewReceiptPoller builds a poller. Transport errors are retried maxRetries
// times with exponential backoff before the poller logs and keeps waiting.
func NewReceiptPoller(backend ReceiptBackend, interval time.Duration, maxRetries int, backoff time.Duration, logger *zap.Logger) *ReceiptPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptPoller{
		backend:    backend,
		interval:   interval,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// AwaitConfirmation blocks until hash is mined or ctx is done. There is no
// other timeout: an unmined transaction keeps the caller waiting.
func (p *ReceiptPoller) AwaitConfirmation(ctx context.Context, hash common.Hash) (model.TxStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := withRetry(ctx, p.maxRetries, p.backoff, func(ctx context.Context) error {
			r, err := p.backend.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			p.logger.Warn("receipt lookup failing", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		case receipt != nil:
			status := model.TxFailed
			if receipt.Status == types.ReceiptStatusSuccessful {
				status = model.TxConfirmed
			}
			p.logger.Info("receipt received",
				zap.String("tx_hash", hash.Hex()),
				zap.String("status", string(status)),
				zap.Uint64("gas_used", receipt.GasUsed),
			)
			return status, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
