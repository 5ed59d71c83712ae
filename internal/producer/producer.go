// Package producer assembles blocks on top of the best block out of the
// pending pool and submits them to the chain.
package producer

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/ledger"
	"github.com/wx-shi/utxo-ledger/internal/mempool"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/txbuilder"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
	"github.com/wx-shi/utxo-ledger/pkg"
	"go.uber.org/zap"
)

const (
	PolicyMaxFee = "maxfee"
	PolicyGreedy = "greedy"
)

// Chain is the part of the block tree the producer builds on.
type Chain interface {
	Snapshot() (*model.Block, int64, *utxo.Set)
	GetPendingPool() *mempool.Pool
	ProcessBlock(block *model.Block) error
}

type Producer struct {
	conf      *config.ProducerConfig
	chain     Chain
	validator *ledger.Validator
	logger    *zap.Logger
	address   []byte
	reward    decimal.Decimal
}

func NewProducer(conf *config.ProducerConfig, chain Chain, validator *ledger.Validator,
	logger *zap.Logger) (*Producer, error) {
	address, err := hex.DecodeString(conf.Address)
	if err != nil || len(address) == 0 {
		return nil, errors.Errorf("invalid producer address:%q", conf.Address)
	}
	reward, err := decimal.NewFromString(conf.Reward)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid producer reward:%q", conf.Reward)
	}
	if reward.IsNegative() {
		return nil, errors.Errorf("negative producer reward:%s", conf.Reward)
	}
	switch conf.Policy {
	case PolicyMaxFee, PolicyGreedy:
	default:
		return nil, errors.Errorf("unknown producer policy:%q", conf.Policy)
	}

	return &Producer{
		conf:      conf,
		chain:     chain,
		validator: validator,
		logger:    logger,
		address:   address,
		reward:    reward,
	}, nil
}

// Assemble builds a block extending the current best block. It returns the
// block, its height and the fees its coinbase collects.
func (p *Producer) Assemble() (*model.Block, int64, decimal.Decimal) {
	best, height, set := p.chain.Snapshot()
	pending := p.chain.GetPendingPool().Transactions()

	var (
		accepted []*model.Transaction
		newSet   *utxo.Set
	)
	if p.conf.Policy == PolicyGreedy {
		accepted, newSet = p.validator.Select(pending, set)
	} else {
		accepted, newSet = p.validator.SelectMaxFee(pending, set)
	}
	fees := set.TotalValue().Sub(newSet.TotalValue())

	cb := txbuilder.Coinbase(uint64(height+1), p.reward.Add(fees), p.address)
	return txbuilder.Block(&best.ID, cb, accepted...), height + 1, fees
}

// Produce assembles a block and submits it to the chain.
func (p *Producer) Produce() (*model.ProduceReply, error) {
	block, height, fees := p.Assemble()
	if err := p.chain.ProcessBlock(block); err != nil {
		return nil, errors.Wrapf(err, "produce block at height %d", height)
	}
	p.logger.Info("Produce::Info",
		zap.String("hash", block.ID.String()),
		zap.Int64("height", height),
		zap.Int("tx_len", len(block.Transactions)),
		zap.String("fees", fees.String()))

	return &model.ProduceReply{
		Hash:   block.ID.String(),
		Height: height,
		TxLen:  len(block.Transactions),
		Fees:   pkg.FormatAmount(fees),
	}, nil
}

// Run produces a block every interval until ctx is done.
func (p *Producer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Produce(); err != nil {
				p.logger.Error("Produce::Error", zap.Error(err))
			}
		}
	}
}
