package indexer

import (
	"context"

	"github.com/wx-shi/utxo-ledger/internal/chain"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/db"
	"go.uber.org/zap"
)

// Notifier is the source of best block events.
type Notifier interface {
	Notify(ch chan<- chain.BestBlockEvent)
}

// Indexer keeps the address index in step with the best block.
type Indexer struct {
	ctx       context.Context
	logger    *zap.Logger
	chain     Notifier
	db        *db.AddressIndex
	conf      *config.IndexerConfig
	blockChan chan chain.BestBlockEvent

	// Finish is closed once the store loop has returned.
	Finish chan struct{}
}

func NewIndexer(ctx context.Context, conf *config.IndexerConfig,
	logger *zap.Logger, chain Notifier, db *db.AddressIndex) *Indexer {
	return &Indexer{
		ctx:    ctx,
		conf:   conf,
		logger: logger,
		chain:  chain,
		db:     db,
		Finish: make(chan struct{}),
	}
}

// Sync subscribes to best block events and starts storing them.
func (i *Indexer) Sync() {
	i.blockChan = make(chan chain.BestBlockEvent, i.conf.BlockChanBuf)
	go i.store()
	i.chain.Notify(i.blockChan)
}

func (i *Indexer) store() {
	defer close(i.Finish)
	for {
		select {
		case <-i.ctx.Done():
			return
		case ev := <-i.blockChan:
			if err := i.db.Apply(ev.Height, ev.Hash.String(), ev.Added, ev.Removed); err != nil {
				i.logger.Error("Store::Error", zap.Int64("height", ev.Height), zap.Error(err))
			}
		}
	}
}
