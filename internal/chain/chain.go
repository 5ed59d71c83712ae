// Package chain keeps the bounded tree of competing blocks. Every retained
// block owns the UTXO snapshot of its branch; the highest block is the best
// one, and branches that fall behind the retention window are pruned.
package chain

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/ledger"
	"github.com/wx-shi/utxo-ledger/internal/mempool"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
	"go.uber.org/zap"
)

// blockNode is the snapshot registered for one accepted block. It is never
// mutated after creation.
type blockNode struct {
	block  *model.Block
	utxos  *utxo.Set
	height int64
}

// BestBlockEvent reports a new best block together with the UTXO changes
// since the last delivered event.
type BestBlockEvent struct {
	Hash    chainhash.Hash
	Height  int64
	Added   []utxo.Entry
	Removed []utxo.Entry
}

type BlockChain struct {
	mu        sync.RWMutex
	conf      *config.ChainConfig
	logger    *zap.Logger
	validator *ledger.Validator

	nodes   map[chainhash.Hash]*blockNode
	heights map[int64]*strset.Set // 高度 -> block ids
	tail    int64                 // lowest height that may still hold a bucket
	best    *blockNode
	pool    *mempool.Pool

	events   chan<- BestBlockEvent
	notified *blockNode
}

// NewBlockChain creates a tree holding only genesis. The genesis block is
// trusted: its transactions' outputs and its coinbase are added as is.
func NewBlockChain(conf *config.ChainConfig, genesis *model.Block,
	validator *ledger.Validator, logger *zap.Logger) (*BlockChain, error) {
	if !genesis.IsGenesis() {
		return nil, fmt.Errorf("genesis block %s declares parent %s", genesis.ID, genesis.PrevID)
	}

	set := utxo.New()
	for _, tx := range genesis.Transactions {
		set.AddOutputs(tx)
	}
	if genesis.Coinbase != nil {
		set.AddOutputs(genesis.Coinbase)
	}

	node := &blockNode{block: genesis, utxos: set, height: 0}
	bc := &BlockChain{
		conf:      conf,
		logger:    logger,
		validator: validator,
		nodes:     map[chainhash.Hash]*blockNode{genesis.ID: node},
		heights:   map[int64]*strset.Set{0: strset.New(genesis.ID.String())},
		best:      node,
		pool:      mempool.New(),
	}
	return bc, nil
}

// Notify registers the channel that receives best block events and queues
// the current best block on it.
func (bc *BlockChain) Notify(ch chan<- BestBlockEvent) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	bc.events = ch
	bc.notified = nil
	bc.notifyBest()
}

// AddBlock reports whether block was accepted.
func (bc *BlockChain) AddBlock(block *model.Block) bool {
	return bc.ProcessBlock(block) == nil
}

// ProcessBlock validates block against the snapshot of its parent and, on
// success, registers the resulting snapshot. Rejections are returned as
// ledger.RuleError and leave the tree untouched.
func (bc *BlockChain) ProcessBlock(block *model.Block) error {
	if block == nil {
		return errors.New("empty block")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.processBlock(block); err != nil {
		bc.logger.Debug("AddBlock::Reject", zap.String("hash", block.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (bc *BlockChain) processBlock(block *model.Block) error {
	if block.PrevID == nil {
		return ledger.NewRuleError(ledger.ErrNoParentRef, "block %s declares no parent", block.ID)
	}
	if _, ok := bc.nodes[block.ID]; ok {
		return ledger.NewRuleError(ledger.ErrDuplicateBlock, "block %s already accepted", block.ID)
	}
	parent, ok := bc.nodes[*block.PrevID]
	if !ok {
		return ledger.NewRuleError(ledger.ErrMissingParent, "block %s: parent %s is not retained", block.ID, block.PrevID)
	}
	if parent.height < bc.best.height-bc.conf.RetentionWindow {
		return ledger.NewRuleError(ledger.ErrFinality, "block %s: parent height %d is more than %d below best height %d",
			block.ID, parent.height, bc.conf.RetentionWindow, bc.best.height)
	}
	if err := checkCoinbase(block); err != nil {
		return err
	}

	accepted, set := bc.validator.Select(block.Transactions, parent.utxos)
	if len(accepted) != len(block.Transactions) {
		return ledger.NewRuleError(ledger.ErrBlockTxs, "block %s: only %d of %d transactions apply",
			block.ID, len(accepted), len(block.Transactions))
	}
	set.AddOutputs(block.Coinbase)

	node := &blockNode{block: block, utxos: set, height: parent.height + 1}
	bc.nodes[block.ID] = node
	if bucket, ok := bc.heights[node.height]; ok {
		bucket.Add(block.ID.String())
	} else {
		bc.heights[node.height] = strset.New(block.ID.String())
	}
	for _, tx := range block.Transactions {
		bc.pool.Remove(tx.ID)
	}

	bc.logger.Info("AddBlock::Info",
		zap.String("hash", block.ID.String()),
		zap.Int64("height", node.height),
		zap.Int("tx_len", len(block.Transactions)),
		zap.Int("utxo_len", set.Len()))

	switch {
	case node.height > bc.best.height:
		bc.best = node
		bc.prune()
		bc.notifyBest()
	case node.height == bc.best.height:
		// equal heights: the most recently accepted block wins
		bc.best = node
		bc.notifyBest()
	}
	return nil
}

func checkCoinbase(block *model.Block) error {
	cb := block.Coinbase
	if cb == nil {
		return ledger.NewRuleError(ledger.ErrBadCoinbase, "block %s has no coinbase", block.ID)
	}
	if !cb.IsCoinbase() {
		return ledger.NewRuleError(ledger.ErrBadCoinbase, "block %s: coinbase %s claims %d inputs",
			block.ID, cb.ID, len(cb.Inputs))
	}
	for i, out := range cb.Outputs {
		if out.Value.IsNegative() {
			return ledger.NewRuleError(ledger.ErrBadCoinbase, "block %s: coinbase output %d is negative", block.ID, i)
		}
	}
	return nil
}

// prune drops every bucket whose height is more than RetentionWindow +
// PruneMargin below the best height. Children of pruned blocks can never
// be admitted because their parent is no longer retained.
func (bc *BlockChain) prune() {
	cutoff := bc.best.height - bc.conf.RetentionWindow - bc.conf.PruneMargin
	pruned := 0
	for h := bc.tail; h < cutoff; h++ {
		bucket, ok := bc.heights[h]
		if !ok {
			continue
		}
		bucket.Each(func(id string) bool {
			hash, err := chainhash.NewHashFromStr(id)
			if err != nil {
				panic(fmt.Sprintf("chain: malformed id %q in height index", id))
			}
			delete(bc.nodes, *hash)
			pruned++
			return true
		})
		delete(bc.heights, h)
	}
	if cutoff > bc.tail {
		bc.tail = cutoff
	}
	if pruned > 0 {
		bc.logger.Info("Prune::Info", zap.Int64("below_height", cutoff), zap.Int("blocks", pruned),
			zap.Int("retained", len(bc.nodes)))
	}
}

// notifyBest delivers the diff between the last delivered snapshot and the
// best one. A full channel skips delivery; the next event then carries the
// accumulated diff.
func (bc *BlockChain) notifyBest() {
	if bc.events == nil {
		return
	}
	from := utxo.New()
	if bc.notified != nil {
		from = bc.notified.utxos
	}
	added, removed := from.Diff(bc.best.utxos)
	ev := BestBlockEvent{
		Hash:    bc.best.block.ID,
		Height:  bc.best.height,
		Added:   added,
		Removed: removed,
	}
	select {
	case bc.events <- ev:
		bc.notified = bc.best
	default:
		bc.logger.Warn("BestBlock::Skip", zap.Int64("height", bc.best.height))
	}
}

// SubmitTransaction adds tx to the pending pool without validating it.
func (bc *BlockChain) SubmitTransaction(tx *model.Transaction) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	bc.pool.Add(tx)
}

// GetBestUtxoSet returns a copy of the snapshot at the best block.
func (bc *BlockChain) GetBestUtxoSet() *utxo.Set {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.best.utxos.Clone()
}

// GetPendingPool returns a copy of the pending pool.
func (bc *BlockChain) GetPendingPool() *mempool.Pool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.pool.Clone()
}

// BestBlock returns the best block and its height.
func (bc *BlockChain) BestBlock() (*model.Block, int64) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.best.block, bc.best.height
}

// Snapshot returns the best block, its height and a copy of its UTXO set
// read under one lock.
func (bc *BlockChain) Snapshot() (*model.Block, int64, *utxo.Set) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.best.block, bc.best.height, bc.best.utxos.Clone()
}

// Block returns a retained block and its height.
func (bc *BlockChain) Block(id chainhash.Hash) (*model.Block, int64, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	node, ok := bc.nodes[id]
	if !ok {
		return nil, 0, false
	}
	return node.block, node.height, true
}

// Len returns the number of retained blocks.
func (bc *BlockChain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return len(bc.nodes)
}

// BestHeight returns the height of the best block.
func (bc *BlockChain) BestHeight() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.best.height
}

// Height returns the height of a retained block.
func (bc *BlockChain) Height(id chainhash.Hash) (int64, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	node, ok := bc.nodes[id]
	if !ok {
		return 0, false
	}
	return node.height, true
}
