// Package mempool keeps transactions submitted by clients that no accepted
// block has included yet.
package mempool

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/wx-shi/utxo-ledger/internal/model"
)

type entry struct {
	tx  *model.Transaction
	seq uint64
}

// Pool maps transaction ids to transactions and remembers submission order
// so block assembly is reproducible. Pool is not safe for concurrent use;
// the chain serializes access.
type Pool struct {
	txs map[chainhash.Hash]entry
	seq uint64
}

func New() *Pool {
	return &Pool{txs: make(map[chainhash.Hash]entry)}
}

// Add inserts tx without validating it. Resubmitting a known id keeps its
// original position.
func (p *Pool) Add(tx *model.Transaction) {
	if _, ok := p.txs[tx.ID]; ok {
		return
	}
	p.seq++
	p.txs[tx.ID] = entry{tx: tx, seq: p.seq}
}

func (p *Pool) Remove(id chainhash.Hash) {
	delete(p.txs, id)
}

func (p *Pool) Get(id chainhash.Hash) (*model.Transaction, bool) {
	e, ok := p.txs[id]
	return e.tx, ok
}

func (p *Pool) Contains(id chainhash.Hash) bool {
	_, ok := p.txs[id]
	return ok
}

func (p *Pool) Len() int {
	return len(p.txs)
}

// Transactions returns the pooled transactions in submission order.
func (p *Pool) Transactions() []*model.Transaction {
	entries := make([]entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	txs := make([]*model.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = e.tx
	}
	return txs
}

// Clone returns an independent pool with the same content and order.
// Transactions are immutable and shared.
func (p *Pool) Clone() *Pool {
	clone := &Pool{txs: make(map[chainhash.Hash]entry, len(p.txs)), seq: p.seq}
	for id, e := range p.txs {
		clone.txs[id] = e
	}
	return clone
}
