// Package utxo holds the unspent output set of one ledger snapshot.
package utxo

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/model"
)

// Set maps outpoints to the outputs they identify. A Set is not safe for
// concurrent mutation; snapshots handed out by the chain are clones.
type Set struct {
	entries map[model.OutPoint]model.Output
}

func New() *Set {
	return &Set{entries: make(map[model.OutPoint]model.Output)}
}

// Add inserts an output. Binding an outpoint that is already present to a
// different output breaks the ledger and panics.
func (s *Set) Add(op model.OutPoint, out model.Output) {
	if prev, ok := s.entries[op]; ok && !prev.Equal(out) {
		panic(fmt.Sprintf("utxo: outpoint %s bound to two different outputs", op))
	}
	s.entries[op] = out
}

func (s *Set) Remove(op model.OutPoint) {
	delete(s.entries, op)
}

// Get returns the output at op and whether it is unspent.
func (s *Set) Get(op model.OutPoint) (model.Output, bool) {
	out, ok := s.entries[op]
	return out, ok
}

func (s *Set) Contains(op model.OutPoint) bool {
	_, ok := s.entries[op]
	return ok
}

func (s *Set) Len() int {
	return len(s.entries)
}

// Clone returns an independent copy. Outputs are immutable values, so the
// copy shares nothing mutable with s.
func (s *Set) Clone() *Set {
	clone := &Set{entries: make(map[model.OutPoint]model.Output, len(s.entries))}
	for op, out := range s.entries {
		clone.entries[op] = out
	}
	return clone
}

// AddOutputs registers every output of tx under (tx.ID, position).
func (s *Set) AddOutputs(tx *model.Transaction) {
	for i, out := range tx.Outputs {
		s.Add(tx.OutPoint(i), out)
	}
}

// Apply consumes the outputs tx claims and adds the ones it produces. The
// caller is responsible for validating tx against s first.
func (s *Set) Apply(tx *model.Transaction) {
	for _, in := range tx.Inputs {
		s.Remove(in.PrevOut)
	}
	s.AddOutputs(tx)
}

// TotalValue sums every unspent output.
func (s *Set) TotalValue() decimal.Decimal {
	sum := decimal.Zero
	for _, out := range s.entries {
		sum = sum.Add(out.Value)
	}
	return sum
}

// OutPoints returns the keys in a deterministic order.
func (s *Set) OutPoints() []model.OutPoint {
	ops := make([]model.OutPoint, 0, len(s.entries))
	for op := range s.entries {
		ops = append(ops, op)
	}
	sortOutPoints(ops)
	return ops
}

// ByAddress returns the outpoints owned by address, sorted.
func (s *Set) ByAddress(address []byte) []model.OutPoint {
	ops := make([]model.OutPoint, 0)
	for op, out := range s.entries {
		if bytes.Equal(out.Address, address) {
			ops = append(ops, op)
		}
	}
	sortOutPoints(ops)
	return ops
}

// Entry is one (outpoint, output) pair.
type Entry struct {
	OutPoint model.OutPoint
	Output   model.Output
}

// Diff returns the entries present in other but not in s (added) and the
// entries present in s but not in other (removed), both sorted.
func (s *Set) Diff(other *Set) (added, removed []Entry) {
	for op, out := range other.entries {
		if !s.Contains(op) {
			added = append(added, Entry{OutPoint: op, Output: out})
		}
	}
	for op, out := range s.entries {
		if !other.Contains(op) {
			removed = append(removed, Entry{OutPoint: op, Output: out})
		}
	}
	sortEntries(added)
	sortEntries(removed)
	return added, removed
}

func (s *Set) String() string {
	ops := s.OutPoints()
	strs := make([]string, len(ops))
	for i, op := range ops {
		strs[i] = fmt.Sprintf("(%s) => %s", op, s.entries[op].Value)
	}
	return fmt.Sprintf("[ %s ]", strings.Join(strs, ", "))
}

func lessOutPoint(a, b model.OutPoint) bool {
	if c := bytes.Compare(a.TxID[:], b.TxID[:]); c != 0 {
		return c < 0
	}
	return a.Index < b.Index
}

func sortOutPoints(ops []model.OutPoint) {
	sort.Slice(ops, func(i, j int) bool { return lessOutPoint(ops[i], ops[j]) })
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return lessOutPoint(entries[i].OutPoint, entries[j].OutPoint) })
}
