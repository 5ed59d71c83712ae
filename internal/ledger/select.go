package ledger

import (
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
)

// Select accepts candidates greedily until a fixed point: each pass walks
// the candidates in order and applies every not yet accepted transaction
// that validates against the progressively updated set, and passes repeat
// until one accepts nothing. accepted is in acceptance order. set is not
// modified; the result is applied to a clone.
func (v *Validator) Select(candidates []*model.Transaction, set *utxo.Set) (accepted []*model.Transaction, newSet *utxo.Set) {
	newSet = set.Clone()
	accepted = make([]*model.Transaction, 0, len(candidates))
	done := make([]bool, len(candidates))

	for progress := true; progress; {
		progress = false
		for i, tx := range candidates {
			if done[i] || !v.IsValid(tx, newSet) {
				continue
			}
			newSet.Apply(tx)
			accepted = append(accepted, tx)
			done[i] = true
			progress = true
		}
	}
	return accepted, newSet
}
