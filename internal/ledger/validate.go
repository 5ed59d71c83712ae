// Package ledger decides which transactions are individually and mutually
// valid against a UTXO set.
package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/crypto"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
)

type Validator struct {
	verifier crypto.Verifier
}

func NewValidator(verifier crypto.Verifier) *Validator {
	return &Validator{verifier: verifier}
}

// IsValid reports whether tx can be applied to set.
func (v *Validator) IsValid(tx *model.Transaction, set *utxo.Set) bool {
	return v.Check(tx, set) == nil
}

// Check applies the transaction rules in order and returns the first
// violation. set is never modified.
func (v *Validator) Check(tx *model.Transaction, set *utxo.Set) error {
	for i, in := range tx.Inputs {
		if !set.Contains(in.PrevOut) {
			return NewRuleError(ErrMissingInput, "tx %s input %d: output %s is not unspent", tx.ID, i, in.PrevOut)
		}
	}

	claimed := make(map[model.OutPoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, ok := claimed[in.PrevOut]; ok {
			return NewRuleError(ErrDoubleSpend, "tx %s input %d: output %s claimed twice", tx.ID, i, in.PrevOut)
		}
		claimed[in.PrevOut] = struct{}{}
	}

	inputSum := decimal.Zero
	for i, in := range tx.Inputs {
		prev, _ := set.Get(in.PrevOut)
		if !v.verifier.Verify(prev.Address, tx.SigningMessage(i), in.Signature) {
			return NewRuleError(ErrBadSignature, "tx %s input %d: invalid signature", tx.ID, i)
		}
		inputSum = inputSum.Add(prev.Value)
	}

	for i, out := range tx.Outputs {
		if out.Value.IsNegative() {
			return NewRuleError(ErrNegativeOutput, "tx %s output %d: negative value %s", tx.ID, i, out.Value)
		}
	}

	if outputSum := tx.OutputSum(); inputSum.LessThan(outputSum) {
		return NewRuleError(ErrInsufficientInput, "tx %s: inputs %s < outputs %s", tx.ID, inputSum, outputSum)
	}
	return nil
}

// Fee returns input value minus output value of tx against set. ok is false
// when an input is missing from set.
func Fee(tx *model.Transaction, set *utxo.Set) (fee decimal.Decimal, ok bool) {
	inputSum := decimal.Zero
	for _, in := range tx.Inputs {
		prev, found := set.Get(in.PrevOut)
		if !found {
			return decimal.Zero, false
		}
		inputSum = inputSum.Add(prev.Value)
	}
	return inputSum.Sub(tx.OutputSum()), true
}
