// Package txbuilder assembles signed transactions and blocks.
package txbuilder

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/crypto"
	"github.com/wx-shi/utxo-ledger/internal/model"
)

type TxBuilder struct {
	tx   model.Transaction
	keys []*crypto.PrivateKey
}

func New() *TxBuilder {
	return &TxBuilder{}
}

// WithNonce sets the nonce; coinbase transactions use the block height.
func (b *TxBuilder) WithNonce(nonce uint64) *TxBuilder {
	b.tx.Nonce = nonce
	return b
}

// Spend adds an input claiming prev, signed with key on Build. A nil key
// leaves the input unsigned.
func (b *TxBuilder) Spend(prev model.OutPoint, key *crypto.PrivateKey) *TxBuilder {
	b.tx.Inputs = append(b.tx.Inputs, model.Input{PrevOut: prev})
	b.keys = append(b.keys, key)
	return b
}

func (b *TxBuilder) Pay(value decimal.Decimal, address []byte) *TxBuilder {
	b.tx.Outputs = append(b.tx.Outputs, model.Output{Value: value, Address: address})
	return b
}

// Build signs every input and returns the finalized transaction.
func (b *TxBuilder) Build() *model.Transaction {
	tx := &model.Transaction{
		Nonce:   b.tx.Nonce,
		Inputs:  append([]model.Input(nil), b.tx.Inputs...),
		Outputs: append([]model.Output(nil), b.tx.Outputs...),
	}
	for i, key := range b.keys {
		if key == nil {
			continue
		}
		tx.Inputs[i].Signature = crypto.Sign(key, tx.SigningMessage(i))
	}
	tx.Finalize()
	return tx
}

// Coinbase returns a reward transaction paying value to address.
func Coinbase(nonce uint64, value decimal.Decimal, address []byte) *model.Transaction {
	return New().WithNonce(nonce).Pay(value, address).Build()
}

// Block returns a finalized block. prev is nil for a genesis block.
func Block(prev *chainhash.Hash, coinbase *model.Transaction, txs ...*model.Transaction) *model.Block {
	b := &model.Block{
		Transactions: txs,
		Coinbase:     coinbase,
	}
	if prev != nil {
		id := *prev
		b.PrevID = &id
	}
	b.Finalize()
	return b
}
