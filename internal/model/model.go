package model

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
)

// OutPoint uniquely identifies one output: the creating transaction id
// plus the output position inside that transaction.
type OutPoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// String returns the "txid:index" key used by the address index.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// Output is a value owned by an address (a serialized public key).
type Output struct {
	Value   decimal.Decimal
	Address []byte
}

// Equal reports whether two outputs carry the same value and owner.
func (o Output) Equal(other Output) bool {
	return o.Value.Equal(other.Value) && bytes.Equal(o.Address, other.Address)
}

// Input claims a previously created output.
type Input struct {
	PrevOut   OutPoint
	Signature []byte
}

// Transaction is immutable once its ID has been computed by Finalize.
type Transaction struct {
	ID      chainhash.Hash
	Nonce   uint64
	Inputs  []Input
	Outputs []Output
}

// IsCoinbase reports whether tx mints value without claiming outputs.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// OutPoint returns the identifier of the idx-th output of tx.
func (tx *Transaction) OutPoint(idx int) OutPoint {
	return OutPoint{TxID: tx.ID, Index: uint32(idx)}
}

// SigningMessage returns the content the owner of the idx-th input signs.
// The input position is part of the message so a signature can not be
// replayed on another input of the same transaction.
func (tx *Transaction) SigningMessage(idx int) []byte {
	if idx < 0 || idx >= len(tx.Inputs) {
		return nil
	}
	var buf bytes.Buffer
	writeUint32(&buf, uint32(idx))
	writeOutPoint(&buf, tx.Inputs[idx].PrevOut)
	writeUint64(&buf, tx.Nonce)
	writeOutputs(&buf, tx.Outputs)
	return buf.Bytes()
}

// Finalize computes the content id of tx. It must be called after all
// inputs have been signed.
func (tx *Transaction) Finalize() chainhash.Hash {
	var buf bytes.Buffer
	writeUint64(&buf, tx.Nonce)
	writeUint32(&buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		writeOutPoint(&buf, in.PrevOut)
		writeBytes(&buf, in.Signature)
	}
	writeOutputs(&buf, tx.Outputs)
	tx.ID = chainhash.DoubleHashH(buf.Bytes())
	return tx.ID
}

// OutputSum returns the total value produced by tx.
func (tx *Transaction) OutputSum() decimal.Decimal {
	sum := decimal.Zero
	for _, out := range tx.Outputs {
		sum = sum.Add(out.Value)
	}
	return sum
}

// Block is an ordered batch of transactions plus one coinbase. PrevID is
// nil only for the genesis block.
type Block struct {
	ID           chainhash.Hash
	PrevID       *chainhash.Hash
	Transactions []*Transaction
	Coinbase     *Transaction
}

// IsGenesis reports whether the block declares no predecessor.
func (b *Block) IsGenesis() bool {
	return b.PrevID == nil
}

// Finalize computes the content id of the block from its predecessor and
// the ids of its transactions.
func (b *Block) Finalize() chainhash.Hash {
	var buf bytes.Buffer
	if b.PrevID != nil {
		buf.Write(b.PrevID[:])
	} else {
		buf.Write(make([]byte, chainhash.HashSize))
	}
	writeUint32(&buf, uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf.Write(tx.ID[:])
	}
	if b.Coinbase != nil {
		buf.Write(b.Coinbase.ID[:])
	}
	b.ID = chainhash.DoubleHashH(buf.Bytes())
	return b.ID
}

func writeOutputs(buf *bytes.Buffer, outs []Output) {
	writeUint32(buf, uint32(len(outs)))
	for _, out := range outs {
		writeBytes(buf, []byte(out.Value.String()))
		writeBytes(buf, out.Address)
	}
}

func writeOutPoint(buf *bytes.Buffer, op OutPoint) {
	buf.Write(op.TxID[:])
	writeUint32(buf, op.Index)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
