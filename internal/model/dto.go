package model

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/pkg"
)

type UTXO struct {
	TxID    string `json:"txid"`
	Index   int    `json:"index"`
	Address string `json:"address,omitempty"`
	Value   string `json:"value"`
}

// NewUTXO flattens an unspent output into its JSON form.
func NewUTXO(op OutPoint, out Output) *UTXO {
	return &UTXO{
		TxID:    op.TxID.String(),
		Index:   int(op.Index),
		Address: hex.EncodeToString(out.Address),
		Value:   pkg.FormatAmount(out.Value),
	}
}

type UTXORequest struct {
	Address  string `json:"address"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type UTXOReply struct {
	Balance   string  `json:"balance"`
	TotalSize int     `json:"total_size"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	Utxos     []*UTXO `json:"utxos"`
}

type UTXOInfoRequest struct {
	Keys []string `json:"keys"`
}

type UtxoInfo struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// UTXOInfoReply maps "txid:index" keys to their output, nil when spent or unknown.
type UTXOInfoReply map[string]*UtxoInfo

type HeightReply struct {
	StoreHeight int64  `json:"store_height"`
	BestHeight  int64  `json:"best_height"`
	BestHash    string `json:"best_hash"`
}

type BestReply struct {
	Hash   string  `json:"hash"`
	Height int64   `json:"height"`
	Utxos  []*UTXO `json:"utxos"`
}

type PoolReply struct {
	Transactions []*TxJSON `json:"transactions"`
}

type SubmitReply struct {
	Hash string `json:"hash"`
}

type ProduceReply struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	TxLen  int    `json:"tx_len"`
	Fees   string `json:"fees"`
}

type InputJSON struct {
	TxID      string `json:"txid"`
	Index     uint32 `json:"index"`
	Signature string `json:"signature"`
}

type OutputJSON struct {
	Value   decimal.Decimal `json:"value"`
	Address string          `json:"address"`
}

// TxJSON is the wire form of a Transaction. ID is informational: it is
// recomputed from content on decode and must match when present.
type TxJSON struct {
	ID      string       `json:"id,omitempty"`
	Nonce   uint64       `json:"nonce"`
	Inputs  []InputJSON  `json:"inputs"`
	Outputs []OutputJSON `json:"outputs"`
}

type BlockJSON struct {
	ID           string    `json:"id,omitempty"`
	PrevID       string    `json:"prev_id,omitempty"`
	Transactions []*TxJSON `json:"transactions"`
	Coinbase     *TxJSON   `json:"coinbase"`
}

func TxToJSON(tx *Transaction) *TxJSON {
	j := &TxJSON{
		ID:      tx.ID.String(),
		Nonce:   tx.Nonce,
		Inputs:  make([]InputJSON, 0, len(tx.Inputs)),
		Outputs: make([]OutputJSON, 0, len(tx.Outputs)),
	}
	for _, in := range tx.Inputs {
		j.Inputs = append(j.Inputs, InputJSON{
			TxID:      in.PrevOut.TxID.String(),
			Index:     in.PrevOut.Index,
			Signature: hex.EncodeToString(in.Signature),
		})
	}
	for _, out := range tx.Outputs {
		j.Outputs = append(j.Outputs, OutputJSON{
			Value:   out.Value,
			Address: hex.EncodeToString(out.Address),
		})
	}
	return j
}

func TxFromJSON(j *TxJSON) (*Transaction, error) {
	if j == nil {
		return nil, fmt.Errorf("empty transaction")
	}
	tx := &Transaction{
		Nonce:   j.Nonce,
		Inputs:  make([]Input, 0, len(j.Inputs)),
		Outputs: make([]Output, 0, len(j.Outputs)),
	}
	for i, in := range j.Inputs {
		txid, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("input %d: invalid txid:%s", i, in.TxID)
		}
		sig, err := hex.DecodeString(in.Signature)
		if err != nil {
			return nil, fmt.Errorf("input %d: invalid signature", i)
		}
		tx.Inputs = append(tx.Inputs, Input{
			PrevOut:   OutPoint{TxID: *txid, Index: in.Index},
			Signature: sig,
		})
	}
	for i, out := range j.Outputs {
		addr, err := hex.DecodeString(out.Address)
		if err != nil {
			return nil, fmt.Errorf("output %d: invalid address:%s", i, out.Address)
		}
		tx.Outputs = append(tx.Outputs, Output{Value: out.Value, Address: addr})
	}
	id := tx.Finalize()
	if j.ID != "" && j.ID != id.String() {
		return nil, fmt.Errorf("transaction id mismatch: got %s, computed %s", j.ID, id)
	}
	return tx, nil
}

func BlockToJSON(b *Block) *BlockJSON {
	j := &BlockJSON{
		ID:           b.ID.String(),
		Transactions: make([]*TxJSON, 0, len(b.Transactions)),
	}
	if b.PrevID != nil {
		j.PrevID = b.PrevID.String()
	}
	for _, tx := range b.Transactions {
		j.Transactions = append(j.Transactions, TxToJSON(tx))
	}
	if b.Coinbase != nil {
		j.Coinbase = TxToJSON(b.Coinbase)
	}
	return j
}

func BlockFromJSON(j *BlockJSON) (*Block, error) {
	if j == nil {
		return nil, fmt.Errorf("empty block")
	}
	b := &Block{Transactions: make([]*Transaction, 0, len(j.Transactions))}
	if j.PrevID != "" {
		prev, err := chainhash.NewHashFromStr(j.PrevID)
		if err != nil {
			return nil, fmt.Errorf("invalid prev_id:%s", j.PrevID)
		}
		b.PrevID = prev
	}
	for i, tj := range j.Transactions {
		tx, err := TxFromJSON(tj)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		b.Transactions = append(b.Transactions, tx)
	}
	if j.Coinbase != nil {
		cb, err := TxFromJSON(j.Coinbase)
		if err != nil {
			return nil, fmt.Errorf("coinbase: %w", err)
		}
		b.Coinbase = cb
	}
	id := b.Finalize()
	if j.ID != "" && j.ID != id.String() {
		return nil, fmt.Errorf("block id mismatch: got %s, computed %s", j.ID, id)
	}
	return b, nil
}
