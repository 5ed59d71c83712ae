package producer

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-ledger/internal/chain"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/crypto"
	"github.com/wx-shi/utxo-ledger/internal/ledger"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/txbuilder"
	"go.uber.org/zap"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

type fixture struct {
	bc         *chain.BlockChain
	validator  *ledger.Validator
	t1, t2, t3 *model.Transaction
	miner      []byte
}

// newFixture funds two outputs of 10 and queues three candidates that
// compete for them: t2 (fee 5) conflicts with both t1 (fee 3) and t3 (fee 8).
func newFixture(t *testing.T) *fixture {
	owner, err := crypto.NewPrivateKey()
	require.NoError(t, err)
	miner, err := crypto.NewPrivateKey()
	require.NoError(t, err)
	addr := crypto.Address(owner)

	funding := txbuilder.New().Pay(dec(10), addr).Pay(dec(10), addr).Build()
	genesis := txbuilder.Block(nil, txbuilder.Coinbase(0, dec(50), addr), funding)

	validator := ledger.NewValidator(crypto.ECDSAVerifier{})
	bc, err := chain.NewBlockChain(&config.ChainConfig{RetentionWindow: 10}, genesis, validator, zap.NewNop())
	require.NoError(t, err)

	f := &fixture{bc: bc, validator: validator, miner: crypto.Address(miner)}
	f.t1 = txbuilder.New().Spend(funding.OutPoint(0), owner).Pay(dec(7), addr).Build()
	f.t2 = txbuilder.New().Spend(funding.OutPoint(0), owner).Spend(funding.OutPoint(1), owner).Pay(dec(15), addr).Build()
	f.t3 = txbuilder.New().Spend(funding.OutPoint(1), owner).Pay(dec(2), addr).Build()
	for _, tx := range []*model.Transaction{f.t2, f.t1, f.t3} {
		bc.SubmitTransaction(tx)
	}
	return f
}

func (f *fixture) producer(t *testing.T, policy string) *Producer {
	p, err := NewProducer(&config.ProducerConfig{
		Interval: 10 * time.Millisecond,
		Address:  hex.EncodeToString(f.miner),
		Reward:   "25",
		Policy:   policy,
	}, f.bc, f.validator, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestProduceMaxFee(t *testing.T) {
	f := newFixture(t)
	reply, err := f.producer(t, PolicyMaxFee).Produce()
	require.NoError(t, err)
	require.EqualValues(t, 1, reply.Height)
	require.Equal(t, 2, reply.TxLen)
	require.Equal(t, "11.00000000", reply.Fees)

	best, height := f.bc.BestBlock()
	require.EqualValues(t, 1, height)
	require.Equal(t, reply.Hash, best.ID.String())
	require.Equal(t, []*model.Transaction{f.t1, f.t3}, best.Transactions)
	require.True(t, best.Coinbase.Outputs[0].Value.Equal(dec(36)))
	require.Equal(t, []*model.Transaction{f.t2}, f.bc.GetPendingPool().Transactions())
}

func TestProduceGreedy(t *testing.T) {
	f := newFixture(t)
	reply, err := f.producer(t, PolicyGreedy).Produce()
	require.NoError(t, err)
	require.Equal(t, 1, reply.TxLen)
	require.Equal(t, "5.00000000", reply.Fees)

	best, _ := f.bc.BestBlock()
	require.Equal(t, []*model.Transaction{f.t2}, best.Transactions)
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	p := f.producer(t, PolicyMaxFee)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.bc.BestHeight() >= 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestNewProducerRejectsBadConfig(t *testing.T) {
	f := newFixture(t)
	for name, conf := range map[string]*config.ProducerConfig{
		"address": {Address: "zz", Reward: "1", Policy: PolicyMaxFee},
		"reward":  {Address: "02aa", Reward: "-1", Policy: PolicyMaxFee},
		"policy":  {Address: "02aa", Reward: "1", Policy: "fifo"},
	} {
		_, err := NewProducer(conf, f.bc, f.validator, zap.NewNop())
		require.Error(t, err, name)
	}
}
