package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-ledger/internal/model"
)

var errProducerDisabled = errors.New("block production is disabled")

func (s *Server) txHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		var req model.TxJSON
		if err := ctx.ShouldBindJSON(&req); err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}
		tx, err := model.TxFromJSON(&req)
		if err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}

		s.chain.SubmitTransaction(tx)
		reply(ctx, model.SubmitReply{Hash: tx.ID.String()})
	}
}

func (s *Server) blockHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		var req model.BlockJSON
		if err := ctx.ShouldBindJSON(&req); err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}
		block, err := model.BlockFromJSON(&req)
		if err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}

		if err := s.chain.ProcessBlock(block); err != nil {
			replyError(ctx, statusOf(err), err)
			return
		}
		reply(ctx, model.SubmitReply{Hash: block.ID.String()})
	}
}

func (s *Server) produceHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		if s.producer == nil {
			replyError(ctx, http.StatusServiceUnavailable, errProducerDisabled)
			return
		}
		pr, err := s.producer.Produce()
		if err != nil {
			replyError(ctx, statusOf(err), err)
			return
		}
		reply(ctx, pr)
	}
}

func (s *Server) bestHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		best, height, set := s.chain.Snapshot()
		ops := set.OutPoints()
		utxos := make([]*model.UTXO, 0, len(ops))
		for _, op := range ops {
			out, _ := set.Get(op)
			utxos = append(utxos, model.NewUTXO(op, out))
		}
		reply(ctx, model.BestReply{
			Hash:   best.ID.String(),
			Height: height,
			Utxos:  utxos,
		})
	}
}

func (s *Server) poolHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		txs := s.chain.GetPendingPool().Transactions()
		pr := model.PoolReply{Transactions: make([]*model.TxJSON, 0, len(txs))}
		for _, tx := range txs {
			pr.Transactions = append(pr.Transactions, model.TxToJSON(tx))
		}
		reply(ctx, pr)
	}
}
