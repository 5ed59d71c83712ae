package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wx-shi/utxo-ledger/internal/model"
)

const maxPageSize = 1000

func (s *Server) utxoHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		var req model.UTXORequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}
		if req.PageSize <= 0 || req.PageSize > maxPageSize {
			req.PageSize = maxPageSize
		}

		ur, err := s.db.GetUTXOByAddress(req.Address, req.Page, req.PageSize)
		if err != nil {
			replyError(ctx, http.StatusInternalServerError, err)
			return
		}
		reply(ctx, ur)
	}
}

func (s *Server) utxoInfoHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		var req model.UTXOInfoRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			replyError(ctx, http.StatusBadRequest, err)
			return
		}

		ir, err := s.db.GetUTXOInfoByKeys(req.Keys)
		if err != nil {
			replyError(ctx, http.StatusInternalServerError, err)
			return
		}
		reply(ctx, ir)
	}
}

func (s *Server) heightHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		sheight, _, err := s.db.GetStoreHeight()
		if err != nil {
			replyError(ctx, http.StatusInternalServerError, err)
			return
		}
		best, height := s.chain.BestBlock()

		reply(ctx, model.HeightReply{
			StoreHeight: sheight,
			BestHeight:  height,
			BestHash:    best.ID.String(),
		})
	}
}
