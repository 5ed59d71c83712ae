package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wx-shi/utxo-ledger/internal/chain"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/db"
	"github.com/wx-shi/utxo-ledger/internal/ledger"
	"github.com/wx-shi/utxo-ledger/internal/producer"
	"github.com/wx-shi/utxo-ledger/pkg"
	"go.uber.org/zap"
)

const (
	// readTimeout is the maximum duration for reading the entire
	// request, including the body.
	readTimeout = 30 * time.Second

	// writeTimeout is the maximum duration before timing out
	// writes of the response. It is reset whenever a new
	// request's header is read.
	writeTimeout = 30 * time.Second

	// idleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled.
	idleTimeout = 5 * time.Minute
)

type Server struct {
	conf     *config.ServerConfig
	logger   *zap.Logger
	chain    *chain.BlockChain
	db       *db.AddressIndex
	producer *producer.Producer // nil when production is disabled
	engine   *gin.Engine
	hs       *http.Server
}

func NewServer(conf *config.ServerConfig, logger *zap.Logger, chain *chain.BlockChain,
	db *db.AddressIndex, producer *producer.Producer) *Server {

	s := &Server{
		conf:     conf,
		logger:   logger,
		chain:    chain,
		db:       db,
		producer: producer,
	}

	s.initGin()
	return s
}

func (s *Server) initGin() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(pkg.LogMiddleware(s.logger), pkg.CORSMiddleware(), gin.Recovery())

	engine.POST("tx", s.txHandle())
	engine.POST("block", s.blockHandle())
	engine.POST("produce", s.produceHandle())
	engine.POST("best", s.bestHandle())
	engine.POST("pool", s.poolHandle())
	engine.POST("utxo", s.utxoHandle())
	engine.POST("utxo_info", s.utxoInfoHandle())
	engine.POST("height", s.heightHandle())
	s.engine = engine
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run() {
	addr := fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port)
	hs := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	s.hs = hs

	go func() {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("listen", zap.Error(err))
		}
	}()
	s.logger.Info("listen", zap.String("addr", addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

func reply(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": data,
	})
}

func replyError(ctx *gin.Context, code int, err error) {
	ctx.JSON(code, gin.H{
		"code": code,
		"msg":  err.Error(),
	})
}

// statusOf maps rejections to client errors: structural ones to 400,
// failed validation to 422. Anything else is a server error.
func statusOf(err error) int {
	ruleErr, ok := ledger.IsRuleError(err)
	switch {
	case !ok:
		return http.StatusInternalServerError
	case ruleErr.Structural():
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
