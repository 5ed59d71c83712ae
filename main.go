package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/chain"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/crypto"
	"github.com/wx-shi/utxo-ledger/internal/db"
	"github.com/wx-shi/utxo-ledger/internal/indexer"
	"github.com/wx-shi/utxo-ledger/internal/ledger"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/producer"
	"github.com/wx-shi/utxo-ledger/internal/server"
	"github.com/wx-shi/utxo-ledger/internal/txbuilder"
	"github.com/wx-shi/utxo-ledger/pkg"
	"go.uber.org/zap"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "./config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(flagconf)
	if os.IsNotExist(err) {
		cfg = config.Default()
	} else if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := pkg.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	genesis, err := genesisBlock(cfg.Chain.Genesis, logger)
	if err != nil {
		logger.Fatal("Error building genesis block", zap.Error(err))
	}

	verifier, err := crypto.NewCachedVerifier(crypto.ECDSAVerifier{}, cfg.SigCache.Size)
	if err != nil {
		logger.Fatal("Error initializing signature cache", zap.Error(err))
	}
	validator := ledger.NewValidator(verifier)

	bc, err := chain.NewBlockChain(cfg.Chain, genesis, validator, logger)
	if err != nil {
		logger.Fatal("Error initializing block chain", zap.Error(err))
	}
	logger.Info("genesis", zap.String("hash", genesis.ID.String()))

	// Initialize address index
	index, err := db.NewAddressIndex(cfg.DB, logger)
	if err != nil {
		logger.Fatal("Error initializing address index", zap.Error(err))
	}
	defer func() {
		if err := index.Close(); err != nil {
			logger.Error("AddressIndex::Close", zap.Error(err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start address indexer
	idx := indexer.NewIndexer(ctx, cfg.Indexer, logger, bc, index)
	idx.Sync()

	var prod *producer.Producer
	if cfg.Producer.Enabled {
		prod, err = producer.NewProducer(cfg.Producer, bc, validator, logger)
		if err != nil {
			logger.Fatal("Error initializing producer", zap.Error(err))
		}
		go prod.Run(ctx)
	}

	// Start HTTP server
	httpServer := server.NewServer(cfg.Server, logger, bc, index, prod)
	httpServer.Run()

	// Wait for signal
	<-sigCh
	logger.Info("Shutting down...")

	// Shutdown context
	cancel()
	<-idx.Finish //确保没在存储时退出程序

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	}
}

// genesisBlock pays the configured reward to the configured address. Without
// an address a throwaway key receives it.
func genesisBlock(conf *config.GenesisConfig, logger *zap.Logger) (*model.Block, error) {
	reward, err := decimal.NewFromString(conf.Reward)
	if err != nil {
		return nil, err
	}

	var address []byte
	if conf.Address != "" {
		if address, err = hex.DecodeString(conf.Address); err != nil {
			return nil, err
		}
	} else {
		key, err := crypto.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		address = crypto.Address(key)
		logger.Warn("genesis address not configured, reward is unspendable",
			zap.String("address", hex.EncodeToString(address)))
	}

	return txbuilder.Block(nil, txbuilder.Coinbase(0, reward, address)), nil
}
