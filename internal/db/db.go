package db

import (
	"bytes"
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	tmdb "github.com/cosmos/cosmos-db"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/config"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
	"github.com/wx-shi/utxo-ledger/pkg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	utxoKeyPrefix           = "u:"
	addressBalanceKeyPrefix = "ab:"
	addressUtxoKeyPrefix    = "au:"
	StoreHeight             = "s:h"
	StoreHash               = "s:b"

	udbName  = "utxo"
	bdbName  = "balance"
	audbName = "address_utxo"
)

// AddressIndex mirrors the best UTXO set keyed by address. It is fed the
// diffs of best block changes and serves balance and utxo queries.
//
//	udb:  u:<txid:index>          -> <address hex>:<value>
//	bdb:  ab:<address hex>        -> balance
//	audb: au:<address hex>:<txid:index> -> value
type AddressIndex struct {
	udb    tmdb.DB
	bdb    tmdb.DB
	audb   tmdb.DB
	logger *zap.Logger
}

func NewAddressIndex(conf *config.DBConfig, logger *zap.Logger) (*AddressIndex, error) {
	backend := tmdb.BackendType(conf.DBType)
	udb, err := tmdb.NewDB(conf.Name+"_"+udbName, backend, conf.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", udbName)
	}
	bdb, err := tmdb.NewDB(conf.Name+"_"+bdbName, backend, conf.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", bdbName)
	}
	audb, err := tmdb.NewDB(conf.Name+"_"+audbName, backend, conf.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", audbName)
	}

	return &AddressIndex{
		udb:    udb,
		bdb:    bdb,
		audb:   audb,
		logger: logger,
	}, nil
}

func (db *AddressIndex) Close() error {
	g, _ := errgroup.WithContext(context.Background())
	g.Go(db.udb.Close)
	g.Go(db.bdb.Close)
	g.Go(db.audb.Close)
	return g.Wait()
}

// GetStoreHeight returns the height and hash of the last applied best block.
// An empty index reports -1.
func (db *AddressIndex) GetStoreHeight() (int64, string, error) {
	val, err := db.udb.Get([]byte(StoreHeight))
	if err != nil {
		return 0, "", err
	}
	if len(val) == 0 {
		return -1, "", nil
	}
	hash, err := db.udb.Get([]byte(StoreHash))
	if err != nil {
		return 0, "", err
	}
	return pkg.BytesToInt64(val), string(hash), nil
}

func (db *AddressIndex) GetUTXOByAddress(address string, page int, pageSize int) (*model.UTXOReply, error) {
	reply := &model.UTXOReply{
		Page:     page,
		PageSize: pageSize,
		Utxos:    []*model.UTXO{},
	}

	// 获取余额
	val, err := db.bdb.Get([]byte(addressBalanceKeyPrefix + address))
	if err != nil {
		return nil, err
	}
	bal, err := pkg.BytesToDecimal(val)
	if err != nil {
		return nil, err
	}
	reply.Balance = pkg.FormatAmount(bal)

	// 获取utxo列表
	prefix := []byte(addressUtxoKeyPrefix + address + ":")
	items, err := db.scanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	reply.TotalSize = len(items)

	for _, item := range pkg.Paginate(items, page, pageSize) {
		op := string(item[0][len(prefix):])
		keyArr := strings.Split(op, ":")
		if len(keyArr) != 2 {
			return nil, errors.Errorf("invalid key:%s", item[0])
		}
		index, err := strconv.Atoi(keyArr[1])
		if err != nil {
			return nil, errors.Errorf("invalid key:%s", item[0])
		}
		value, err := pkg.BytesToDecimal(item[1])
		if err != nil {
			return nil, err
		}
		reply.Utxos = append(reply.Utxos, &model.UTXO{
			TxID:  keyArr[0],
			Index: index,
			Value: pkg.FormatAmount(value),
		})
	}
	return reply, nil
}

// scanPrefix returns the key/value pairs under prefix in key order.
func (db *AddressIndex) scanPrefix(prefix []byte) ([][2][]byte, error) {
	end := append(bytes.Clone(prefix[:len(prefix)-1]), prefix[len(prefix)-1]+1)
	it, err := db.audb.Iterator(prefix, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var items [][2][]byte
	for ; it.Valid(); it.Next() {
		items = append(items, [2][]byte{bytes.Clone(it.Key()), bytes.Clone(it.Value())})
	}
	return items, it.Error()
}

// GetUTXOInfoByKeys looks up "txid:index" keys. Spent or unknown keys map to nil.
func (db *AddressIndex) GetUTXOInfoByKeys(keys []string) (model.UTXOInfoReply, error) {
	reply := make(model.UTXOInfoReply, len(keys))

	for _, key := range keys {
		val, err := db.udb.Get([]byte(utxoKeyPrefix + key))
		if err != nil {
			return nil, err
		}
		if len(val) == 0 {
			reply[key] = nil
			continue
		}
		addr, raw, ok := strings.Cut(string(val), ":")
		if !ok {
			return nil, errors.Errorf("data anomalies key:%s value:%s", key, val)
		}
		value, err := pkg.BytesToDecimal([]byte(raw))
		if err != nil {
			return nil, err
		}
		reply[key] = &model.UtxoInfo{
			Address: addr,
			Value:   pkg.FormatAmount(value),
		}
	}

	return reply, nil
}

// Apply moves the index from one best snapshot to the next. added and
// removed are the entries that appeared in and vanished from the set.
func (db *AddressIndex) Apply(height int64, hash string, added, removed []utxo.Entry) error {
	start := time.Now()

	abm := make(map[string]decimal.Decimal) // 地址余额变动
	touched := strset.New()
	for _, e := range added {
		addr := hex.EncodeToString(e.Output.Address)
		abm[addr] = abm[addr].Add(e.Output.Value)
		touched.Add(addr)
	}
	for _, e := range removed {
		addr := hex.EncodeToString(e.Output.Address)
		abm[addr] = abm[addr].Sub(e.Output.Value)
		touched.Add(addr)
	}

	// 查询余额
	var err error
	touched.Each(func(addr string) bool {
		var val []byte
		val, err = db.bdb.Get([]byte(addressBalanceKeyPrefix + addr))
		if err != nil {
			return false
		}
		var bal decimal.Decimal
		bal, err = pkg.BytesToDecimal(val)
		if err != nil {
			return false
		}
		abm[addr] = abm[addr].Add(bal)
		return true
	})
	if err != nil {
		return errors.Wrap(err, "load balances")
	}

	if err := db.batchStore(added, removed, abm, height, hash); err != nil {
		return errors.Wrapf(err, "store height %d", height)
	}

	db.logger.Info("Store::Info",
		zap.Int64("height", height),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Int("addresses", touched.Size()),
		zap.Duration("ttl", time.Since(start)))
	return nil
}

func (db *AddressIndex) batchStore(added, removed []utxo.Entry, abm map[string]decimal.Decimal,
	height int64, hash string) error {
	g, _ := errgroup.WithContext(context.Background())

	g.Go(func() error {
		wb := db.udb.NewBatch()
		defer wb.Close()

		for _, e := range removed {
			if err := wb.Delete([]byte(utxoKeyPrefix + e.OutPoint.String())); err != nil {
				return err
			}
		}
		for _, e := range added {
			val := hex.EncodeToString(e.Output.Address) + ":" + e.Output.Value.String()
			if err := wb.Set([]byte(utxoKeyPrefix+e.OutPoint.String()), []byte(val)); err != nil {
				return err
			}
		}
		if err := wb.Set([]byte(StoreHeight), pkg.Int64ToBytes(height)); err != nil {
			return err
		}
		if err := wb.Set([]byte(StoreHash), []byte(hash)); err != nil {
			return err
		}
		return wb.WriteSync()
	})
	g.Go(func() error {
		wb := db.bdb.NewBatch()
		defer wb.Close()

		for addr, amount := range abm {
			key := []byte(addressBalanceKeyPrefix + addr)
			if amount.IsZero() {
				if err := wb.Delete(key); err != nil {
					return err
				}
			} else if err := wb.Set(key, pkg.DecimalToBytes(amount)); err != nil {
				return err
			}
		}
		return wb.WriteSync()
	})
	g.Go(func() error {
		wb := db.audb.NewBatch()
		defer wb.Close()

		for _, e := range removed {
			if err := wb.Delete(addressUtxoKey(e)); err != nil {
				return err
			}
		}
		for _, e := range added {
			if err := wb.Set(addressUtxoKey(e), pkg.DecimalToBytes(e.Output.Value)); err != nil {
				return err
			}
		}
		return wb.WriteSync()
	})

	return g.Wait()
}

func addressUtxoKey(e utxo.Entry) []byte {
	return []byte(addressUtxoKeyPrefix + hex.EncodeToString(e.Output.Address) + ":" + e.OutPoint.String())
}
