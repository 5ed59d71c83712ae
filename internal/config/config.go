package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultRetentionWindow = 10
	DefaultBlockChanBuf    = 16
	DefaultSigCacheSize    = 50000
	DefaultProduceInterval = 10 * time.Second
)

// Config holds the configuration settings for the application.
type Config struct {
	Server   *ServerConfig   `yaml:"server"`
	LogLevel string          `yaml:"log_level"`
	DB       *DBConfig       `yaml:"db"`
	Chain    *ChainConfig    `yaml:"chain"`
	Producer *ProducerConfig `yaml:"producer"`
	Indexer  *IndexerConfig  `yaml:"indexer"`
	SigCache *SigCacheConfig `yaml:"sig_cache"`
}

// ServerConfig holds the configuration settings for the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig selects the cosmos-db backend of the address index.
type DBConfig struct {
	Name   string `yaml:"name"`
	Dir    string `yaml:"dir"`
	DBType string `yaml:"db_type"` // memdb, goleveldb
}

// ChainConfig holds the block tree settings.
type ChainConfig struct {
	RetentionWindow int64          `yaml:"retention_window"` // 最深可分叉高度差
	PruneMargin     int64          `yaml:"prune_margin"`     // 超出窗口后额外保留的高度
	Genesis         *GenesisConfig `yaml:"genesis"`
}

// GenesisConfig describes the coinbase of the genesis block.
type GenesisConfig struct {
	Address string `yaml:"address"` // hex compressed public key
	Reward  string `yaml:"reward"`
}

// ProducerConfig holds the block producer settings.
type ProducerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Address  string        `yaml:"address"`
	Reward   string        `yaml:"reward"`
	Policy   string        `yaml:"policy"` // maxfee, greedy
}

type IndexerConfig struct {
	BlockChanBuf int `yaml:"block_chan_buf"` // best block事件缓冲区大小
}

type SigCacheConfig struct {
	Size int `yaml:"size"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return config, nil
}

// Default returns a configuration usable without a file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DB == nil {
		c.DB = &DBConfig{}
	}
	if c.DB.Name == "" {
		c.DB.Name = "ledger"
	}
	if c.DB.DBType == "" {
		c.DB.DBType = "memdb"
	}
	if c.Chain == nil {
		c.Chain = &ChainConfig{}
	}
	if c.Chain.RetentionWindow <= 0 {
		c.Chain.RetentionWindow = DefaultRetentionWindow
	}
	if c.Chain.PruneMargin < 0 {
		c.Chain.PruneMargin = 0
	}
	if c.Chain.Genesis == nil {
		c.Chain.Genesis = &GenesisConfig{}
	}
	if c.Chain.Genesis.Reward == "" {
		c.Chain.Genesis.Reward = "100"
	}
	if c.Producer == nil {
		c.Producer = &ProducerConfig{}
	}
	if c.Producer.Interval <= 0 {
		c.Producer.Interval = DefaultProduceInterval
	}
	if c.Producer.Reward == "" {
		c.Producer.Reward = "25"
	}
	if c.Producer.Policy == "" {
		c.Producer.Policy = "maxfee"
	}
	if c.Indexer == nil {
		c.Indexer = &IndexerConfig{}
	}
	if c.Indexer.BlockChanBuf <= 0 {
		c.Indexer.BlockChanBuf = DefaultBlockChanBuf
	}
	if c.SigCache == nil {
		c.SigCache = &SigCacheConfig{}
	}
	if c.SigCache.Size <= 0 {
		c.SigCache.Size = DefaultSigCacheSize
	}
}
