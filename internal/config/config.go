// Package config loads node configuration from defaults, an optional config
// file and NFTI_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// ErrInvalid is returned for configurations that fail validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the node configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// DataDir holds the accounts database, the journal and snapshots.
	DataDir string `mapstructure:"data_dir"`

	// InMemory keeps accounts in memory; the journal still goes to DataDir.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every accounts and journal write.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ProgramID is the base58 address the NFT interface program is served at.
	ProgramID string `mapstructure:"program_id"`

	// SnapshotPath is imported on startup when the accounts database is empty.
	SnapshotPath string `mapstructure:"snapshot_path"`

	ComputeLimit uint64 `mapstructure:"compute_limit"`

	RentLamportsPerByteYear uint64  `mapstructure:"rent_lamports_per_byte_year"`
	RentExemptionThreshold  float64 `mapstructure:"rent_exemption_threshold"`
	RentBurnPercent         uint8   `mapstructure:"rent_burn_percent"`

	// RPCAddr is the listen address of the JSON-RPC server.
	RPCAddr string `mapstructure:"rpc_addr"`

	// EnableAirdrop serves requestAirdrop over RPC, capped at MaxAirdrop
	// lamports per request.
	EnableAirdrop bool   `mapstructure:"enable_airdrop"`
	MaxAirdrop    uint64 `mapstructure:"max_airdrop"`

	// RPCURL, when set, points client commands at running nodes instead of
	// the local data directory. Several URLs are separated by commas.
	RPCURL     string        `mapstructure:"rpc_url"`
	RPCTimeout time.Duration `mapstructure:"rpc_timeout"`
}

var defaultConfig = Config{
	LogLevel: "info",

	DataDir:    "./data",
	SyncWrites: true,

	ProgramID: "NFTinterface1111111111111111111111111111111",

	ComputeLimit: 200_000,

	RentLamportsPerByteYear: types.DefaultLamportsPerByteYear,
	RentExemptionThreshold:  types.DefaultExemptionThreshold,
	RentBurnPercent:         types.DefaultBurnPercent,

	RPCAddr:    "127.0.0.1:8899",
	MaxAirdrop: 10_000_000_000,
	RPCTimeout: 10 * time.Second,
}

var envBindings = map[string]string{
	"log_level":                   "NFTI_LOG_LEVEL",
	"data_dir":                    "NFTI_DATA_DIR",
	"in_memory":                   "NFTI_IN_MEMORY",
	"sync_writes":                 "NFTI_SYNC_WRITES",
	"program_id":                  "NFTI_PROGRAM_ID",
	"snapshot_path":               "NFTI_SNAPSHOT_PATH",
	"compute_limit":               "NFTI_COMPUTE_LIMIT",
	"rent_lamports_per_byte_year": "NFTI_RENT_LAMPORTS_PER_BYTE_YEAR",
	"rent_exemption_threshold":    "NFTI_RENT_EXEMPTION_THRESHOLD",
	"rent_burn_percent":           "NFTI_RENT_BURN_PERCENT",
	"rpc_addr":                    "NFTI_RPC_ADDR",
	"enable_airdrop":              "NFTI_ENABLE_AIRDROP",
	"max_airdrop":                 "NFTI_MAX_AIRDROP",
	"rpc_url":                     "NFTI_RPC_URL",
	"rpc_timeout":                 "NFTI_RPC_TIMEOUT",
}

// Default returns the default configuration.
func Default() Config {
	return defaultConfig
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	// viper only reports ConfigFileNotFoundError when it searches for a
	// file itself, so an explicit path is checked here.
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if _, err := types.PubkeyFromBase58(c.ProgramID); err != nil {
		return fmt.Errorf("%w: program_id: %v", ErrInvalid, err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	if c.ComputeLimit == 0 {
		return fmt.Errorf("%w: compute_limit must be positive", ErrInvalid)
	}
	if c.RentBurnPercent > 100 {
		return fmt.Errorf("%w: rent_burn_percent above 100", ErrInvalid)
	}
	if c.RentExemptionThreshold <= 0 {
		return fmt.Errorf("%w: rent_exemption_threshold must be positive", ErrInvalid)
	}
	if c.RPCAddr == "" {
		return fmt.Errorf("%w: rpc_addr is required", ErrInvalid)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("%w: rpc_timeout must be positive", ErrInvalid)
	}
	return nil
}

// Level returns the parsed log level, info when invalid.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Program returns the parsed program id.
func (c Config) Program() types.Pubkey {
	id, err := types.PubkeyFromBase58(c.ProgramID)
	if err != nil {
		return types.Pubkey{}
	}
	return id
}

// Rent returns the rent configuration served by the rent sysvar.
func (c Config) Rent() types.Rent {
	return types.Rent{
		LamportsPerByteYear: c.RentLamportsPerByteYear,
		ExemptionThreshold:  c.RentExemptionThreshold,
		BurnPercent:         c.RentBurnPercent,
	}
}
