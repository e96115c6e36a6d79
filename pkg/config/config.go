// Package config loads the pulsegate configuration from defaults, an optional
// YAML file and PULSEGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "PULSEGATE"

// Config holds the configuration for a pulsegate instance.
type Config struct {
	Filter  FilterConfig  `mapstructure:"filter"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FilterConfig drives classification and the keep/drop policy.
// Only the two address sets may change after loading, and only through Add/Remove.
type FilterConfig struct {
	TargetHost      string `mapstructure:"target_host"`
	RoomNewPairs    string `mapstructure:"room_new_pairs"`
	RoomUpdatePulse string `mapstructure:"room_update_pulse"`
	PulsePath       string `mapstructure:"pulse_path"`

	FilterByDevAddress    bool `mapstructure:"filter_by_dev_address"`
	FilterByFundingWallet bool `mapstructure:"filter_by_funding_wallet"`

	DevAddressList    []string `mapstructure:"dev_addresses"`
	FunderAddressList []string `mapstructure:"funder_addresses"`

	// SuppressNewPairs drops new_pairs messages after they are counted.
	SuppressNewPairs bool `mapstructure:"suppress_new_pairs"`

	Logging        bool `mapstructure:"logging"`
	VerboseLogging bool `mapstructure:"verbose_logging"`

	DevAddresses    *AddressSet `mapstructure:"-"`
	FunderAddresses *AddressSet `mapstructure:"-"`
}

type ProxyConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	UpstreamHTTP string `mapstructure:"upstream_http"`
	UpstreamWS   string `mapstructure:"upstream_ws"`
	WSPath       string `mapstructure:"ws_path"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Channel   string `mapstructure:"channel"` // PubSub channel name
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Filter: FilterConfig{
			TargetHost:            "axiom.trade",
			RoomNewPairs:          "new_pairs",
			RoomUpdatePulse:       "update_pulse_v2",
			PulsePath:             "/pulse",
			FilterByDevAddress:    false,
			FilterByFundingWallet: true,
			DevAddressList:        []string{},
			FunderAddressList:     []string{KucoinAddress, MexcAddress, BybitAddress},
		},
		Proxy: ProxyConfig{
			ListenAddr:   ":8080",
			UpstreamHTTP: "https://api.axiom.trade",
			UpstreamWS:   "wss://cluster.axiom.trade",
			WSPath:       "/ws",
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			Channel:   "pulsegate_updates",
			KeyPrefix: "pulsegate",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.Filter.BuildSets()
	return cfg
}

// BuildSets (re)creates the address sets from the configured lists.
func (f *FilterConfig) BuildSets() {
	f.DevAddresses = NewAddressSet(f.DevAddressList...)
	f.FunderAddresses = NewAddressSet(f.FunderAddressList...)
}

func (f *FilterConfig) AddDevAddress(addr string) bool    { return f.DevAddresses.Add(addr) }
func (f *FilterConfig) RemoveDevAddress(addr string) bool { return f.DevAddresses.Remove(addr) }

func (f *FilterConfig) AddFunderAddress(addr string) bool    { return f.FunderAddresses.Add(addr) }
func (f *FilterConfig) RemoveFunderAddress(addr string) bool { return f.FunderAddresses.Remove(addr) }

// InvalidAddresses lists configured addresses that do not look like Solana keys.
func (f *FilterConfig) InvalidAddresses() []string {
	var bad []string
	for _, set := range []*AddressSet{f.DevAddresses, f.FunderAddresses} {
		if set == nil {
			continue
		}
		for _, a := range set.List() {
			if !ValidAddress(a) {
				bad = append(bad, a)
			}
		}
	}
	return bad
}

// Validate checks the fields that classification depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Filter.TargetHost == "" {
		errs = append(errs, errors.New("filter.target_host must not be empty"))
	}
	if c.Filter.RoomNewPairs == "" || c.Filter.RoomUpdatePulse == "" {
		errs = append(errs, errors.New("filter room names must not be empty"))
	}
	if !strings.HasPrefix(c.Filter.PulsePath, "/") {
		errs = append(errs, fmt.Errorf("filter.pulse_path %q must start with /", c.Filter.PulsePath))
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from path, or from ./pulsegate.yaml when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("pulsegate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into a zero value: every default is already registered above and
	// decoding over pre-filled slices would merge element-wise.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Filter.BuildSets()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the key is absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	f := cfg.Filter
	v.SetDefault("filter.target_host", f.TargetHost)
	v.SetDefault("filter.room_new_pairs", f.RoomNewPairs)
	v.SetDefault("filter.room_update_pulse", f.RoomUpdatePulse)
	v.SetDefault("filter.pulse_path", f.PulsePath)
	v.SetDefault("filter.filter_by_dev_address", f.FilterByDevAddress)
	v.SetDefault("filter.filter_by_funding_wallet", f.FilterByFundingWallet)
	v.SetDefault("filter.dev_addresses", f.DevAddressList)
	v.SetDefault("filter.funder_addresses", f.FunderAddressList)
	v.SetDefault("filter.suppress_new_pairs", f.SuppressNewPairs)
	v.SetDefault("filter.logging", f.Logging)
	v.SetDefault("filter.verbose_logging", f.VerboseLogging)

	v.SetDefault("proxy.listen_addr", cfg.Proxy.ListenAddr)
	v.SetDefault("proxy.upstream_http", cfg.Proxy.UpstreamHTTP)
	v.SetDefault("proxy.upstream_ws", cfg.Proxy.UpstreamWS)
	v.SetDefault("proxy.ws_path", cfg.Proxy.WSPath)

	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.address", cfg.Redis.Address)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.channel", cfg.Redis.Channel)
	v.SetDefault("redis.key_prefix", cfg.Redis.KeyPrefix)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", cfg.Metrics.ListenAddr)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
