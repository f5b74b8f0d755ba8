// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/resourcevm/service"
	"github.com/ava-labs/resourcevm/state"
)

const (
	versionKey         = "version"
	configFileKey      = "config-file"
	httpHostKey        = "http-host"
	httpPortKey        = "http-port"
	logLevelKey        = "log-level"
	dbDirKey           = "db-dir"
	gasBudgetKey       = "gas-budget"
	moduleCacheSizeKey = "module-cache-size"
	shutdownTimeoutKey = "shutdown-timeout"
	tableCostsKey      = "table-costs"

	envPrefix = "RESOURCEVM"
)

// config is the daemon configuration after flags, environment and the
// optional config file have been merged
type config struct {
	HTTPHost        string
	HTTPPort        uint16
	LogLevel        log.Lvl
	DBDir           string
	ModuleCacheSize int
	ShutdownTimeout time.Duration
	TableCosts      state.TableCosts
	Service         service.Config
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("resourcevm", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quit")
	fs.String(configFileKey, "", "Path to a JSON config file")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.String(logLevelKey, "info", "Log level: crit, error, warn, info, debug")
	fs.String(dbDirKey, "", "Directory of the leveldb database. State is kept in memory when empty")
	fs.Uint64(gasBudgetKey, service.DefaultConfig.GasBudget, "Gas available to each call")
	fs.Int(moduleCacheSizeKey, 2048, "Number of entries in each loader cache")
	fs.Duration(shutdownTimeoutKey, 10*time.Second, "Time allowed for in flight requests on shutdown")

	return fs
}

// getViper returns the viper environment for the daemon
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if file := v.GetString(configFileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", file, err)
		}
	}
	return v, nil
}

func buildConfig(v *viper.Viper) (config, error) {
	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return config{}, err
	}
	port := v.GetUint(httpPortKey)
	if port > 65535 {
		return config{}, fmt.Errorf("invalid %s %d", httpPortKey, port)
	}

	costs := state.DefaultTableCosts
	if v.IsSet(tableCostsKey) {
		if err := v.UnmarshalKey(tableCostsKey, &costs); err != nil {
			return config{}, fmt.Errorf("couldn't parse %s: %w", tableCostsKey, err)
		}
	}

	return config{
		HTTPHost:        v.GetString(httpHostKey),
		HTTPPort:        uint16(port),
		LogLevel:        lvl,
		DBDir:           v.GetString(dbDirKey),
		ModuleCacheSize: v.GetInt(moduleCacheSizeKey),
		ShutdownTimeout: v.GetDuration(shutdownTimeoutKey),
		TableCosts:      costs,
		Service: service.Config{
			GasBudget: v.GetUint64(gasBudgetKey),
		},
	}, nil
}
