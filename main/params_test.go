// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/state"
)

func TestBuildConfig(t *testing.T) {
	require := require.New(t)

	v := viper.New()
	v.Set(httpHostKey, "0.0.0.0")
	v.Set(httpPortKey, 9000)
	v.Set(logLevelKey, "debug")
	v.Set(gasBudgetKey, 500)
	v.Set(dbDirKey, "/var/lib/resourcevm")
	v.Set(tableCostsKey, map[string]interface{}{"insert": 7, "perByte": 2})

	cfg, err := buildConfig(v)
	require.NoError(err)
	require.Equal("0.0.0.0", cfg.HTTPHost)
	require.EqualValues(9000, cfg.HTTPPort)
	require.Equal(log.LvlDebug, cfg.LogLevel)
	require.EqualValues(500, cfg.Service.GasBudget)
	require.Equal("/var/lib/resourcevm", cfg.DBDir)

	want := state.DefaultTableCosts
	want.Insert = 7
	want.PerByte = 2
	require.Equal(want, cfg.TableCosts)
}

func TestBuildConfigRejectsBadValues(t *testing.T) {
	v := viper.New()
	v.Set(logLevelKey, "loud")
	_, err := buildConfig(v)
	require.Error(t, err)

	v = viper.New()
	v.Set(logLevelKey, "info")
	v.Set(httpPortKey, 70000)
	_, err = buildConfig(v)
	require.Error(t, err)
}
