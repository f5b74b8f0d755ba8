// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ava-labs/resourcevm/framework"
	"github.com/ava-labs/resourcevm/runtime"
	"github.com/ava-labs/resourcevm/service"
	"github.com/ava-labs/resourcevm/state"
)

const metricsPath = "/metrics"

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", service.Name, service.Version)
		os.Exit(0)
	}
	cfg, err := buildConfig(v)
	if err != nil {
		fmt.Printf("invalid config: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(cfg.LogLevel, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("daemon stopped with an error", "error", err)
		os.Exit(1)
	}
}

// openDB opens the leveldb database in [dir], or an in memory database when
// [dir] is empty
func openDB(dir string) (database.Database, error) {
	if dir == "" {
		log.Warn("no database directory configured, state will not survive a restart")
		return memdb.New(), nil
	}
	return leveldb.New(dir, nil, logging.NoLog{})
}

func run(ctx context.Context, cfg config) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}

	db, err := openDB(cfg.DBDir)
	if err != nil {
		return fmt.Errorf("couldn't open database: %w", err)
	}
	// closing the state leaves [db] open
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error while closing database", "error", err)
		}
	}()
	st, err := state.NewState(db, cfg.TableCosts, reg)
	if err != nil {
		return fmt.Errorf("couldn't create state: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("error while closing state", "error", err)
		}
	}()

	vm := runtime.New(framework.Natives(), runtime.Config{ModuleCacheSize: cfg.ModuleCacheSize})
	if err := framework.Initialize(vm, st); err != nil {
		return err
	}

	handler, err := service.NewHandler(service.New(vm, st, cfg.Service))
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(service.Endpoint, handler)
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(int(cfg.HTTPPort))),
		Handler: mux,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info("serving", "address", server.Addr, "rpc", service.Endpoint, "metrics", metricsPath)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
