// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// depositbridged runs the origin-side deposit bridge: the messenger
// and coordinator over a leveldb store, with the read-only bridge API
// served over HTTP.
package main

import (
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/cors"
	"gopkg.in/urfave/cli.v1"

	"github.com/crosslayer/depositbridge/api"
	"github.com/crosslayer/depositbridge/bridgelog"
	"github.com/crosslayer/depositbridge/config"
	"github.com/crosslayer/depositbridge/coordinator"
	"github.com/crosslayer/depositbridge/feeoracle"
	"github.com/crosslayer/depositbridge/messenger"
	"github.com/crosslayer/depositbridge/store"
	"github.com/crosslayer/depositbridge/vault"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "Path to the TOML configuration file",
		Value: "depositbridge.toml",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug",
		Value: 3,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "depositbridged"
	app.Usage = "origin-side deposit bridge daemon"
	app.Flags = []cli.Flag{configFlag, verbosityFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr,
		log.FromLegacyLevel(ctx.GlobalInt(verbosityFlag.Name)), true)
	log.SetDefault(log.NewLogger(handler))

	cfg, err := config.Load(ctx.GlobalString(configFlag.Name))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := store.OpenFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	owner := common.HexToAddress(cfg.Owner)
	coordAddr := common.HexToAddress(cfg.Coordinator)

	msgr, err := messenger.New(db, messenger.Config{
		Owner:              owner,
		SettlementConsumer: common.HexToAddress(cfg.SettlementConsumer),
		MaxProcessingTime:  cfg.MaxProcessingTime(),
		CancelTimeDelta:    cfg.CancelTimeDelta(),
	}, nil)
	if err != nil {
		return err
	}
	defer msgr.Stop()
	if !msgr.IsAuthorized(coordAddr) {
		if err := msgr.Authorize(coordAddr, owner); err != nil {
			return err
		}
	}

	ledger := vault.NewLedger()
	custodian := coordAddr
	coord := coordinator.New(coordinator.Config{
		Owner:         owner,
		Self:          coordAddr,
		DestBridge:    common.HexToAddress(cfg.DestBridge),
		WrappedNative: common.HexToAddress(cfg.WrappedNative),
	}, msgr, feeoracle.NewGasMarketOracle(new(big.Int).SetUint64(cfg.BaseFee)),
		vault.NewLedgerVault(ledger, custodian))
	defer coord.Stop()

	if cfg.Router != "" {
		router := vault.NewLedgerRouter(ledger, common.HexToAddress(cfg.Router), custodian)
		if err := coord.SetRouter(router, owner); err != nil {
			return err
		}
	}
	for _, tm := range cfg.Tokens {
		if err := coord.RegisterTokenMapping(common.HexToAddress(tm.Origin),
			common.HexToAddress(tm.Dest), owner); err != nil {
			return err
		}
	}

	bridgeAPI := api.New(msgr, coord)
	defer bridgeAPI.Close()

	srv := rpc.NewServer()
	defer srv.Stop()
	for _, svc := range bridgeAPI.APIs() {
		if err := srv.RegisterName(svc.Namespace, svc.Service); err != nil {
			return err
		}
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: cors.Default().Handler(srv),
	}
	go func() {
		bridgelog.Info("bridge API listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			bridgelog.Error("http server stopped", "error", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	bridgelog.Info("shutting down")
	return httpSrv.Close()
}
