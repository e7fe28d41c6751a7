// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nats-io/nats.go"

	"github.com/scadalite/engine/internal/config"
	"github.com/scadalite/engine/internal/dbdriver"
	"github.com/scadalite/engine/internal/historian"
	"github.com/scadalite/engine/internal/httpserver"
	"github.com/scadalite/engine/internal/wsgateway"
	"github.com/scadalite/engine/pkg/log"
	"github.com/scadalite/engine/pkg/runtimeEnv"
)

func main() {
	cliInit()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.Init(flagConfigFile); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ens, reg, err := buildEnsemble(ctx)
	if err != nil {
		log.Fatal(err)
	}

	if err := runImport(ens, reg, config.Keys.TagsFile, config.Keys.AlarmsFile); err != nil {
		log.Fatal(err)
	}
	if flagTagsFile != "" || flagAlarmsFile != "" {
		if err := runImport(ens, reg, flagTagsFile, flagAlarmsFile); err != nil {
			log.Fatal(err)
		}
	}

	var nc *nats.Conn
	if config.Keys.NATS.Address != "" {
		nc, err = nats.Connect(config.Keys.NATS.Address)
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer nc.Close()
	}

	if err := ens.Deploy(ctx); err != nil {
		log.Fatal(err)
	}

	if err := buildAlarmGroups(ens, reg.db, nc); err != nil {
		log.Fatal(err)
	}

	var primaryDB *dbdriver.PLC
	for _, p := range reg.db {
		primaryDB = p
		break
	}

	hist, err := historian.New(ctx, config.Keys.Historian, ens.Index)
	if err != nil {
		log.Fatalf("historian: %v", err)
	}
	go hist.Run(ctx)

	gw := wsgateway.New(ens, primaryDB)
	srv := httpserver.New(httpserver.Config{
		Addr:           config.Keys.Addr,
		StaticDir:      config.Keys.StaticFiles,
		WebsocketMount: gw.Mount,
	})

	if err := runtimeEnv.DropPrivileges(config.Keys.User, config.Keys.Group); err != nil {
		log.Fatalf("error while dropping privileges: %v", err)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("httpserver: %v", err)
		}
	}()
	runtimeEnv.SystemdNotifiy(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")
	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("httpserver shutdown: %v", err)
	}

	cancel()
	if err := ens.Shutdown(); err != nil {
		log.Errorf("ensemble shutdown: %v", err)
	}
	log.Info("graceful shutdown complete")
}
