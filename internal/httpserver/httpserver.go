// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpserver serves the engine's static UI assets, the
// Prometheus /metrics route, and mounts the websocket gateway on top of
// gorilla/mux and gorilla/handlers.
package httpserver

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scadalite/engine/pkg/log"
)

// Config describes how the HTTP server binds and what it serves.
type Config struct {
	Addr           string // default ":80"
	StaticDir      string // relative_path root for the static file server
	WebsocketMount func(*mux.Router) // internal/wsgateway's mount function
}

// Server wraps the http.Server and its listener lifecycle.
type Server struct {
	cfg Config
	srv *http.Server
}

// New builds the router and server, GET-only on the static root: it
// serves files, it never accepts uploads.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":80"
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if cfg.WebsocketMount != nil {
		cfg.WebsocketMount(r)
	}

	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet)
	}

	r.Use(handlers.CompressHandler)
	logged := handlers.CustomLoggingHandler(logWriter{}, r, func(w io.Writer, params handlers.LogFormatterParams) {
		log.Infof("%s %s (%d, %dB)", params.Request.Method, params.URL.RequestURI(), params.StatusCode, params.Size)
	})

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      logged,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// logWriter discards the line gorilla/handlers writes directly — the
// formatter above routes everything through pkg/log instead.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) { return len(p), nil }

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	log.Infof("httpserver: listening on %s", s.cfg.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
