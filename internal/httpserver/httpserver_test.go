// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestNewDefaultsAddr(t *testing.T) {
	s := New(Config{})
	if s.cfg.Addr != ":80" {
		t.Fatalf("expected default addr :80, got %q", s.cfg.Addr)
	}
}

func TestMetricsRouteRespondsOK(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStaticDirServesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := New(Config{StaticDir: dir})

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("expected file contents served, got %q", rec.Body.String())
	}
}

func TestWebsocketMountIsInvoked(t *testing.T) {
	called := false
	s := New(Config{WebsocketMount: func(r *mux.Router) {
		called = true
		r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {})
	}})
	_ = s

	if !called {
		t.Fatal("expected WebsocketMount to be invoked during New")
	}
}
