// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsgateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/tagstore"
)

func newTestServer(t *testing.T) (*httptest.Server, *ensemble.Ensemble) {
	t.Helper()
	e, err := ensemble.New()
	if err != nil {
		t.Fatalf("ensemble.New: %v", err)
	}
	tag := tagstore.NewTag("temp", "boiler temperature", nil)
	if err := e.AddGlobalTag(tag); err != nil {
		t.Fatalf("AddGlobalTag: %v", err)
	}
	tag.Update(int64(42))

	gw := New(e, nil)
	r := mux.NewRouter()
	gw.Mount(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, e
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// rawMsg decodes just enough of a response to dispatch on its action.
type rawMsg struct {
	Action string          `json:"action"`
	Error  string          `json:"error"`
	Tags   json.RawMessage `json:"tags"`
	Alarms [][]any         `json:"alarms"`
}

func readMsg(t *testing.T, conn *websocket.Conn) rawMsg {
	t.Helper()
	var m rawMsg
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestSubscribeSendsCurrentValueThenUpdates(t *testing.T) {
	srv, e := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "tags": []string{"temp"}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	first := readMsg(t, conn)
	if first.Action != "values" {
		t.Fatalf("expected initial values message, got %+v", first)
	}
	var firstTags [][2]string
	if err := json.Unmarshal(first.Tags, &firstTags); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	if len(firstTags) != 1 || firstTags[0][0] != "temp" || firstTags[0][1] != "42" {
		t.Fatalf("expected [[temp 42]], got %v", firstTags)
	}

	tag, _ := e.Tag("temp")
	tag.Update(int64(99))

	second := readMsg(t, conn)
	if second.Action != "values" {
		t.Fatalf("expected pushed values message, got %+v", second)
	}
	var secondTags [][2]string
	if err := json.Unmarshal(second.Tags, &secondTags); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	if len(secondTags) != 1 || secondTags[0][0] != "temp" || secondTags[0][1] != "99" {
		t.Fatalf("expected [[temp 99]], got %v", secondTags)
	}
}

func TestUnknownMessageTypeSendsErrorWithoutClosing(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]any{"action": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp := readMsg(t, conn)
	if resp.Action != "error" || resp.Error == "" {
		t.Fatalf("expected error response, got %+v", resp)
	}

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "tags": []string{"temp"}}); err != nil {
		t.Fatalf("expected connection to remain open after bad message: %v", err)
	}
}

func TestInboundRateLimitRejectsBurst(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	for i := 0; i < inboundRateLimit+5; i++ {
		if err := conn.WriteJSON(map[string]any{"action": "subscribe", "tags": []string{"temp"}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	sawRateLimitError := false
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < inboundRateLimit+5; i++ {
		var resp rawMsg
		if err := conn.ReadJSON(&resp); err != nil {
			break
		}
		if resp.Action == "error" && resp.Error == "rate limit exceeded" {
			sawRateLimitError = true
			break
		}
	}
	if !sawRateLimitError {
		t.Fatal("expected a rate-limit error after bursting past the inbound limit")
	}
}

func TestSubscribeUnknownKeyReturnsError(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "tags": []string{"nope"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp := readMsg(t, conn)
	if resp.Action != "values" {
		t.Fatalf("expected the values batch before the error, got %+v", resp)
	}
	resp = readMsg(t, conn)
	if resp.Action != "error" {
		t.Fatalf("expected error response for unknown tag, got %+v", resp)
	}
}

// TestSubscribeOmitsNullTags round-trips the literal scenario from the
// gateway's documented contract: subscribing to two tags where one is
// unset (null) yields a values batch containing only the set tag.
func TestSubscribeOmitsNullTags(t *testing.T) {
	e, err := ensemble.New()
	if err != nil {
		t.Fatalf("ensemble.New: %v", err)
	}
	a := tagstore.NewTag("a", "", nil)
	b := tagstore.NewTag("b", "", nil)
	if err := e.AddGlobalTag(a); err != nil {
		t.Fatalf("AddGlobalTag a: %v", err)
	}
	if err := e.AddGlobalTag(b); err != nil {
		t.Fatalf("AddGlobalTag b: %v", err)
	}
	a.Update(true)
	// b is left unset (nil).

	gw := New(e, nil)
	r := mux.NewRouter()
	gw.Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	conn := dial(t, srv)

	raw := `{"action":"subscribe","tags":["a","b"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	resp := readMsg(t, conn)
	if resp.Action != "values" {
		t.Fatalf("expected values message, got %+v", resp)
	}
	var tags [][2]string
	if err := json.Unmarshal(resp.Tags, &tags); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	if len(tags) != 1 || tags[0][0] != "a" || tags[0][1] != "True" {
		t.Fatalf(`expected tags:[["a","True"]], got %v`, tags)
	}
}
