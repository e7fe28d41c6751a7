// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wsgateway implements the websocket gateway: clients subscribe
// to tags and alarm groups, push changes, and request trend data, all
// over one gorilla/websocket connection per client.
package wsgateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/scadalite/engine/internal/dbdriver"
	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/metrics"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// tsLayout is the wire format for alarm timestamps, matching the decimal
// rendering tagstore.RenderString uses for datetime tag values.
const tsLayout = "2006-01-02 15:04:05"

// inboundRateLimit bounds how many inbound messages one client connection
// may dispatch per second, so a single misbehaving client can't starve the
// scan loop or other clients by flooding "change"/"set_row" requests.
const inboundRateLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway mounts the websocket endpoint against an Ensemble.
type Gateway struct {
	ens *ensemble.Ensemble
	db  *dbdriver.PLC // optional, only needed to serve "trend" and "set_row"
}

// New builds a Gateway. db may be nil if no database driver is deployed.
func New(ens *ensemble.Ensemble, db *dbdriver.PLC) *Gateway {
	return &Gateway{ens: ens, db: db}
}

// Mount registers the /ws route on r, matching internal/httpserver's
// Config.WebsocketMount hook.
func (g *Gateway) Mount(r *mux.Router) {
	r.HandleFunc("/ws", g.handle)
}

// inbound message shapes, keyed on "action":
//
//	{"action":"subscribe","tags":["a","b"],"alarmgroups":["g1"]}
//	{"action":"change","tag":"a","value":...}
//	{"action":"set_row","date":"...","tags":{"col":val,...}}
//	{"action":"trend","trend":"...","from":0,"to":0,"tags":["a","b"]}
//
// "tags" carries either a []string (subscribe, trend) or a
// map[string]any (set_row), so it is decoded lazily from raw JSON once
// the action is known.
type inbound struct {
	Action      string          `json:"action"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	AlarmGroups []string        `json:"alarmgroups,omitempty"`
	Tag         string          `json:"tag,omitempty"`
	Value       any             `json:"value,omitempty"`
	Date        string          `json:"date,omitempty"`
	Trend       string          `json:"trend,omitempty"`
	From        int64           `json:"from,omitempty"`
	To          int64           `json:"to,omitempty"`
}

// errorMsg is the outbound shape for malformed or failed requests.
type errorMsg struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// valuesMsg pushes current or changed tag values as [key, renderedValue]
// pairs, in the order they were resolved.
type valuesMsg struct {
	Action string      `json:"action"`
	Tags   [][2]string `json:"tags"`
}

// alarmsMsg pushes alarm edges (or, on subscribe, currently-active
// alarms) as [id, timestamp, description, state, group] tuples.
type alarmsMsg struct {
	Action string  `json:"action"`
	Alarms [][]any `json:"alarms"`
}

// trendSeries is one tag's series within a trendMsg response.
type trendSeries struct {
	Label string   `json:"label"`
	Data  [][2]any `json:"data"`
}

type trendMsg struct {
	Action string        `json:"action"`
	Trend  string        `json:"trend"`
	From   int64         `json:"from"`
	To     int64         `json:"to"`
	Tags   []trendSeries `json:"tags"`
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("wsgateway: upgrade: %v", err)
		return
	}

	c := newClient(conn, g)
	metrics.WebsocketClients.Inc()
	defer metrics.WebsocketClients.Dec()
	c.run()
}

// client is one websocket connection, simultaneously a tagstore.Subscriber
// (pushes "values" messages) and an alarm.Output (pushes alarm edges to
// subscribed groups).
type client struct {
	conn    *websocket.Conn
	gw      *Gateway
	limiter *rate.Limiter

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, gw *Gateway) *client {
	return &client{conn: conn, gw: gw, limiter: rate.NewLimiter(rate.Limit(inboundRateLimit), inboundRateLimit)}
}

func (c *client) run() {
	defer c.conn.Close()
	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("wsgateway: read: %v", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.send(errorMsg{Action: "error", Error: "rate limit exceeded"})
			continue
		}

		// Malformed messages are logged and the connection stays open;
		// a bad message must not drop the client.
		if err := c.dispatch(msg); err != nil {
			log.Warnf("wsgateway: %s: %v", msg.Action, err)
			c.send(errorMsg{Action: "error", Error: err.Error()})
		}
	}
}

func (c *client) dispatch(msg inbound) error {
	switch msg.Action {
	case "subscribe":
		var tags []string
		if len(msg.Tags) > 0 {
			if err := json.Unmarshal(msg.Tags, &tags); err != nil {
				return err
			}
		}
		return c.handleSubscribe(tags, msg.AlarmGroups)
	case "change":
		return c.handleChange(msg.Tag, msg.Value)
	case "set_row":
		var values map[string]any
		if len(msg.Tags) > 0 {
			if err := json.Unmarshal(msg.Tags, &values); err != nil {
				return err
			}
		}
		return c.handleSetRow(msg.Date, values)
	case "trend":
		var tags []string
		if len(msg.Tags) > 0 {
			if err := json.Unmarshal(msg.Tags, &tags); err != nil {
				return err
			}
		}
		return c.handleTrend(msg.Trend, msg.From, msg.To, tags)
	default:
		return errUnknownMessageType(msg.Action)
	}
}

// Update implements tagstore.Subscriber: push the tag's rendered value
// whenever it changes. A nil value is dropped rather than pushed as "".
func (c *client) Update(t *tagstore.Tag) {
	if t.Get() == nil {
		return
	}
	c.send(valuesMsg{Action: "values", Tags: [][2]string{{t.Key, tagstore.RenderString(t.Get())}}})
}

// Write implements alarm.Output: push an alarm edge to this client.
func (c *client) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	c.send(alarmsMsg{Action: "alarms", Alarms: [][]any{
		{e.Tag.Key, ts.Format(tsLayout), e.Tag.Description, value, info["alarmgroup"]},
	}})
	return nil
}

func (c *client) send(msg any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Warnf("wsgateway: write: %v", err)
	}
}

func errUnknownMessageType(t string) error {
	return &unknownTypeError{t}
}

type unknownTypeError struct{ t string }

func (e *unknownTypeError) Error() string { return "unknown message action " + e.t }
