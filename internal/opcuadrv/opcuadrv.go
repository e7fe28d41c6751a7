// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opcuadrv implements the OPC-UA driver: push-based data-change
// subscriptions (no block reads) with node-id routed callbacks, built on
// gopcua/opcua's monitor.NodeMonitor.
package opcuadrv

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/monitor"
	"github.com/gopcua/opcua/ua"

	"github.com/scadalite/engine/internal/driver"
	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Config describes how to reach one OPC-UA server.
type Config struct {
	Key      string
	Endpoint string // opc.tcp://host:port/
	Interval time.Duration
	Policy   string // security policy URI, "" for None
}

type pendingTag struct {
	tag  *tagstore.Tag
	path string
}

// PLC is an OPC-UA-backed driver.Driver. Unlike the Modbus driver it
// issues no block reads: the server pushes data changes through one
// shared subscription, and Read is a no-op driverbus still calls on
// schedule so failure bookkeeping stays uniform across drivers.
type PLC struct {
	*driver.PLC
	cfg Config

	mu      sync.Mutex
	client  *opcua.Client
	nodeMon *monitor.NodeMonitor
	sub     *monitor.Subscription
	cancel  context.CancelFunc

	pendingMu   sync.Mutex
	pendingTags []pendingTag

	idxMu      sync.RWMutex
	byNodeID   map[string]*tagstore.Tag
	typeID     map[string]ua.TypeID
	nodeByPath map[string]*ua.NodeID
}

// New constructs a disconnected OPC-UA PLC driver.
func New(cfg Config) *PLC {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &PLC{
		cfg:        cfg,
		PLC:        driver.NewPLC(cfg.Key, cfg.Interval, 3),
		byNodeID:   make(map[string]*tagstore.Tag),
		typeID:     make(map[string]ua.TypeID),
		nodeByPath: make(map[string]*ua.NodeID),
	}
}

// RegisterTag declares a tag backed by the node reached by path, a
// backslash-separated sequence of "ns:BrowseName" components rooted at
// the Objects folder. Resolution to an actual ua.NodeID and subscription
// happen at Connect time.
func (p *PLC) RegisterTag(mem *tagstore.Memory, key, path, description string) *tagstore.Tag {
	t := mem.Create(key, description, path)
	t.SetWriter(p.writer(path))

	p.pendingMu.Lock()
	p.pendingTags = append(p.pendingTags, pendingTag{tag: t, path: path})
	p.pendingMu.Unlock()
	return t
}

// Connect opens the session, resolves every registered tag's browse path
// to a node id, and opens one shared data-change subscription covering
// all of them. Idempotent while already connected.
func (p *PLC) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Connected() {
		return nil
	}

	opts := []opcua.Option{opcua.SecurityMode(ua.MessageSecurityModeNone)}
	if p.cfg.Policy != "" {
		opts = []opcua.Option{opcua.SecurityPolicy(p.cfg.Policy)}
	}

	c, err := opcua.NewClient(p.cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("opcua %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("opcua %s: connect %s: %w", p.cfg.Key, p.cfg.Endpoint, scadaerr.ErrTransport)
	}

	nm, err := monitor.NewNodeMonitor(c)
	if err != nil {
		_ = c.Close(ctx)
		return fmt.Errorf("opcua %s: node monitor: %w", p.cfg.Key, scadaerr.ErrProtocol)
	}

	p.pendingMu.Lock()
	pending := p.pendingTags
	p.pendingMu.Unlock()

	nodeIDs := make([]string, 0, len(pending))
	p.idxMu.Lock()
	for _, pt := range pending {
		nid, err := resolvePath(ctx, c, pt.path)
		if err != nil {
			log.Warnf("opcua %s: resolve %q: %s", p.cfg.Key, pt.path, err.Error())
			continue
		}
		dt, err := browseDataType(ctx, c, nid)
		if err != nil {
			log.Warnf("opcua %s: data type for %q: %s", p.cfg.Key, pt.path, err.Error())
		}
		id := nid.String()
		p.byNodeID[id] = pt.tag
		p.typeID[id] = dt
		p.nodeByPath[pt.path] = nid
		nodeIDs = append(nodeIDs, id)
	}
	p.idxMu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	ch := make(chan *monitor.DataChangeMessage, 16)
	sub, err := nm.ChanSubscribe(sctx, &opcua.SubscriptionParameters{Interval: p.cfg.Interval}, ch, nodeIDs...)
	if err != nil {
		cancel()
		_ = c.Close(ctx)
		return fmt.Errorf("opcua %s: subscribe: %w", p.cfg.Key, scadaerr.ErrProtocol)
	}

	p.client, p.nodeMon, p.sub, p.cancel = c, nm, sub, cancel
	go p.pump(sctx, ch)

	p.SetConnected(true)
	log.Infof("opcua %s: connected (%s), %d tags subscribed", p.cfg.Key, p.cfg.Endpoint, len(nodeIDs))
	return nil
}

// pump routes each data-change message to the Tag it backs until ch is
// closed or ctx is cancelled.
func (p *PLC) pump(ctx context.Context, ch <-chan *monitor.DataChangeMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Error != nil {
				if p.RecordFailure() {
					log.Warnf("opcua %s: %d consecutive failures, disconnecting", p.cfg.Key, p.MaxRetries)
					p.Disconnect()
					return
				}
				continue
			}
			p.idxMu.RLock()
			t, found := p.byNodeID[msg.NodeID.String()]
			p.idxMu.RUnlock()
			if !found || msg.Value == nil {
				continue
			}
			t.Update(msg.Value.Value())
			p.ResetFailures()
		}
	}
}

// Read is a no-op: data arrives via subscription push, not polling.
func (p *PLC) Read(ctx context.Context) error { return nil }

// Disconnect tears down the subscription and session.
func (p *PLC) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	if p.sub != nil {
		_ = p.sub.Unsubscribe(context.Background())
	}
	if p.client != nil {
		_ = p.client.Close(context.Background())
	}
	p.client, p.nodeMon, p.sub, p.cancel = nil, nil, nil, nil
	p.SetConnected(false)
}

func pathComponents(path string) []string {
	parts := strings.Split(path, `\`)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
