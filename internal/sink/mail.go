// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/scadaerr"
)

// Mail sends one message per alarm edge via SMTP, built directly on
// net/smtp (see DESIGN.md for why no third-party mail client is wired
// in here).
type Mail struct {
	Host     string // host:port
	From     string
	To       []string
	Auth     smtp.Auth
	Subject  string // defaults to "[alarm] {i.key}"
	Template string // defaults to "{i.key} ({i.description}) -> {i.value}"
}

// NewMail constructs a Mail sink with plain auth if user/password are set.
func NewMail(host, from string, to []string, user, password string) *Mail {
	m := &Mail{
		Host:     host,
		From:     from,
		To:       to,
		Subject:  "[alarm] {i.key}",
		Template: "{i.key} ({i.description}) -> {i.value}",
	}
	if user != "" {
		hostname := host
		if i := strings.IndexByte(host, ':'); i >= 0 {
			hostname = host[:i]
		}
		m.Auth = smtp.PlainAuth("", user, password, hostname)
	}
	return m
}

func (m *Mail) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	subject := transform(m.Subject, e, value)
	body := transform(m.Template, e, value)
	if len(info) > 0 {
		body += "\n" + formatInfo(info)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, strings.Join(m.To, ", "), subject, body)

	if err := smtp.SendMail(m.Host, m.Auth, m.From, m.To, []byte(msg)); err != nil {
		return fmt.Errorf("sink: smtp send: %w", scadaerr.ErrTransport)
	}
	return nil
}
