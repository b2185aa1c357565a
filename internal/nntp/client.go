// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package nntp implements the NNTP Client (C2, §4.1): connection
// lifecycle, authentication, group selection, and header/body retrieval
// against an upstream Usenet server. A Client is not shared across
// concurrent operations — each worker in the Group Scheduler owns one.
package nntp

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/nntperr"
)

// Header is one article's metadata, produced by either OVER or the HEAD
// fallback path. Missing fields are zero/empty (§4.1).
type Header struct {
	ArticleNum int64
	Subject    string
	From       string
	Date       string
	MessageID  string
	References string
	Bytes      int64
	Lines      int64
}

// Client is a single NNTP connection plus the retry/rate-limit policy
// around it. The zero value is not usable; construct with New.
type Client struct {
	cfg     config.NNTPConfig
	limiter *rate.Limiter

	conn net.Conn
	tp   *textproto.Conn
}

// New builds a Client for cfg. limiter may be nil, in which case commands
// are not paced (tests, or a zero RateLimitPerSec meaning "unlimited").
func New(cfg config.NNTPConfig, limiter *rate.Limiter) *Client {
	return &Client{cfg: cfg, limiter: limiter}
}

// NewLimiter builds the rate.Limiter an NNTPConfig's RateLimitPerSec
// describes, or nil if unlimited (<= 0).
func NewLimiter(cfg config.NNTPConfig) *rate.Limiter {
	if cfg.RateLimitPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)
}

// Connect dials the configured server, performs the TLS handshake when
// SSL is enabled, reads the greeting banner, and authenticates if
// credentials are configured.
func (c *Client) Connect(ctx context.Context) error {
	port := c.cfg.Port
	if c.cfg.SSL && c.cfg.SSLPort != 0 {
		port = c.cfg.SSLPort
	}
	addr := net.JoinHostPort(c.cfg.Server, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	var conn net.Conn
	var err error
	if c.cfg.SSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: c.cfg.Server}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nntperr.New(nntperr.KindNetwork, fmt.Sprintf("dial %s", addr), err)
	}

	tp := textproto.NewConn(conn)
	code, _, err := tp.ReadCodeLine(200)
	if err != nil {
		// 201 (posting disallowed) is also an acceptable greeting.
		if code != 201 {
			_ = conn.Close()
			return nntperr.New(nntperr.KindProtocol, "read greeting", err)
		}
	}

	c.conn = conn
	c.tp = tp

	if c.cfg.Username != "" {
		if err := c.authenticate(); err != nil {
			_ = c.conn.Close()
			c.conn, c.tp = nil, nil
			return err
		}
	}
	return nil
}

func (c *Client) authenticate() error {
	id, err := c.tp.Cmd("AUTHINFO USER %s", c.cfg.Username)
	if err != nil {
		return nntperr.New(nntperr.KindNetwork, "send AUTHINFO USER", err)
	}
	c.tp.StartResponse(id)
	code, msg, err := c.tp.ReadCodeLine(381)
	c.tp.EndResponse(id)
	if err != nil {
		if code == 281 {
			return nil // server accepted username alone
		}
		return nntperr.New(nntperr.KindAuth, "AUTHINFO USER rejected: "+msg, err)
	}

	id, err = c.tp.Cmd("AUTHINFO PASS %s", c.cfg.Password)
	if err != nil {
		return nntperr.New(nntperr.KindNetwork, "send AUTHINFO PASS", err)
	}
	c.tp.StartResponse(id)
	_, msg, err = c.tp.ReadCodeLine(281)
	c.tp.EndResponse(id)
	if err != nil {
		return nntperr.New(nntperr.KindAuth, "AUTHINFO PASS rejected: "+msg, err)
	}
	return nil
}

// SelectGroup issues GROUP name and returns its article count, first, and
// last article numbers.
func (c *Client) SelectGroup(ctx context.Context, name string) (count, first, last int64, err error) {
	start := time.Now()
	err = c.withRetry(ctx, func() error {
		count, first, last, err = c.selectGroupOnce(name)
		return err
	})
	metrics.RecordNNTPCommand("group", time.Since(start), err)
	return count, first, last, err
}

func (c *Client) selectGroupOnce(name string) (count, first, last int64, err error) {
	if err := c.wait(); err != nil {
		return 0, 0, 0, err
	}
	id, err := c.tp.Cmd("GROUP %s", name)
	if err != nil {
		return 0, 0, 0, nntperr.New(nntperr.KindNetwork, "send GROUP", err)
	}
	c.tp.StartResponse(id)
	defer c.tp.EndResponse(id)

	code, msg, err := c.tp.ReadCodeLine(211)
	if err != nil {
		if code == 411 {
			return 0, 0, 0, nntperr.New(nntperr.KindNotFound, "unknown group "+name, err)
		}
		return 0, 0, 0, nntperr.New(nntperr.KindProtocol, "GROUP failed: "+msg, err)
	}

	fields := strings.Fields(msg)
	if len(fields) < 3 {
		return 0, 0, 0, nntperr.New(nntperr.KindProtocol, "malformed GROUP response: "+msg, nil)
	}
	count, _ = strconv.ParseInt(fields[0], 10, 64)
	first, _ = strconv.ParseInt(fields[1], 10, 64)
	last, _ = strconv.ParseInt(fields[2], 10, 64)
	return count, first, last, nil
}

// OverRange attempts OVER lo-hi and returns the decoded header tuples. On
// any OVER failure it falls back to HEAD per article id, silently
// skipping ids the server cannot produce (§4.1).
func (c *Client) OverRange(ctx context.Context, lo, hi int64) ([]Header, error) {
	start := time.Now()
	var headers []Header
	err := c.withRetry(ctx, func() error {
		h, err := c.overRangeOnce(lo, hi)
		if err != nil {
			h, err = c.headFallback(ctx, lo, hi)
		}
		headers = h
		return err
	})
	metrics.RecordNNTPCommand("over", time.Since(start), err)
	return headers, err
}

func (c *Client) overRangeOnce(lo, hi int64) ([]Header, error) {
	if err := c.wait(); err != nil {
		return nil, err
	}
	id, err := c.tp.Cmd("OVER %d-%d", lo, hi)
	if err != nil {
		return nil, nntperr.New(nntperr.KindNetwork, "send OVER", err)
	}
	c.tp.StartResponse(id)
	defer c.tp.EndResponse(id)

	_, _, err = c.tp.ReadCodeLine(224)
	if err != nil {
		return nil, nntperr.New(nntperr.KindProtocol, "OVER not supported", err)
	}

	lines, err := c.tp.ReadDotLines()
	if err != nil {
		return nil, nntperr.New(nntperr.KindProtocol, "read OVER body", err)
	}

	headers := make([]Header, 0, len(lines))
	for _, line := range lines {
		h, ok := parseOverLine(line)
		if ok {
			headers = append(headers, h)
		}
	}
	return headers, nil
}

// parseOverLine decodes one tab-separated OVER line:
// num\tsubject\tfrom\tdate\tmessage-id\treferences\tbytes\tlines
func parseOverLine(line string) (Header, bool) {
	f := strings.Split(line, "\t")
	if len(f) < 1 {
		return Header{}, false
	}
	num, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return Header{}, false
	}
	h := Header{ArticleNum: num}
	if len(f) > 1 {
		h.Subject = scrub(f[1])
	}
	if len(f) > 2 {
		h.From = scrub(f[2])
	}
	if len(f) > 3 {
		h.Date = scrub(f[3])
	}
	if len(f) > 4 {
		h.MessageID = scrub(f[4])
	}
	if len(f) > 5 {
		h.References = scrub(f[5])
	}
	if len(f) > 6 {
		h.Bytes, _ = strconv.ParseInt(f[6], 10, 64)
	}
	if len(f) > 7 {
		h.Lines, _ = strconv.ParseInt(f[7], 10, 64)
	}
	return h, true
}

// headFallback iterates HEAD <id> for every id in [lo,hi], skipping ids
// the server cannot produce (article expired/cancelled).
func (c *Client) headFallback(ctx context.Context, lo, hi int64) ([]Header, error) {
	var headers []Header
	for id := lo; id <= hi; id++ {
		if ctx.Err() != nil {
			return headers, nntperr.New(nntperr.KindTimeout, "headFallback cancelled", ctx.Err())
		}
		if err := c.wait(); err != nil {
			return headers, err
		}
		h, err := c.headOnce(id)
		if err != nil {
			continue // server cannot produce this id; skip silently
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func (c *Client) headOnce(id int64) (Header, error) {
	cmdID, err := c.tp.Cmd("HEAD %d", id)
	if err != nil {
		return Header{}, nntperr.New(nntperr.KindNetwork, "send HEAD", err)
	}
	c.tp.StartResponse(cmdID)
	defer c.tp.EndResponse(cmdID)

	_, _, err = c.tp.ReadCodeLine(221)
	if err != nil {
		return Header{}, nntperr.New(nntperr.KindNotFound, "HEAD failed", err)
	}
	lines, err := c.tp.ReadDotLines()
	if err != nil {
		return Header{}, nntperr.New(nntperr.KindProtocol, "read HEAD body", err)
	}

	h := Header{ArticleNum: id}
	for _, line := range lines {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = scrub(strings.TrimSpace(val))
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "subject":
			h.Subject = val
		case "from":
			h.From = val
		case "date":
			h.Date = val
		case "message-id":
			h.MessageID = val
		case "references":
			h.References = val
		}
	}
	return h, nil
}

// FetchArticlePrefix returns the article body for idOrMessageID truncated
// at roughly maxBytes, for consumption by the yEnc/archive parsers.
func (c *Client) FetchArticlePrefix(ctx context.Context, idOrMessageID string, maxBytes int) ([]byte, error) {
	start := time.Now()
	out, err := c.fetchArticlePrefix(idOrMessageID, maxBytes)
	metrics.RecordNNTPCommand("article", time.Since(start), err)
	return out, err
}

func (c *Client) fetchArticlePrefix(idOrMessageID string, maxBytes int) ([]byte, error) {
	if err := c.wait(); err != nil {
		return nil, err
	}
	id, err := c.tp.Cmd("BODY %s", idOrMessageID)
	if err != nil {
		return nil, nntperr.New(nntperr.KindNetwork, "send BODY", err)
	}
	c.tp.StartResponse(id)
	defer c.tp.EndResponse(id)

	_, _, err = c.tp.ReadCodeLine(222)
	if err != nil {
		return nil, nntperr.New(nntperr.KindNotFound, "BODY failed for "+idOrMessageID, err)
	}

	r := c.tp.DotReader()
	var out []byte
	buf := make([]byte, 4096)
	br := bufio.NewReader(r)
	for len(out) < maxBytes {
		n, readErr := br.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	if len(out) > maxBytes {
		out = out[:maxBytes]
	}
	return out, nil
}

// Quit sends QUIT and closes the underlying connection, best-effort.
func (c *Client) Quit() {
	if c.tp != nil {
		_, _ = c.tp.Cmd("QUIT")
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.tp = nil, nil
}

// withRetry runs op once; on a Retryable failure it reconnects with a
// fresh connection and runs op exactly one more time (§4.1: "retried once
// with a fresh connection for idempotent calls").
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !nntperr.Retryable(err) {
		return err
	}

	c.Quit()
	if connErr := c.Connect(ctx); connErr != nil {
		return connErr
	}
	return op()
}

func (c *Client) wait() error {
	if c.limiter == nil {
		return nil
	}
	r := c.limiter.Reserve()
	if !r.OK() {
		return nntperr.New(nntperr.KindFatal, "rate limiter cannot satisfy request", nil)
	}
	time.Sleep(r.Delay())
	return nil
}

// scrub decodes s with UTF-8 replacement, scrubbing invalid sequences
// (including stray surrogate code units from misbehaving posters) to "?"
// so downstream text handling never sees malformed UTF-8 (§4.1).
func scrub(s string) string {
	if isValidUTF8(s) {
		return s
	}
	return strings.ToValidUTF8(s, "?")
}

func isValidUTF8(s string) bool {
	return s == strings.ToValidUTF8(s, "")
}
