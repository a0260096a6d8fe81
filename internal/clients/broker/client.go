// Package broker is a realtime tick-stream client for the Korea Investment
// & Securities (KIS) OpenAPI websocket, backing the CLI's `collect` verb.
// The connection reconnects with backoff on any read failure; KIS speaks
// an approval-key handshake followed by pipe-delimited tick frames.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/logger"
)

const (
	dialTimeout        = 15 * time.Second
	writeWait          = 10 * time.Second
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 2 * time.Minute
)

// TickHandler receives one decoded Tick per real-time print.
type TickHandler func(domain.Tick)

// Config holds KIS websocket connection parameters.
type Config struct {
	URL            string // wss://ops.koreainvestment.com:21000
	ApprovalKey    string // issued by the KIS OAuth approval endpoint
	TRID           string // "H0STCNT0" - real-time contract price
	ReconnectOnEOF bool
}

// Client is a single persistent connection to the KIS tick stream,
// subscribing to a caller-supplied set of tickers and forwarding decoded
// ticks to a handler.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	handler TickHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	stopCh  chan struct{}
	stopped bool
	tickers []string
}

// New creates a broker Client. handler is invoked from the read loop's
// goroutine and must not block.
func New(cfg Config, handler TickHandler, log zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		log:     logger.Component(log, "broker_client"),
		handler: handler,
		stopCh:  make(chan struct{}),
	}
}

// Run dials the stream, subscribes to tickers, and blocks reading frames
// until ctx is cancelled or Stop is called, reconnecting with exponential
// backoff on transport errors.
func (c *Client) Run(ctx context.Context, tickers []string) error {
	c.tickers = tickers

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		if err := c.connectAndSubscribe(ctx); err != nil {
			attempt++
			delay := backoff(attempt)
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("broker connect failed, retrying")
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stopCh:
				return nil
			}
		}

		attempt = 0
		c.readLoop(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}
	}
}

// Stop closes the connection and halts Run's reconnect loop.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) connectAndSubscribe(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	for _, ticker := range c.tickers {
		if err := c.subscribe(ticker); err != nil {
			_ = conn.Close()
			return fmt.Errorf("subscribe %s: %w", ticker, err)
		}
	}

	c.log.Info().Int("tickers", len(c.tickers)).Msg("connected to broker tick stream")
	return nil
}

// subscribeRequest is KIS's registration envelope for a realtime feed.
type subscribeRequest struct {
	Header struct {
		ApprovalKey string `json:"approval_key"`
		CustType    string `json:"custtype"`
		TRType      string `json:"tr_type"`
		ContentType string `json:"content-type"`
	} `json:"header"`
	Body struct {
		Input struct {
			TRID  string `json:"tr_id"`
			TRKey string `json:"tr_key"`
		} `json:"input"`
	} `json:"body"`
}

func (c *Client) subscribe(ticker string) error {
	var req subscribeRequest
	req.Header.ApprovalKey = c.cfg.ApprovalKey
	req.Header.CustType = "P"
	req.Header.TRType = "1"
	req.Header.ContentType = "utf-8"
	req.Body.Input.TRID = c.cfg.TRID
	req.Body.Input.TRKey = ticker

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.log.Warn().Err(err).Msg("broker read failed, will reconnect")
			return
		}

		if err := c.handleFrame(message); err != nil {
			c.log.Debug().Err(err).Msg("ignoring unparseable broker frame")
		}
	}
}

// handleFrame parses one KIS tick frame. Control frames (JSON, used for
// PINGPONG and subscription acks) are ignored; data frames are
// pipe-delimited ("encrypted|tr_id|count|body"), and the body is
// caret-delimited ("ticker^HHMMSS^price^...", volume at index 12).
func (c *Client) handleFrame(message []byte) error {
	text := string(message)
	if strings.HasPrefix(text, "{") {
		return nil // JSON control frame, nothing to decode
	}

	fields := strings.Split(text, "|")
	if len(fields) < 4 {
		return fmt.Errorf("frame too short: %d fields", len(fields))
	}

	body := strings.Split(fields[3], "^")
	const (
		idxTicker = 0
		idxTime   = 1
		idxPrice  = 2
		idxVolume = 12
	)
	if len(body) <= idxVolume {
		return fmt.Errorf("tick body too short: %d fields", len(body))
	}

	price, err := strconv.ParseFloat(body[idxPrice], 64)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	volume, err := strconv.ParseInt(body[idxVolume], 10, 64)
	if err != nil {
		volume = 0
	}

	tick := domain.Tick{
		Ticker:    body[idxTicker],
		Timestamp: parseHHMMSS(body[idxTime]),
		Price:     price,
		Volume:    volume,
	}

	if c.handler != nil {
		c.handler(tick)
	}
	return nil
}

func parseHHMMSS(raw string) time.Time {
	now := time.Now()
	if len(raw) != 6 {
		return now
	}
	h, err1 := strconv.Atoi(raw[0:2])
	m, err2 := strconv.Atoi(raw[2:4])
	s, err3 := strconv.Atoi(raw[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, s, 0, now.Location())
}

func backoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		return maxReconnectDelay
	}
	return time.Duration(delay)
}
