package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SignalSim/internal/domain/models"
	drepo "SignalSim/internal/domain/repository"
	applogger "SignalSim/pkg/logger"
)

// Stream implements MarketStream on the Binance combined kline stream.
// Only closed bars are emitted.
type Stream struct {
	websocketURL   string
	symbols        []string
	interval       drepo.Interval
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	l              *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type Option func(*Stream)

func WithReconnectDelay(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Stream) { s.dialer = d }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Stream) { s.l = l }
}

// New creates a kline stream for symbols at interval.
func New(websocketURL string, symbols []string, interval drepo.Interval, opts ...Option) *Stream {
	s := &Stream{
		websocketURL:   strings.TrimRight(websocketURL, "/"),
		symbols:        symbols,
		interval:       interval,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		dialer:         websocket.DefaultDialer,
		l:              applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamURL builds <base>/stream?streams=btcusdt@kline_1h/ethusdt@kline_1h.
func StreamURL(base string, symbols []string, interval drepo.Interval) string {
	names := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		names = append(names, strings.ToLower(sym)+"@kline_"+string(interval))
	}
	if !strings.HasSuffix(base, "/stream") {
		base += "/stream"
	}
	return base + "?streams=" + strings.Join(names, "/")
}

func (s *Stream) Connect(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("binance connect: no symbols configured")
	}
	u := StreamURL(s.websocketURL, s.symbols, s.interval)
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.l.Info("binance stream connected", applogger.Strings("symbols", s.symbols), applogger.String("interval", string(s.interval)))
	return nil
}

// Subscribe is a no-op: the combined stream URL already names every stream.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("binance stream not connected")
	}
	return nil
}

type klineEnvelope struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

// encoding/json matches keys case-insensitively, so every key of a kline
// frame needs its own field or "E", "T", "L" and "V" land in the wrong ones.
type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		Start          int64  `json:"t"`
		CloseTime      int64  `json:"T"`
		Symbol         string `json:"s"`
		Interval       string `json:"i"`
		FirstTradeID   int64  `json:"f"`
		LastTradeID    int64  `json:"L"`
		Open           string `json:"o"`
		High           string `json:"h"`
		Low            string `json:"l"`
		Close          string `json:"c"`
		Volume         string `json:"v"`
		Trades         int64  `json:"n"`
		Closed         bool   `json:"x"`
		QuoteVolume    string `json:"q"`
		TakerBuyVolume string `json:"V"`
		TakerBuyQuote  string `json:"Q"`
		Ignore         string `json:"B"`
	} `json:"k"`
}

// ParseKline decodes one combined-stream frame. ok is false for frames that
// are not closed klines.
func ParseKline(b []byte) (c models.Candle, ok bool, err error) {
	var env klineEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return c, false, fmt.Errorf("decode kline frame: %w", err)
	}
	ev := env.Data
	if ev.EventType != "kline" || !ev.Kline.Closed {
		return c, false, nil
	}
	vals := [5]float64{}
	for i, raw := range []string{ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close, ev.Kline.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, false, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Timestamp: time.UnixMilli(ev.Kline.Start).UTC(),
		Symbol:    ev.Symbol,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, true, nil
}

// Read streams closed candles and errors. Both channels close when the
// connection fails or ctx is done.
func (s *Stream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 256)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
			}
		}
	}()

	go func() {
		defer close(candles)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("binance conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("binance read: %w", err)
				}
				return
			}
			c, ok, err := ParseKline(b)
			if err != nil {
				s.l.Debug("skipping frame", applogger.Error(err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case candles <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	return candles, errs
}

func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

var _ drepo.MarketStream = (*Stream)(nil)
