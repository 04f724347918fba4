package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	drepo "SignalSim/internal/domain/repository"
)

const closedFrame = `{"stream":"btcusdt@kline_1h","data":{"e":"kline","E":1704070800000,"s":"BTCUSDT",
"k":{"t":1704067200000,"T":1704070799999,"s":"BTCUSDT","i":"1h","o":"42000.5","c":"42100","h":"42200","l":"41900","v":"12.5","x":true}}}`

// fullFrame carries every key Binance sends, including the upper-case
// twins of e, t, l, v and q.
const fullFrame = `{"stream":"ethusdt@kline_1h","data":{"e":"kline","E":1704074400123,"s":"ETHUSDT",
"k":{"t":1704070800000,"T":1704074399999,"s":"ETHUSDT","i":"1h","f":100,"L":200,"o":"2250.10","c":"2260.00",
"h":"2270.50","l":"2240.00","v":"1500.25","n":101,"x":true,"q":"3390000.5","V":"700.5","Q":"1580000.1","B":"0"}}}`

const openFrame = `{"stream":"btcusdt@kline_1h","data":{"e":"kline","s":"BTCUSDT",
"k":{"t":1704070800000,"i":"1h","o":"42100","c":"42110","h":"42120","l":"42090","v":"1","x":false}}}`

func TestStreamURL(t *testing.T) {
	got := StreamURL("wss://stream.binance.com:9443", []string{"BTCUSDT", "ETHUSDT"}, drepo.Interval15m)
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@kline_15m/ethusdt@kline_15m"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if got := StreamURL("ws://x/stream", []string{"A"}, drepo.Interval1h); got != "ws://x/stream?streams=a@kline_1h" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestParseKline(t *testing.T) {
	c, ok, err := ParseKline([]byte(closedFrame))
	if err != nil || !ok {
		t.Fatalf("closed frame: ok=%v err=%v", ok, err)
	}
	if c.Symbol != "BTCUSDT" || c.Open != 42000.5 || c.Close != 42100 || c.Volume != 12.5 {
		t.Fatalf("unexpected candle %+v", c)
	}
	if !c.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", c.Timestamp)
	}

	if _, ok, err := ParseKline([]byte(openFrame)); ok || err != nil {
		t.Fatalf("open bar should be skipped, ok=%v err=%v", ok, err)
	}
	if _, _, err := ParseKline([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
	bad := strings.Replace(closedFrame, `"c":"42100"`, `"c":"abc"`, 1)
	if _, _, err := ParseKline([]byte(bad)); err == nil {
		t.Fatal("expected number parse error")
	}
}

func TestParseKlineFullFrame(t *testing.T) {
	c, ok, err := ParseKline([]byte(fullFrame))
	if err != nil || !ok {
		t.Fatalf("full frame: ok=%v err=%v", ok, err)
	}
	if !c.Timestamp.Equal(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v, want bar open", c.Timestamp)
	}
	if c.Symbol != "ETHUSDT" || c.Open != 2250.10 || c.High != 2270.50 || c.Low != 2240 || c.Close != 2260 {
		t.Fatalf("unexpected prices %+v", c)
	}
	if c.Volume != 1500.25 {
		t.Fatalf("volume = %v, want base volume not taker volume", c.Volume)
	}
}

func TestStreamReadsClosedCandles(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("streams") != "btcusdt@kline_1h" {
			http.Error(w, "bad streams", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range []string{openFrame, closedFrame} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ws := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := New(ws, []string{"BTCUSDT"}, drepo.Interval1h, WithPingInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	if err := s.Subscribe(ctx); err != nil || !s.IsConnected() {
		t.Fatalf("Subscribe: %v connected=%v", err, s.IsConnected())
	}

	candles, _ := s.Read(ctx)
	select {
	case c := <-candles:
		if c.Close != 42100 {
			t.Fatalf("unexpected candle %+v", c)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for candle")
	}
}

func TestConnectWithoutSymbols(t *testing.T) {
	s := New("ws://127.0.0.1:1", nil, drepo.Interval1h)
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if err := s.Subscribe(context.Background()); err == nil {
		t.Fatal("expected not connected error")
	}
}
