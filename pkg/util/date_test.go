package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := map[string]string{
		"rfc3339": "2024-10-10T10:10:10Z",
		"offset":  "2024-10-10T12:10:10+02:00",
		"plain":   "2024-10-10 10:10:10",
		"seconds": strconv.FormatInt(want.Unix(), 10),
		"millis":  strconv.FormatInt(want.UnixMilli(), 10),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseTime(in)
			if !ok {
				t.Fatalf("ParseTime(%q) failed", in)
			}
			if !got.Equal(want) {
				t.Fatalf("ParseTime(%q) = %v, want %v", in, got, want)
			}
		})
	}

	for _, bad := range []string{"", "yesterday", "-5"} {
		if _, ok := ParseTime(bad); ok {
			t.Errorf("ParseTime(%q) succeeded", bad)
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestAlignToInterval(t *testing.T) {
	in := time.Date(2024, 1, 1, 10, 47, 12, 0, time.UTC)
	if got := AlignToInterval(in, 15*time.Minute); !got.Equal(time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC)) {
		t.Fatalf("15m align = %v", got)
	}
	if got := AlignToInterval(in, time.Hour); !got.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("1h align = %v", got)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" btcusdt, ETHUSDT ,,solusdt")
	if len(got) != 3 || got[0] != "BTCUSDT" || got[2] != "SOLUSDT" {
		t.Fatalf("SplitList = %v", got)
	}
}
