package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"SignalSim/internal/domain/models"
)

type execCall struct {
	sql  string
	args []any
}

type recordingDB struct {
	execs []execCall
	row   pgx.Row
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row { return d.row }

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

var (
	placeholder = regexp.MustCompile(`\$(\d+)`)
	paramCast   = regexp.MustCompile(`\$\d+::`)
)

// checkPlaceholders fails when a parameter is referenced twice or the
// argument count does not match the highest placeholder.
func checkPlaceholders(t *testing.T, c execCall) {
	t.Helper()
	seen := map[string]int{}
	for _, m := range placeholder.FindAllStringSubmatch(c.sql, -1) {
		seen[m[1]]++
	}
	for n, count := range seen {
		if count > 1 {
			t.Fatalf("parameter $%s used %d times in %s", n, count, c.sql)
		}
	}
	if len(seen) != len(c.args) {
		t.Fatalf("%d placeholders, %d args in %s", len(seen), len(c.args), c.sql)
	}
}

func TestPGJournalRecordTradeOutcome(t *testing.T) {
	db := &recordingDB{}
	j := NewPGJournal(db)
	ctx := context.Background()

	if err := j.RecordTradeOutcome(ctx, "BTCUSDT", 12.5); err != nil {
		t.Fatalf("win: %v", err)
	}
	if err := j.RecordTradeOutcome(ctx, "BTCUSDT", -3); err != nil {
		t.Fatalf("loss: %v", err)
	}
	if len(db.execs) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(db.execs))
	}
	for _, c := range db.execs {
		checkPlaceholders(t, c)
		if paramCast.MatchString(c.sql) {
			t.Fatalf("parameter cast in %s", c.sql)
		}
	}

	win := db.execs[0].args
	if win[0] != "BTCUSDT" || win[1] != 1 || win[2] != 0 || win[3] != 12.5 || win[4] != 100.0 {
		t.Fatalf("win args = %v", win)
	}
	loss := db.execs[1].args
	if loss[1] != 0 || loss[2] != 1 || loss[3] != -3.0 || loss[4] != 0.0 {
		t.Fatalf("loss args = %v", loss)
	}
}

func TestPGJournalWrites(t *testing.T) {
	db := &recordingDB{}
	j := NewPGJournal(db)
	ctx := context.Background()

	_ = j.LogSignal(ctx, models.SignalLog{Symbol: "BTCUSDT", Signal: models.SignalBuy, Confidence: 0.7, Price: 100, Interval: "1h"})
	_ = j.SetSetting(ctx, models.SettingStopLoss, 0.03)
	_ = j.AddToWatchlist(ctx, "ethusdt")
	_ = j.RemoveFromWatchlist(ctx, "ethusdt")

	if len(db.execs) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(db.execs))
	}
	for _, c := range db.execs {
		checkPlaceholders(t, c)
	}
	if db.execs[2].args[0] != "ETHUSDT" || db.execs[3].args[0] != "ETHUSDT" {
		t.Fatalf("watchlist symbols not upper-cased: %v %v", db.execs[2].args, db.execs[3].args)
	}
}

func TestPGJournalPerformanceMissing(t *testing.T) {
	j := NewPGJournal(&recordingDB{row: errRow{err: pgx.ErrNoRows}})
	st, err := j.GetPerformance(context.Background(), "SOLUSDT")
	if err != nil || st.Symbol != "SOLUSDT" || st.TotalTrades != 0 {
		t.Fatalf("missing stats = %+v, %v", st, err)
	}
}
