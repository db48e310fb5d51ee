package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type storedReplay struct {
	print     string
	response  json.RawMessage
	createdAt time.Time
}

type replayRow struct {
	entry *storedReplay
}

func (r replayRow) Scan(dest ...any) error {
	if r.entry == nil {
		return pgx.ErrNoRows
	}
	*dest[0].(*string) = r.entry.print
	*dest[1].(*json.RawMessage) = r.entry.response
	*dest[2].(*time.Time) = r.entry.createdAt
	return nil
}

// replayDB serves the single row Lookup reads and records Exec arguments.
type replayDB struct {
	entry    *storedReplay
	execArgs []any
	affected string
}

func (d *replayDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	d.execArgs = args
	return pgconn.NewCommandTag(d.affected), nil
}

func (d *replayDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (d *replayDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return replayRow{entry: d.entry}
}

func (d *replayDB) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("not supported")
}

func fixedStore(db *replayDB, now time.Time) *IdempotencyStore {
	store := NewIdempotencyStore(db)
	store.now = func() time.Time { return now }
	return store
}

func TestFingerprintSeparatesParts(t *testing.T) {
	if Fingerprint([]byte("payload")) != Fingerprint([]byte("payload")) {
		t.Fatal("expected deterministic fingerprint")
	}
	if Fingerprint([]byte("ab"), []byte("c")) == Fingerprint([]byte("a"), []byte("bc")) {
		t.Fatal("expected part boundaries to matter")
	}
}

func TestIdempotencyLookup(t *testing.T) {
	now := time.Date(2025, 1, 17, 12, 0, 0, 0, time.UTC)
	scope := ReplayScope{ActorID: "u1", Operation: "paychecks.compute", Key: "k1"}
	fp := Fingerprint([]byte(`{"paycheck":{}}`))

	cases := []struct {
		name      string
		entry     *storedReplay
		wantFound bool
		wantErr   error
	}{
		{"miss", nil, false, nil},
		{"hit", &storedReplay{print: fp, response: json.RawMessage(`{"ok":true}`), createdAt: now.Add(-time.Hour)}, true, nil},
		{"other request", &storedReplay{print: "other", createdAt: now.Add(-time.Hour)}, false, ErrIdempotencyConflict},
		{"expired", &storedReplay{print: "other", createdAt: now.Add(-DefaultReplayWindow - time.Minute)}, false, nil},
	}
	for _, tc := range cases {
		store := fixedStore(&replayDB{entry: tc.entry}, now)
		stored, found, err := store.Lookup(context.Background(), scope, fp)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected err %v, got %v", tc.name, tc.wantErr, err)
		}
		if found != tc.wantFound {
			t.Fatalf("%s: expected found=%v", tc.name, tc.wantFound)
		}
		if found && string(stored) != `{"ok":true}` {
			t.Fatalf("%s: unexpected response %s", tc.name, stored)
		}
	}
}

func TestIdempotencyRememberConflict(t *testing.T) {
	now := time.Date(2025, 1, 17, 12, 0, 0, 0, time.UTC)
	scope := ReplayScope{ActorID: "u1", Operation: "paychecks.void", Key: "k1"}

	db := &replayDB{affected: "INSERT 0 1"}
	if err := fixedStore(db, now).Remember(context.Background(), scope, "p1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cutoff := db.execArgs[6].(time.Time); !cutoff.Equal(now.Add(-DefaultReplayWindow)) {
		t.Fatalf("unexpected cutoff %v", cutoff)
	}

	db = &replayDB{affected: "INSERT 0 0"}
	err := fixedStore(db, now).Remember(context.Background(), scope, "p2", json.RawMessage(`{}`))
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestNilIdempotencyStoreIsNoop(t *testing.T) {
	var store *IdempotencyStore
	scope := ReplayScope{ActorID: "u1", Operation: "paychecks.compute", Key: "k1"}
	stored, ok, err := store.Lookup(context.Background(), scope, "h1")
	if err != nil || ok || stored != nil {
		t.Fatalf("expected miss, got %v %v %v", stored, ok, err)
	}
	if err := store.Remember(context.Background(), scope, "h1", []byte(`{}`)); err != nil {
		t.Fatalf("expected nil remember error, got %v", err)
	}
	if n, err := store.Purge(context.Background()); n != 0 || err != nil {
		t.Fatalf("expected empty purge, got %d %v", n, err)
	}
}

func TestIdempotencyKeyLength(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	if key, err := IdempotencyKey(req); key != "" || err != nil {
		t.Fatalf("expected no key, got %q %v", key, err)
	}
	req.Header.Set("Idempotency-Key", strings.Repeat("k", maxIdempotencyKeyLen+1))
	if _, err := IdempotencyKey(req); !errors.Is(err, ErrIdempotencyKey) {
		t.Fatalf("expected key error, got %v", err)
	}
}
