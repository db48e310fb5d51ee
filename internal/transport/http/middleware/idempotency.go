package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"payengine/internal/platform/querier"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 255

	// DefaultReplayWindow bounds how long a stored response is replayed.
	// After it lapses the key may be reused for a different request.
	DefaultReplayWindow = 24 * time.Hour
)

var (
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
	ErrIdempotencyKey      = errors.New("idempotency key too long")
)

// ReplayScope identifies one remembered mutation: the same key sent by two
// actors, or to compute and to void, never collides.
type ReplayScope struct {
	ActorID   string
	Operation string
	Key       string
}

// IdempotencyKey reads the caller's Idempotency-Key header. An absent header
// yields "" and no replay protection.
func IdempotencyKey(r *http.Request) (string, error) {
	key := r.Header.Get(headerIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrIdempotencyKey, len(key), maxIdempotencyKeyLen)
	}
	return key, nil
}

// Fingerprint hashes the parts that make two requests "the same". Each part
// is length-prefixed so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IdempotencyStore keeps the response of compute and void requests in
// idempotency_keys so a retried request replays instead of recomputing.
type IdempotencyStore struct {
	db     querier.Querier
	window time.Duration
	now    func() time.Time
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db, window: DefaultReplayWindow, now: time.Now}
}

// Lookup returns the stored response for scope. A stored entry with another
// fingerprint inside the replay window is ErrIdempotencyConflict.
func (s *IdempotencyStore) Lookup(ctx context.Context, scope ReplayScope, fingerprint string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil || scope.Key == "" {
		return nil, false, nil
	}
	var (
		storedPrint string
		stored      json.RawMessage
		createdAt   time.Time
	)
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json, created_at
    FROM idempotency_keys
    WHERE user_id = $1 AND endpoint = $2 AND key = $3
  `, scope.ActorID, scope.Operation, scope.Key).Scan(&storedPrint, &stored, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup %s: %w", scope.Operation, err)
	}
	if s.expired(createdAt) {
		return nil, false, nil
	}
	if storedPrint != fingerprint {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Remember stores response under scope. It overwrites an entry with the same
// fingerprint or one whose window has lapsed; anything else is a conflict.
func (s *IdempotencyStore) Remember(ctx context.Context, scope ReplayScope, fingerprint string, response json.RawMessage) error {
	if s == nil || s.db == nil || scope.Key == "" {
		return nil
	}
	now := s.now().UTC()
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, endpoint, key, request_hash, response_json, created_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash,
                  response_json = EXCLUDED.response_json,
                  created_at = EXCLUDED.created_at
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at < $7
  `, scope.ActorID, scope.Operation, scope.Key, fingerprint, response, now, now.Add(-s.window))
	if err != nil {
		return fmt.Errorf("idempotency remember %s: %w", scope.Operation, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Purge deletes entries older than the replay window and reports how many
// went.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("idempotency purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *IdempotencyStore) expired(createdAt time.Time) bool {
	return s.now().Sub(createdAt) > s.window
}
