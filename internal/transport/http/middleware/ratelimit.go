package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"payengine/internal/transport/http/api"
)

// Cost of one request against the mutation budget. A batch records many
// paychecks at once, so it draws more than a single compute or void.
const (
	costCompute = 1
	costVoid    = 1
	costBatch   = 5
)

type RateLimitOption func(*Limiter)

func WithClock(now func() time.Time) RateLimitOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter is a fixed-window counter per key. Expired windows are swept on
// the next window boundary so idle callers do not accumulate.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	keyFn     func(*http.Request) string
	now       func() time.Time
	windows   map[string]*window
	nextSweep time.Time
}

type window struct {
	used  int
	reset time.Time
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func NewLimiter(limit int, per time.Duration, opts ...RateLimitOption) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  per,
		keyFn:   actorOrIPKey,
		now:     time.Now,
		windows: map[string]*window{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Take charges cost units to key. A denied request is still charged.
func (l *Limiter) Take(key string, cost int) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true}
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if now.After(w.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.window)
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(l.window)}
		l.windows[key] = w
	}
	w.used += cost
	return Decision{
		Allowed:   w.used <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-w.used, 0),
		ResetIn:   w.reset.Sub(now),
	}
}

func (l *Limiter) middleware(cost func(*http.Request) int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			units := cost(r)
			if units == 0 {
				next.ServeHTTP(w, r)
				return
			}
			key := l.keyFn(r)
			if key == "" {
				key = ClientIP(r)
			}
			d := l.Take(key, units)
			if d.Limit == 0 {
				next.ServeHTTP(w, r)
				return
			}
			resetSec := ceilSeconds(d.ResetIn)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
				slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", d.Limit)
				api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit charges every request one unit per caller.
func RateLimit(limit int, per time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	return NewLimiter(limit, per, opts...).middleware(func(*http.Request) int { return 1 })
}

// SensitiveMutationRateLimit gives each caller half the base budget for
// requests that record or void paychecks. Reads and previews are free.
func SensitiveMutationRateLimit(baseLimit int, per time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	return NewLimiter(max(baseLimit/2, 1), per, opts...).middleware(mutationCost)
}

func mutationCost(r *http.Request) int {
	if r.Method != http.MethodPost {
		return 0
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/paychecks/compute":
		return costCompute
	case path == "/paychecks/batch":
		return costBatch
	case strings.HasPrefix(path, "/paychecks/") && strings.HasSuffix(path, "/void"):
		return costVoid
	}
	return 0
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.EmployerID + ":" + user.UserID
	}
	return ClientIP(r)
}

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
