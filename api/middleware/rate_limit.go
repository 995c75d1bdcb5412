package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	maxRateLimitBody   = 64 << 10
	idleLimiterExpiry  = 10 * time.Minute
	limiterSweepPeriod = time.Minute
)

type windowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	WindowRemaining(ctx context.Context, scope string) (time.Duration, error)
}

// RateLimitPolicy throttles one route by client IP and, for credential
// endpoints, by the email address in the JSON body.
type RateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

func (p RateLimitPolicy) name() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "default"
}

// RateLimit enforces policy against the shared redis window. A per-process
// token bucket per IP sheds bursts before they reach redis.
func RateLimit(policy RateLimitPolicy, store windowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		var local *ipBuckets
		if policy.IPLimit > 0 {
			local = newIPBuckets(rate.Limit(float64(policy.IPLimit)/policy.Window.Seconds()), policy.IPLimit)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			if local != nil {
				if !local.allow(ip) {
					reject(ctx, logg, w, policy, "ip_burst", policy.Window/time.Duration(policy.IPLimit))
					return
				}
				if !checkWindow(ctx, logg, w, store, policy, "ip", ip, policy.IPLimit) {
					return
				}
			}

			if policy.EmailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailFromBody(body); email != "" {
					if !checkWindow(ctx, logg, w, store, policy, "email", hashValue(email), policy.EmailLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkWindow reports whether the request may proceed, writing the response when it may not.
func checkWindow(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store windowStore, policy RateLimitPolicy, dimension, subject string, limit int) bool {
	if subject == "" {
		return true
	}
	scope := "http:" + policy.name() + ":" + dimension + ":" + subject
	allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(limit), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
		return false
	}
	if allowed {
		return true
	}
	wait, err := store.WindowRemaining(ctx, scope)
	if err != nil || wait <= 0 {
		wait = policy.Window
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.name(),
			"dimension": dimension,
			"attempts":  count,
			"limit":     limit,
		}), "rate_limit.blocked")
	}
	reject(ctx, nil, w, policy, dimension, wait)
	return false
}

func reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, dimension string, wait time.Duration) {
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, try again later").
		WithDetails(map[string]any{"policy": policy.name(), "dimension": dimension}).
		WithRetryAfter(wait)
	responses.WriteError(ctx, logg, w, err)
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipBuckets struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*ipBucket
	lastSweep time.Time
	now       func() time.Time
}

func newIPBuckets(limit rate.Limit, burst int) *ipBuckets {
	return &ipBuckets{limit: limit, burst: burst, buckets: map[string]*ipBucket{}, now: time.Now}
}

func (b *ipBuckets) allow(ip string) bool {
	if ip == "" {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) > limiterSweepPeriod {
		for key, bucket := range b.buckets {
			if now.Sub(bucket.lastSeen) > idleLimiterExpiry {
				delete(b.buckets, key)
			}
		}
		b.lastSweep = now
	}

	bucket, ok := b.buckets[ip]
	if !ok {
		bucket = &ipBucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
