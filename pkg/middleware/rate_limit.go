package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "rentsplit/pkg/errors"
	httputil "rentsplit/pkg/http"
	"rentsplit/pkg/logger"
)

const ParticipantHeader = "X-Participant-ID"

// ParticipantExtractor returns the rate limit key of a request, "" to skip.
type ParticipantExtractor func(r *http.Request) string

// ParticipantRateLimiter is a sliding-window limiter keyed per participant.
type ParticipantRateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor ParticipantExtractor
	log       *logger.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

func NewParticipantRateLimiter(limit int, window time.Duration, extractor ParticipantExtractor, log *logger.Logger) *ParticipantRateLimiter {
	if extractor == nil {
		extractor = DefaultParticipantExtractor
	}
	limiter := &ParticipantRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}

	go limiter.cleanup()

	return limiter
}

func (rl *ParticipantRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ParticipantRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *ParticipantRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func ParticipantRateLimit(limiter *ParticipantRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.extractor(r)
			if !limiter.Allow(key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"participant", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", retryAfterSeconds(limiter.window))
				_ = httputil.WriteError(w, apperrors.RateLimited())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// DefaultParticipantExtractor keys by participant header, falling back to
// the client address so anonymous callers are still limited.
func DefaultParticipantExtractor(r *http.Request) string {
	if id := r.Header.Get(ParticipantHeader); id != "" {
		return "participant:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
