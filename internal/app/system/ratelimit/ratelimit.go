// internal/app/system/ratelimit/ratelimit.go
// Package ratelimit throttles credential endpoints (sign-in and password
// reset requests) per client IP and per email address.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts hits per key in fixed windows. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New allows limit hits per key in each window of length duration.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep(duration * 2)
	return l
}

// SetClock replaces the time source. For tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[key]
	if w == nil || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns the hits left for key in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || l.now().After(w.expiresAt) {
		return l.limit
	}
	return max(l.limit-w.count, 0)
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CredentialLimiter limits attempts against one credential endpoint by IP
// and by email.
type CredentialLimiter struct {
	ipLimiter    *Limiter
	emailLimiter *Limiter
	action       string
}

// NewLoginLimiter allows 10 sign-in attempts per IP per minute and 5 per
// email per 5 minutes.
func NewLoginLimiter() *CredentialLimiter {
	return NewCredentialLimiter("login", 10, time.Minute, 5, 5*time.Minute)
}

// NewResetLimiter allows 5 reset requests per IP per 10 minutes and 3 per
// email per hour.
func NewResetLimiter() *CredentialLimiter {
	return NewCredentialLimiter("password reset", 5, 10*time.Minute, 3, time.Hour)
}

// NewCredentialLimiter builds a limiter with explicit windows. action names
// the endpoint in the messages Check returns.
func NewCredentialLimiter(action string, ipLimit int, ipDuration time.Duration, emailLimit int, emailDuration time.Duration) *CredentialLimiter {
	return &CredentialLimiter{
		ipLimiter:    New(ipLimit, ipDuration),
		emailLimiter: New(emailLimit, emailDuration),
		action:       action,
	}
}

// Check reports whether the attempt may proceed and, if not, the message
// to show.
func (cl *CredentialLimiter) Check(r *http.Request, email string) (bool, string) {
	if !cl.ipLimiter.Allow(ClientIP(r)) {
		return false, "Too many " + cl.action + " attempts. Please wait a minute before trying again."
	}
	if key := emailKey(email); key != "" {
		if !cl.emailLimiter.Allow(key) {
			return false, "Too many " + cl.action + " attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetEmail clears the email window, after a successful sign-in.
func (cl *CredentialLimiter) ResetEmail(email string) {
	if key := emailKey(email); key != "" {
		cl.emailLimiter.Reset(key)
	}
}

// Close stops both underlying limiters.
func (cl *CredentialLimiter) Close() {
	cl.ipLimiter.Close()
	cl.emailLimiter.Close()
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
