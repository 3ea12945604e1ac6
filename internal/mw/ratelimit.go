package mw

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleAfter is how long a client may stay quiet before its limiter is
// forgotten.
const idleAfter = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter stores a rate limiter for each client address.
type IPRateLimiter struct {
	ips map[string]*client
	mu  sync.Mutex
	r   rate.Limit
	b   int
	now func() time.Time
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*client),
		r:   r,
		b:   b,
		now: time.Now,
	}
}

// GetLimiter returns the rate limiter for an address, creating it on first
// use. Limiters idle for longer than idleAfter are dropped on the way.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	cl, exists := i.ips[ip]
	if !exists {
		i.sweep(now)
		cl = &client{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Len returns the number of tracked addresses.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

func (i *IPRateLimiter) sweep(now time.Time) {
	for ip, cl := range i.ips {
		if now.Sub(cl.lastSeen) > idleAfter {
			delete(i.ips, ip)
		}
	}
}

// ClientIP returns the caller's address. When header is set (a reverse proxy
// such as CF-Connecting-IP) its first value wins over the socket address.
func ClientIP(c *gin.Context, header string) string {
	if header != "" {
		if v := c.GetHeader(header); v != "" {
			ip, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(ip)
		}
	}
	return c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int, header string) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(ClientIP(c, header)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
