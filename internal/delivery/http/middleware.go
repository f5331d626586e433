package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/macrolens/nutriresolve/internal/logging"
)

// CORSMiddleware handles CORS for browser and extension clients.
// Only origins listed exactly are allowed to send credentials.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if allowed, exact := matchOrigin(origin, allowedOrigins); allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
			if exact {
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// matchOrigin checks the origin against the allowed list. A trailing '*'
// matches any suffix, so "*" alone allows every non-empty origin. exact is
// true only when an entry without a wildcard matched.
func matchOrigin(origin string, allowedOrigins []string) (allowed, exact bool) {
	if origin == "" {
		return false, false
	}
	for _, entry := range allowedOrigins {
		if origin == entry {
			return true, true
		}
	}
	for _, entry := range allowedOrigins {
		if prefix, ok := strings.CutSuffix(entry, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true, false
		}
	}
	return false, false
}

// LoggerMiddleware logs one line per request through logrus
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := logging.Log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   status,
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("[HTTP] request")
		case status >= http.StatusBadRequest:
			entry.Warn("[HTTP] request")
		default:
			entry.Info("[HTTP] request")
		}
	}
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.Log.WithField("panic", recovered).Error("[HTTP] recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "an unexpected error occurred",
		})
	})
}

// limiterIdleTTL is how long an IP's bucket is kept after its last request.
// It must stay above the one minute a bucket takes to refill.
const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter hands out one token bucket per client IP and forgets idle clients
type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		l.sweep(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// sweep drops clients idle for at least limiterIdleTTL. Callers hold mu.
func (l *ipLimiter) sweep(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= limiterIdleTTL {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware allows perMinute requests per client IP with a
// burst of the same size. perMinute <= 0 disables limiting.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPLimiter(perMinute)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate_limited",
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
