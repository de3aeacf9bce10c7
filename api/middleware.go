package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/domain"
)

const callerKey = "caller_id"

type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

type UserUpserter interface {
	Upsert(ctx context.Context, user *domain.User) error
}

// Authenticator resolves the bearer token to a caller id and records the
// user the first time this process sees them.
type Authenticator struct {
	parser TokenParser
	users  UserUpserter
	log    *zap.Logger
	seen   sync.Map
}

func NewAuthenticator(parser TokenParser, users UserUpserter, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{parser: parser, users: users, log: log}
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parser.Parse(bearerToken(c))
		if err != nil {
			writeError(c, err)
			return
		}
		a.accept(c, claims)
		c.Next()
	}
}

// Optional sets the caller when a valid token is present and lets anonymous
// requests through.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			claims, err := a.parser.Parse(raw)
			if err != nil {
				writeError(c, err)
				return
			}
			a.accept(c, claims)
		}
		c.Next()
	}
}

func (a *Authenticator) accept(c *gin.Context, claims *auth.Claims) {
	c.Set(callerKey, claims.Subject)
	if a.users == nil {
		return
	}
	if _, loaded := a.seen.LoadOrStore(claims.Subject, struct{}{}); loaded {
		return
	}
	err := a.users.Upsert(c.Request.Context(), &domain.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email})
	if err != nil {
		a.seen.Delete(claims.Subject)
		a.log.Warn("record user failed", zap.String("user_id", claims.Subject), zap.Error(err))
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func callerID(c *gin.Context) string {
	return c.GetString(callerKey)
}

// limiterIdle is how long an unused client limiter is kept. A limiter idle
// for longer has refilled its burst, so dropping it changes nothing.
const limiterIdle = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(perMinute int, now func() time.Time) *rateLimiterStore {
	return &rateLimiterStore{
		visitors:  make(map[string]*visitor),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		lastSweep: now(),
		now:       now,
	}
}

func (s *rateLimiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterIdle {
		for key, v := range s.visitors {
			if now.Sub(v.lastSeen) >= limiterIdle {
				delete(s.visitors, key)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit allows perMinute requests per client IP. Zero disables it. The
// client IP is gin's, so forwarding headers only count when they come from a
// trusted proxy.
func RateLimit(perMinute int, log *zap.Logger) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	store := newRateLimiterStore(perMinute, time.Now)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip).Allow() {
			log.Warn("rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request. Handler errors are attached with
// c.Error by writeError.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if caller := callerID(c); caller != "" {
			fields = append(fields, zap.String("user_id", caller))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
