package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client for write requests.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing rps writes per second per client
// with the given burst. Idle clients are dropped until ctx is done.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
	go rl.cleanupClients(ctx, 10*time.Minute, 30*time.Minute)
	return rl
}

// clientKey prefers the authenticated user over the remote address.
func clientKey(c *gin.Context) string {
	if p, ok := GetPrincipal(c); ok {
		return "user:" + p.ID
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cl, exists := rl.clients[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupClients(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep(idle)
		}
	}
}

func (rl *RateLimiter) sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, cl := range rl.clients {
		if time.Since(cl.lastSeen) > idle {
			delete(rl.clients, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("Rate limiter cleanup removed %d idle clients", removed)
	}
	return removed
}

// Limit rejects writes over the client's budget with 429. Reads pass through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !rl.get(clientKey(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "Rate limit exceeded",
				Message: "Too many requests, please retry shortly",
			})
			return
		}
		c.Next()
	}
}
