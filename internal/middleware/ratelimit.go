package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// idleLimiterTTL is how long a client's limiter survives without requests.
	idleLimiterTTL = 10 * time.Minute
	pruneInterval  = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	clock   clock.Clock

	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

func NewRateLimiter(perSecond float64, burst int, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clock:   clk,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the routine that forgets idle clients.
func (rl *RateLimiter) Start() {
	rl.startMu.Lock()
	defer rl.startMu.Unlock()

	if rl.started {
		return
	}
	select {
	case <-rl.stop:
		return
	default:
	}
	rl.started = true
	go rl.pruneRoutine(rl.clock.Ticker(pruneInterval))
}

func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })

	rl.startMu.Lock()
	started := rl.started
	rl.startMu.Unlock()
	if started {
		<-rl.done
	}
}

func (rl *RateLimiter) pruneRoutine(ticker *clock.Ticker) {
	defer close(rl.done)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) WithRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}
		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
