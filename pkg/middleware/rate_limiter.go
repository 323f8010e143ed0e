package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"SafeYatra/pkg/cache"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateOff in Routes exempts a route from limiting.
const RateOff = "off"

// RateLimiterConfig 限流配置
//
// Rate is the default budget, e.g. "300-M". Routes overrides it per route;
// keys are "METHOD /full/path" or "/full/path" and the method-qualified key
// wins. A route with its own rate keeps its own counter.
// TrustedCIDRs bypass the limiter, SkipPaths are prefix matched.
type RateLimiterConfig struct {
	Rate         string            `json:"rate"`
	Routes       map[string]string `json:"routes"`
	Identifier   string            `json:"identifier"` // ip|ip+route
	TrustedCIDRs []string          `json:"trusted_cidrs"`
	SkipPaths    []string          `json:"skip_paths"`
	AddHeaders   bool              `json:"add_headers"`
}

// MetricsObserver 指标上报接口
type MetricsObserver interface {
	OnAllow(route string, key string)
	OnDeny(route string, key string)
}

// PrometheusObserver 基于 Prometheus 的实现
type PrometheusObserver struct {
	allow *prometheus.CounterVec
	deny  *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	f := promauto.With(reg)
	return &PrometheusObserver{
		allow: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_allow_total",
			Help: "Allowed requests by rate limiter",
		}, []string{"route"}),
		deny: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_deny_total",
			Help: "Denied requests by rate limiter",
		}, []string{"route"}),
	}
}

func (p *PrometheusObserver) OnAllow(route, key string) { p.allow.WithLabelValues(route).Inc() }
func (p *PrometheusObserver) OnDeny(route, key string)  { p.deny.WithLabelValues(route).Inc() }

// NewLimiterStore shares counters through redis when the app cache is redis
// backed and keeps them in memory otherwise.
func NewLimiterStore(c cache.Cache) (limiter.Store, error) {
	if client, ok := cache.RedisClient(c); ok {
		return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   "safeyatra:ratelimit",
			MaxRetry: 3,
		})
	}
	return memory.NewStore(), nil
}

// RateLimiter keeps one ulule limiter per distinct rate over a shared store.
type RateLimiter struct {
	cfg      RateLimiterConfig
	store    limiter.Store
	trusted  []*net.IPNet
	observer MetricsObserver

	mu       sync.Mutex
	limiters map[string]*limiter.Limiter
}

func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	if cfg.Rate == "" {
		cfg.Rate = "300-M"
	}
	l := &RateLimiter{
		cfg:      cfg,
		store:    store,
		limiters: make(map[string]*limiter.Limiter),
	}
	for _, c := range cfg.TrustedCIDRs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			logger.Warn("ignoring trusted cidr", zap.String("cidr", c), zap.Error(err))
			continue
		}
		l.trusted = append(l.trusted, ipnet)
	}
	return l
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.observer = observer
	return l
}

// Middleware 返回 Gin 中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if l.skipped(route) {
			c.Next()
			return
		}
		ip := clientIPFromRequest(c)
		if ipListed(ip, l.trusted) {
			c.Next()
			return
		}

		rate, own := l.rateFor(c.Request.Method, route)
		if rate == RateOff {
			c.Next()
			return
		}
		key := "ip:" + ip
		if own || l.cfg.Identifier == "ip+route" {
			key = "iprt:" + ip + ":" + c.Request.Method + ":" + route
		}

		lctx, err := l.limiter(rate).Get(c, key)
		if err != nil {
			// fail open
			logger.Warn("rate limiter store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if l.cfg.AddHeaders {
			setStandardHeaders(c, lctx)
		}
		if lctx.Reached {
			setRetryAfter(c, time.Until(time.Unix(lctx.Reset, 0)))
			if l.observer != nil {
				l.observer.OnDeny(route, key)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Body{
				Success: false,
				Error:   "Too Many Requests",
				Code:    "RATE_LIMITED",
			})
			return
		}
		if l.observer != nil {
			l.observer.OnAllow(route, key)
		}
		c.Next()
	}
}

func (l *RateLimiter) skipped(route string) bool {
	for _, pref := range l.cfg.SkipPaths {
		if pref != "" && strings.HasPrefix(route, pref) {
			return true
		}
	}
	return false
}

// rateFor reports the rate for a request and whether it came from Routes.
func (l *RateLimiter) rateFor(method, route string) (string, bool) {
	if r, ok := l.cfg.Routes[method+" "+route]; ok && r != "" {
		return r, true
	}
	if r, ok := l.cfg.Routes[route]; ok && r != "" {
		return r, true
	}
	return l.cfg.Rate, false
}

func (l *RateLimiter) limiter(rateStr string) *limiter.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[rateStr]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		logger.Warn("invalid rate, using 10-S", zap.String("rate", rateStr), zap.Error(err))
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim := limiter.New(l.store, r)
	l.limiters[rateStr] = lim
	return lim
}

func clientIPFromRequest(c *gin.Context) string {
	return strings.TrimPrefix(c.ClientIP(), "::ffff:")
}

func ipListed(ip string, nets []*net.IPNet) bool {
	pip := net.ParseIP(ip)
	if pip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(pip) {
			return true
		}
	}
	return false
}

func setStandardHeaders(c *gin.Context, ctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
	resetSec := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
	if resetSec < 0 {
		resetSec = 0
	}
	c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	sec := int(d.Seconds())
	if sec < 0 {
		sec = 0
	}
	c.Header("Retry-After", strconv.Itoa(sec))
}
