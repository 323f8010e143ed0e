package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"SafeYatra/pkg/cache"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ReplayedHeader marks a response served from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 成功响应的保留窗口
	Store      cache.Cache   // shared with the rest of the app, redis in multi-node setups
	// HashBody derives a key from caller and body when the header is absent.
	HashBody bool
}

// storedResponse is kept as a JSON string so every cache backend hands it
// back unchanged.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware lets one request per key through. A successful
// response is stored for TTL and replayed to later requests with the same
// key; a failed one releases the key so the caller can retry. A duplicate
// that arrives while the first request is still running gets 409.
// Keys are scoped to the caller.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			if !cfg.HashBody {
				c.Next()
				return
			}
			// 兜底以请求体生成哈希作为幂等键
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(b))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		full := "idem:" + currentUserID(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		ok, err := cfg.Store.SetNX(ctx, full, time.Now().Unix(), cfg.TTL)
		if err != nil {
			// fail open
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			if prev, found := loadResponse(c, cfg.Store, full); found {
				c.Header(ReplayedHeader, "true")
				c.Data(prev.Status, prev.ContentType, []byte(prev.Body))
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, response.Body{
				Success: false,
				Error:   "request with this key is still in progress",
				Code:    "DUPLICATE_REQUEST",
			})
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()
		c.Writer = rec.ResponseWriter

		status := rec.Status()
		if status >= http.StatusBadRequest {
			if err := cfg.Store.Delete(ctx, full); err != nil {
				logger.Warn("idempotency key release failed", zap.String("key", key), zap.Error(err))
			}
			return
		}
		raw, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.String(),
		})
		if err == nil {
			err = cfg.Store.Set(ctx, full, string(raw), cfg.TTL)
		}
		if err != nil {
			logger.Warn("idempotency response not stored", zap.String("key", key), zap.Error(err))
		}
	}
}

func loadResponse(c *gin.Context, store cache.Cache, key string) (storedResponse, bool) {
	var out storedResponse
	v, ok := store.Get(c.Request.Context(), key)
	if !ok {
		return out, false
	}
	s, ok := v.(string)
	if !ok {
		// in-flight marker
		return out, false
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out.Status == 0 {
		return out, false
	}
	return out, true
}

func currentUserID(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.UserID
	}
	return c.GetString("user_id")
}
