package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/title-reviews/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// overflowed reports whether the body exceeded the capture limit.
func (cw *captureWriter) overflowed() bool {
	return cw.limit > 0 && cw.size > cw.limit
}

// ResponseCache caches successful reads of one resource namespace in
// Redis.  Every successful write through the same cache bumps the
// namespace generation, which orphans all entries cached before it.
type ResponseCache struct {
	cfg       config.CacheConfig
	rdb       *redis.Client
	namespace string
	logger    *slog.Logger
}

// NewResponseCache returns a cache for namespace, e.g. "categories".  A nil
// client or a disabled config yields a pass-through cache.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, namespace string, logger *slog.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, namespace: namespace, logger: logger}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) generationKey() string {
	return rc.cfg.Prefix + ":" + rc.namespace + ":gen"
}

// cacheKey is stable for a (generation, route, query) triple.
func (rc *ResponseCache) cacheKey(ctx context.Context, c echo.Context) string {
	gen, err := rc.rdb.Get(ctx, rc.generationKey()).Result()
	if err != nil {
		gen = "0"
	}
	r := c.Request()
	sum := sha1.Sum([]byte(strings.Join([]string{r.Method, c.Path(), r.URL.RawQuery}, ":")))
	return fmt.Sprintf("%s:%s:%s:%x", rc.cfg.Prefix, rc.namespace, gen, sum[:])
}

// Invalidate drops every entry in the namespace.
func (rc *ResponseCache) Invalidate(ctx context.Context) error {
	if !rc.enabled() {
		return nil
	}
	return rc.rdb.Incr(ctx, rc.generationKey()).Err()
}

// Middleware serves cached reads and invalidates the namespace after
// successful writes.  Apply it to every route of the resource.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return rc.write(c, next)
			}
			return rc.read(c, next)
		}
	}
}

func (rc *ResponseCache) write(c echo.Context, next echo.HandlerFunc) error {
	if err := next(c); err != nil {
		return err
	}
	if c.Response().Status < http.StatusBadRequest {
		if err := rc.Invalidate(c.Request().Context()); err != nil {
			rc.logger.WarnContext(c.Request().Context(), "cache: invalidation failed", "namespace", rc.namespace, "error", err)
		}
	}
	return nil
}

func (rc *ResponseCache) read(c echo.Context, next echo.HandlerFunc) error {
	ctx := c.Request().Context()
	key := rc.cacheKey(ctx, c)

	if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
		if status, hdr, body, ok := decodePayload(bs); ok {
			for k, vals := range hdr {
				if strings.EqualFold(k, echo.HeaderContentLength) {
					continue
				}
				for _, v := range vals {
					c.Response().Header().Add(k, v)
				}
			}
			c.Response().Header().Set("X-Cache", "HIT")
			c.Response().WriteHeader(status)
			if len(body) > 0 {
				_, _ = c.Response().Write(body)
			}
			return nil
		}
	}

	cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
	c.Response().Writer = cw
	c.Response().Header().Set("X-Cache", "MISS")

	if err := next(c); err != nil {
		return err
	}
	if cw.status != http.StatusOK || cw.overflowed() {
		return nil
	}
	hdr := c.Response().Header().Clone()
	hdr.Del("X-Cache")
	payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
	if err != nil {
		return nil
	}
	if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
		rc.logger.WarnContext(ctx, "cache: store failed", "namespace", rc.namespace, "error", err)
	}
	return nil
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
