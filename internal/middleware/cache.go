package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-ordering/internal/config"
)

// captureWriter forwards the response and keeps up to limit bytes of it.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int64
	over   bool
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.over {
		if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
			w.over = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey hashes the request parts selected by the key strategy together
// with the current generation. The caller's identity is part of every
// strategy except "route" because list results are scoped to the caller's
// restaurant.
func cacheKey(cfg config.CacheConfig, c echo.Context, gen int64) string {
	r := c.Request()
	var parts []string
	switch cfg.KeyStrategy {
	case "route":
		parts = []string{"route", r.URL.Path}
	case "route_query":
		parts = []string{"user", userID(c), "route", r.URL.Path, "q", r.URL.RawQuery}
	case "method_route_query":
		parts = []string{"user", userID(c), "method", r.Method, "route", r.URL.Path, "q", r.URL.RawQuery}
	default: // user_route_query
		parts = []string{"user", userID(c), "route", r.URL.Path, "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%d:%x", cfg.Prefix, gen, sum[:])
}

func generationKey(cfg config.CacheConfig) string { return cfg.Prefix + ":gen" }

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	out = append(out, hdr...)
	return append(out, body...), nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	n := int(binary.BigEndian.Uint32(bs[4:8]))
	if n < 0 || 8+n > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if n > 0 {
		if err := json.Unmarshal(bs[8:8+n], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+n:], true
}

// cacheStore is the part of the Redis client the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// NewRedisCache replays cached 200 responses with their headers. Every
// successful write through the middleware bumps a generation counter that is
// part of each key, so earlier entries are never served again and expire
// after cfg.TTL.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return newCache(cfg, rdb)
}

func newCache(cfg config.CacheConfig, store cacheStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if cfg.Methods[method] {
				return serveCached(cfg, store, next, c)
			}
			if !mutating(method) {
				return next(c)
			}
			if err := next(c); err != nil {
				return err
			}
			if c.Response().Status < http.StatusBadRequest {
				invalidate(cfg, store)
			}
			return nil
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func invalidate(cfg config.CacheConfig, store cacheStore) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.Incr(ctx, generationKey(cfg)).Err(); err != nil {
		log.Warningf("cache invalidate: %v", err)
	}
}

// generation reads the counter. A missing counter is generation 0.
func generation(ctx context.Context, cfg config.CacheConfig, store cacheStore) (int64, bool) {
	gen, err := store.Get(ctx, generationKey(cfg)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	}
	log.Warningf("cache generation: %v", err)
	return 0, false
}

func serveCached(cfg config.CacheConfig, store cacheStore, next echo.HandlerFunc, c echo.Context) error {
	gen, ok := generation(c.Request().Context(), cfg, store)
	if !ok {
		return next(c)
	}
	key := cacheKey(cfg, c, gen)
	res := c.Response()

	if bs, err := store.Get(c.Request().Context(), key).Bytes(); err == nil {
		if status, hdr, body, ok := decodePayload(bs); ok {
			for k, vals := range hdr {
				if strings.EqualFold(k, echo.HeaderContentLength) {
					continue
				}
				for _, v := range vals {
					res.Header().Add(k, v)
				}
			}
			res.Header().Set("X-Cache", "HIT")
			res.WriteHeader(status)
			_, err := res.Write(body)
			return err
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Warningf("cache get %s: %v", key, err)
	}

	cw := &captureWriter{ResponseWriter: res.Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
	res.Writer = cw
	res.Header().Set("X-Cache", "MISS")
	if err := next(c); err != nil {
		return err
	}
	if cw.status != http.StatusOK || cw.over {
		return nil
	}

	hdr := res.Header().Clone()
	hdr.Del("X-Cache")
	payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.Set(ctx, key, payload, cfg.TTL).Err(); err != nil {
		log.Warningf("cache set %s: %v", key, err)
	}
	return nil
}
