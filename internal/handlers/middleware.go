package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
)

// LoggingMiddleware logs the details of each HTTP request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		slog.Info("HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start),
			"ip", clientIP(r),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// Custom ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// RecoverMiddleware turns a panic into a JSON 500. In development the stack
// is included in the response.
func RecoverMiddleware(development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				slog.Error("Recovered from panic", "panic", rec, "path", r.URL.Path,
					"requestId", middleware.GetReqID(r.Context()), "stack", string(stack))

				var details any
				if development {
					details = map[string]string{"panic": fmt.Sprint(rec), "stack": string(stack)}
				}
				handlerutils.WriteErrorJSON(w, http.StatusInternalServerError, servererrors.ErrInternal.Error(), details)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware adds standard security headers
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// the API only serves JSON, PDFs and product images
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// OriginGuard rejects state-changing requests whose Origin, or failing that
// Referer, names a site other than the allowed one. Requests carrying
// neither header are not from a browser and pass.
func OriginGuard(allowedOrigin string) func(http.Handler) http.Handler {
	allowed := originOf(allowedOrigin)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			source := r.Header.Get("Origin")
			if source == "" {
				source = r.Referer()
			}
			if source != "" && allowed != "" && originOf(source) != allowed {
				slog.Warn("Blocked cross-origin request", "origin", source, "path", r.URL.Path, "ip", clientIP(r))
				handlerutils.WriteErrorJSON(w, http.StatusForbidden, servererrors.ErrForbiddenOrigin.Error(), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// originOf reduces a URL to scheme://host[:port].
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// RateLimiter struct to hold state
type RateLimiter struct {
	visitors sync.Map
	window   time.Duration
	limit    int
}

type visitor struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// NewRateLimiter allows limit requests per client IP in each window. The
// cleanup goroutine stops when ctx is done.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	rl := &RateLimiter{
		window: window,
		limit:  limit,
	}
	go rl.cleanup(ctx)
	return rl
}

// cleanup removes old entries to prevent memory leaks
func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.visitors.Range(func(key, value any) bool {
				v := value.(*visitor)
				v.mu.Lock()
				stale := now.Sub(v.lastSeen) > rl.window
				v.mu.Unlock()
				if stale {
					rl.visitors.Delete(key)
				}
				return true
			})
		}
	}
}

// Allow records a request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	value, _ := rl.visitors.LoadOrStore(key, &visitor{windowStart: now})
	v := value.(*visitor)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen = now
	if now.Sub(v.windowStart) >= rl.window {
		v.windowStart = now
		v.count = 0
	}
	if v.count >= rl.limit {
		return false
	}
	v.count++
	return true
}

// Middleware enforces the rate limit
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			handlerutils.WriteErrorJSON(w, http.StatusTooManyRequests, servererrors.ErrTooManyRequests.Error(), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
