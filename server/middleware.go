package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"StudySync/core/errs"
	"StudySync/logger"
	"StudySync/model"

	"github.com/go-chi/httprate"
	"github.com/rs/cors"
)

type contextKey int

const userContextKey contextKey = iota

// UserFromContext 取出认证中间件写入的用户
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("user not found in context")
	}
	return user.ID, nil
}

// AuthMiddleware 校验 Bearer 令牌并把用户放入上下文
func (s *Server) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, r, errs.Unauthorized("Not authorized, no token"))
			return
		}

		user, err := s.accounts.Authenticate(r.Context(), parts[1])
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// rateLimit 登录注册限流，按 IP 与路径计数
func rateLimit(limit int) func(http.HandlerFunc) http.HandlerFunc {
	if limit <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	limiter := httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return limiter(next).ServeHTTP
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler
}

// statusRecorder 记录状态码，保留 Hijack 以支持 WebSocket 升级
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)),
			logger.String("remote", r.RemoteAddr))
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				logger.Error("处理请求时发生 panic",
					logger.Any("panic", rv),
					logger.String("path", r.URL.Path),
					logger.String("stack", string(debug.Stack())))
				writeMessage(w, http.StatusInternalServerError, "Server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
