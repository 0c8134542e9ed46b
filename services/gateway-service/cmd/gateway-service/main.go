package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vivekvardhan7/homesaloon/libs/auth"
	"github.com/vivekvardhan7/homesaloon/libs/config"
	"github.com/vivekvardhan7/homesaloon/libs/httpx"
	otelx "github.com/vivekvardhan7/homesaloon/libs/otel"
	"github.com/vivekvardhan7/homesaloon/libs/runtime"
	"github.com/vivekvardhan7/homesaloon/libs/upstream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	mux := runtime.NewBaseMuxWithReady()
	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	jwksURL := config.String("JWKS_URL", "")
	jwksTTL, err := strconv.Atoi(config.String("JWKS_CACHE_SECONDS", "300"))
	if err != nil || jwksTTL <= 0 {
		jwksTTL = 300
	}
	registerRoutes(mux, logger, jwtSecret, jwksURL, time.Duration(jwksTTL)*time.Second)

	bodyLimit := int64(1 << 20) // 1MB
	if v, err := strconv.Atoi(config.String("REQUEST_BODY_LIMIT_BYTES", "1048576")); err == nil && v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "10")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	limitPerMinute := 60
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "60")); err == nil && v > 0 {
		limitPerMinute = v
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			ExposedHeaders:   parseList(config.String("CORS_EXPOSED_HEADERS", "X-Request-Id,X-Upstream")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(corsMaxAgeSeconds()) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func corsMaxAgeSeconds() int {
	value := 600
	if v, err := strconv.Atoi(config.String("CORS_MAX_AGE_SECONDS", "600")); err == nil && v > 0 {
		value = v
	}
	return value
}

func registerRoutes(mux *http.ServeMux, logger *slog.Logger, jwtSecret string, jwksURL string, jwksTTL time.Duration) {
	attemptTimeout := 8 * time.Second
	if v, err := strconv.Atoi(config.String("UPSTREAM_TIMEOUT_SECONDS", "8")); err == nil && v > 0 {
		attemptTimeout = time.Duration(v) * time.Second
	}
	// A statically configured service token sits behind the caller's bearer in
	// the probe order; the API key is the last resort for public routes.
	serviceToken := upstream.TokenFunc(func() string {
		return config.String("SERVICE_BEARER_TOKEN", "")
	})

	authClient := upstream.NewClient(upstream.Config{
		Primary:        config.String("AUTH_URL", "http://auth-service:8081"),
		Fallback:       config.String("AUTH_FALLBACK_URL", ""),
		Tokens:         upstream.FirstOf(serviceToken),
		AttemptTimeout: attemptTimeout,
		Logger:         logger,
	})
	bookingClient := upstream.NewClient(upstream.Config{
		Primary:        config.String("BOOKING_URL", "http://booking-service:8083"),
		Fallback:       config.String("BOOKING_FALLBACK_URL", ""),
		APIKey:         config.String("PUBLIC_API_KEY", ""),
		Tokens:         upstream.FirstOf(serviceToken),
		AttemptTimeout: attemptTimeout,
		Logger:         logger,
	})

	var jwksClient *auth.JWKSClient
	if jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, jwksTTL)
	}

	authRelay := forward(authClient, logger)
	bookingRelay := forward(bookingClient, logger)

	registerRelay(mux, "/api/v1/auth", authRelay)
	registerRelay(mux, "/.well-known/jwks.json", authRelay)
	registerRelay(mux, "/api/v1/public", bookingRelay)
	registerRelay(mux, "/api/v1/bookings", requireAuth(bookingRelay, jwtSecret, jwksClient))
	registerRelay(mux, "/api/v1/manager", requireAuth(requireRole(bookingRelay, "manager", "admin"), jwtSecret, jwksClient))
	registerRelay(mux, "/api/v1/vendor", requireAuth(requireRole(bookingRelay, "vendor", "admin"), jwtSecret, jwksClient))
}

// forwarded identity and tracing headers. Everything else stays behind the
// gateway boundary.
var relayHeaders = []string{"X-User-Id", "X-Vendor-Id", "X-Role", "X-Request-Id", "Traceparent", "Tracestate"}

// forward relays the request through the resilient upstream client and maps
// the normalized result (or its failure) back onto the caller's response.
func forward(client *upstream.Client, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		endpoint := r.URL.Path
		if r.URL.RawQuery != "" {
			endpoint += "?" + r.URL.RawQuery
		}

		headers := http.Header{}
		for _, name := range relayHeaders {
			if v := r.Header.Get(name); v != "" {
				headers.Set(name, v)
			}
		}

		res, err := client.Execute(r.Context(), endpoint, upstream.Options{
			Method:      r.Method,
			Body:        body,
			ContentType: r.Header.Get("Content-Type"),
			Headers:     headers,
			BearerToken: bearerToken(r),
		})
		if res != nil {
			logger.Debug("upstream answered", "target", res.Target, "status", res.StatusCode, "path", r.URL.Path)
			writeRelay(w, res)
			return
		}

		switch {
		case errors.Is(err, context.Canceled):
			// Caller went away; nothing useful to write.
			return
		case errors.Is(err, upstream.ErrNetwork), errors.Is(err, upstream.ErrServer), errors.Is(err, upstream.ErrParse):
			logger.Error("upstream unavailable", "err", err, "path", r.URL.Path)
			writeGatewayError(w, http.StatusBadGateway, "BAD_UPSTREAM", "upstream service unavailable")
		default:
			logger.Error("upstream call failed", "err", err, "path", r.URL.Path)
			writeGatewayError(w, http.StatusBadGateway, "BAD_UPSTREAM", "upstream call failed")
		}
	})
}

func writeRelay(w http.ResponseWriter, res *upstream.Result) {
	w.Header().Set("Content-Type", "application/json")
	if res.Target != "" {
		w.Header().Set("X-Upstream", res.Target)
	}
	w.WriteHeader(res.StatusCode)

	if res.ErrorCode == "" && res.Message == "" {
		if len(res.Data) > 0 {
			_, _ = w.Write(res.Data)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": res.Success,
		"data":    res.Data,
		"error":   res.ErrorCode,
		"message": res.Message,
	})
}

func writeGatewayError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func registerRelay(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func requireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := verifyToken(token, jwtSecret, jwksClient)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		// Inbound copies are spoofing attempts; the verified claims win.
		r.Header.Del("X-User-Id")
		r.Header.Del("X-Vendor-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Vendor-Id", claims.VendorID)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

// verifyToken resolves the verification path from the token header: RS256
// with a known kid goes through JWKS, everything else falls back to the HS256
// shared secret. On any failure the caller gets nil claims and an error.
func verifyToken(token, jwtSecret string, jwksClient *auth.JWKSClient) (*auth.Claims, error) {
	if jwksClient != nil {
		header, err := auth.ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := jwksClient.Get(header.Kid)
			if err != nil {
				return nil, err
			}
			return auth.VerifyRS256(token, pub)
		}
	}
	return auth.ParseAndVerifyHS256(token, jwtSecret)
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role")
		if _, ok := allowed[role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
