package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/client"
	"github.com/Sternrassler/xrpl-client/pkg/ledger"
	"github.com/Sternrassler/xrpl-client/pkg/logging"
	"github.com/Sternrassler/xrpl-client/pkg/metrics"
	"github.com/Sternrassler/xrpl-client/pkg/ratelimit"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const reconnectDelay = 5 * time.Second

func main() {
	logCfg, err := logging.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(logCfg)
	logger := logging.NewLogger(logging.ComponentProxy)

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg := client.DefaultConfig()
	clientCfg.Scope = cfg.ServerURL
	clientCfg.CacheTTL = cfg.CacheTTL

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		clientCfg.Redis = redisClient
		logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")
	}

	ch, err := transport.Dial(ctx, transport.DefaultConfig(cfg.ServerURL))
	if err != nil {
		logger.Fatal().Err(err).Str("server", cfg.ServerURL).Msg("Failed to connect to server")
	}

	xrplClient, err := client.New(ch, clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create XRPL client")
	}
	defer xrplClient.Close()

	xrplClient.Subscribe(func(ev transport.Event) {
		if ev.Type == transport.EventDisconnected && ev.Code != transport.CloseNormal {
			go reconnect(ctx, ch, logger)
		}
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(&server{client: xrplClient, redis: redisClient, timeout: cfg.RequestTimeout, logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("server", cfg.ServerURL).Msg("Starting XRPL proxy")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("XRPL proxy stopped")
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// reconnect redials until the channel is back or ctx is done.
func reconnect(ctx context.Context, ch *transport.WSChannel, logger zerolog.Logger) {
	for {
		err := ch.Connect(ctx)
		if err == nil || errors.Is(err, transport.ErrClosed) {
			return
		}
		logger.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("Reconnect failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// ledgerClient is what the handlers need from *client.Client.
type ledgerClient interface {
	ledger.Requester
	IsConnected() bool
}

type server struct {
	client  ledgerClient
	redis   *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func newMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /accounts/{address}/info", s.accountInfoHandler)
	mux.HandleFunc("GET /accounts/{address}/orders", s.ordersHandler)
	mux.HandleFunc("GET /accounts/{address}/trustlines", s.trustlinesHandler)
	mux.HandleFunc("GET /server/info", s.serverInfoHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.client.IsConnected() {
		http.Error(w, "not connected", http.StatusServiceUnavailable)
		return
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) accountInfoHandler(w http.ResponseWriter, r *http.Request) {
	ledgerVersion, err := int64Query(r, "ledger")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	info, err := ledger.GetAccountInfo(ctx, s.client, r.PathValue("address"), ledger.AccountInfoOptions{
		LedgerVersion: ledgerVersion,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, info)
}

func (s *server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := int64Query(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	ledgerVersion, err := int64Query(r, "ledger")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	orders, err := ledger.GetOrders(ctx, s.client, r.PathValue("address"), ledger.OrdersOptions{
		Limit:         int(limit),
		LedgerVersion: ledgerVersion,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, orders)
}

func (s *server) trustlinesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := int64Query(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	ledgerVersion, err := int64Query(r, "ledger")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	q := r.URL.Query()
	lines, err := ledger.GetTrustlines(ctx, s.client, r.PathValue("address"), ledger.TrustlinesOptions{
		Limit:         int(limit),
		LedgerVersion: ledgerVersion,
		Counterparty:  q.Get("counterparty"),
		Currency:      q.Get("currency"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, lines)
}

func (s *server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	info, err := ledger.GetServerInfo(ctx, s.client)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, info)
}

// int64Query parses an optional non-negative integer query parameter.
func int64Query(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apierrors.Validationf("%s must be a non-negative integer, got %q", name, raw)
	}
	return v, nil
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"class": string(client.ClassifyError(err)),
	})
}

// statusFor maps library errors to HTTP status codes.
func statusFor(err error) int {
	var terr *transport.Error
	switch {
	case apierrors.IsValidation(err):
		return http.StatusBadRequest
	case apierrors.IsLedgerVersion(err):
		return http.StatusConflict
	case errors.Is(err, apierrors.ErrNoLedgerVersion):
		return http.StatusServiceUnavailable
	case errors.Is(err, ratelimit.ErrBlocked), transport.IsResponseCode(err, "slowDown"):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &terr) && terr.Kind == transport.KindResponse:
		switch terr.Code {
		case "actNotFound", "lgrNotFound":
			return http.StatusNotFound
		case "actMalformed", "invalidParams":
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
