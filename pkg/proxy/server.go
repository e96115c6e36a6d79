// Package proxy is the intercepting transport: a WebSocket relay for the
// live feed and a reverse proxy for HTTP queries, both wired to the
// dispatcher.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pulsegate/pkg/config"
	"pulsegate/pkg/engine"
)

// Server serves the relay on cfg.WSPath and reverse-proxies everything else.
type Server struct {
	cfg     config.ProxyConfig
	logger  *slog.Logger
	handler http.Handler
}

func NewServer(cfg config.ProxyConfig, d *engine.Dispatcher, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpURL, err := url.Parse(cfg.UpstreamHTTP)
	if err != nil || httpURL.Host == "" {
		return nil, fmt.Errorf("invalid upstream_http %q", cfg.UpstreamHTTP)
	}
	wsURL, err := url.Parse(cfg.UpstreamWS)
	if err != nil || wsURL.Host == "" {
		return nil, fmt.Errorf("invalid upstream_ws %q", cfg.UpstreamWS)
	}

	s := &Server{cfg: cfg, logger: logger.With("component", "proxy")}

	rl := &relay{
		upstream: wsURL,
		prefix:   strings.TrimSuffix(cfg.WSPath, "/"),
		d:        d,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		srv:      s,
	}
	rp := newReverseProxy(httpURL, d, s)

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) && strings.HasPrefix(r.URL.Path, cfg.WSPath) {
			rl.ServeHTTP(w, r)
			return
		}
		rp.ServeHTTP(w, r)
	}))
	s.handler = mux
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve listens on cfg.ListenAddr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Proxy listening", "addr", ln.Addr().String(),
			"upstream_http", s.cfg.UpstreamHTTP, "upstream_ws", s.cfg.UpstreamWS)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
