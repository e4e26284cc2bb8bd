// Package chassis serves the directory API over TLS on two listeners that
// share one port:
//   - TCP -> HTTP/1.1 + HTTP/2
//   - UDP -> HTTP/3 over QUIC (same handler as TCP)
//
// The TCP responses include an Alt-Svc header advertising HTTP/3, so
// clients that support it can upgrade transparently.
//
// Without cert/key files, a self-signed ECDSA P-256 cert is generated.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

const (
	idleTimeout = 5 * time.Minute
	keepAlive   = 30 * time.Second
)

// Server runs the TCP and QUIC listeners.
type Server struct {
	addr        string
	logger      *slog.Logger
	tlsCfg      *tls.Config
	httpHandler http.Handler
	h3Server    *http3.Server
	tcpServer   *http.Server
	quicLn      *quic.Listener
	tcpLn       net.Listener
	mu          sync.Mutex
}

// Config holds configuration for the chassis server.
type Config struct {
	Addr     string       // Listen address (e.g. ":8420"), TCP + UDP same port
	TLS      *tls.Config  // nil = load CertFile/KeyFile or self-sign
	CertFile string       // production cert path
	KeyFile  string       // production key path
	Hosts    []string     // extra names for the self-signed cert
	Handler  http.Handler // API router
	Logger   *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handler == nil {
		return nil, errors.New("chassis: nil handler")
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil {
		var err error
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("TLS: production certs loaded", "cert", cfg.CertFile)
		} else {
			tlsCfg, err = DevelopmentTLSConfig(cfg.Hosts...)
			if err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Warn("TLS: self-signed dev cert generated")
		}
	}

	return &Server{
		addr:        cfg.Addr,
		logger:      cfg.Logger,
		tlsCfg:      tlsCfg,
		httpHandler: cfg.Handler,
	}, nil
}

// securityHeaders wraps an http.Handler and adds standard security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		next.ServeHTTP(w, r)
	})
}

// altSvcMiddleware advertises HTTP/3 on the same port.
func altSvcMiddleware(addr string, next http.Handler) http.Handler {
	_, port, _ := net.SplitHostPort(addr)
	if port == "" {
		port = "8420"
	}
	altSvc := fmt.Sprintf(`h3=":%s"; ma=86400`, port)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", altSvc)
		next.ServeHTTP(w, r)
	})
}

// Start launches both listeners and blocks until ctx ends or one of them
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()

	handler := securityHeaders(altSvcMiddleware(s.addr, s.httpHandler))

	// --- TCP: HTTP/1.1 + HTTP/2 ---
	tcpTLS := s.tlsCfg.Clone()
	tcpTLS.NextProtos = []string{"h2", "http/1.1"}

	tcpLn, err := tls.Listen("tcp", s.addr, tcpTLS)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("TCP listen: %w", err)
	}
	s.tcpLn = tcpLn
	s.tcpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	// --- UDP: QUIC, HTTP/3 only ---
	quicTLS := s.tlsCfg.Clone()
	quicTLS.NextProtos = []string{http3.NextProtoH3}
	qCfg := &quic.Config{
		MaxStreamReceiveWindow:     10 * 1024 * 1024,
		MaxConnectionReceiveWindow: 50 * 1024 * 1024,
		MaxIdleTimeout:             idleTimeout,
		KeepAlivePeriod:            keepAlive,
	}
	ln, err := quic.ListenAddr(s.addr, quicTLS, qCfg)
	if err != nil {
		tcpLn.Close()
		s.mu.Unlock()
		return fmt.Errorf("QUIC listen: %w", err)
	}
	s.quicLn = ln
	s.h3Server = &http3.Server{Handler: handler}

	s.mu.Unlock()

	s.logger.Info("chassis started",
		"addr", s.addr,
		"tcp", "HTTP/1.1+HTTP/2 (TLS)",
		"udp", "HTTP/3",
	)

	errCh := make(chan error, 2)
	go func() {
		if err := s.tcpServer.Serve(tcpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("TCP: %w", err)
		}
	}()

	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errCh <- fmt.Errorf("QUIC accept: %w", err)
				return
			}
			if alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn != http3.NextProtoH3 {
				s.logger.Warn("unknown ALPN, closing", "alpn", alpn, "remote", conn.RemoteAddr())
				conn.CloseWithError(quic.ApplicationErrorCode(0x11), "unsupported ALPN: "+alpn)
				continue
			}
			go func() {
				if err := s.h3Server.ServeQUICConn(conn); err != nil {
					s.logger.Debug("HTTP/3 conn done", "remote", conn.RemoteAddr(), "error", err)
				}
			}()
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound TCP address once Start has run, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// Stop gracefully shuts down both listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("chassis stopping")

	var errs []error
	if s.tcpServer != nil {
		errs = append(errs, s.tcpServer.Shutdown(ctx))
	}
	if s.h3Server != nil {
		errs = append(errs, s.h3Server.Close())
	}
	if s.quicLn != nil {
		errs = append(errs, s.quicLn.Close())
	}

	s.logger.Info("chassis stopped")
	return errors.Join(errs...)
}
