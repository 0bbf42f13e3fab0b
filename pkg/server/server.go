// Package server implements the GoTalk chat server: listener, session
// lifecycle, user registry, broadcast routing, and the admin command engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/store"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.DataStore
}

// Server is the main GoTalk server.
type Server struct {
	cfg      Config
	registry *Registry
	password *passwordVault
	store    store.DataStore
	metrics  *Metrics
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	// exit terminates the process; replaced in tests. QUIT is fatal by
	// contract.
	exit func(code int)
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		password: &passwordVault{},
		store:    deps.Store,
		metrics:  NewMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		exit:     os.Exit,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listen address, "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and begins accepting connections. A bind
// failure is fatal: it is returned before any connection is accepted.
func (s *Server) Start() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	if err := s.restorePassword(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	slog.Info("listening", "addr", ln.Addr().String(), "password_set", s.password.Required())

	s.StartMetricsHTTP()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go newSession(s, conn).run()
		}
	}()
	return nil
}

// restorePassword loads the persisted password hash, falling back to the
// configured initial password.
func (s *Server) restorePassword() error {
	encoded, err := s.store.GetSetting(store.SettingPasswordHash)
	if err != nil {
		return fmt.Errorf("server: restore password: %w", err)
	}
	if encoded != "" {
		s.password.SetEncoded(encoded)
		return nil
	}
	if s.cfg.Password != "" {
		if _, err := s.SetPassword(s.cfg.Password); err != nil {
			return fmt.Errorf("server: set initial password: %w", err)
		}
	}
	return nil
}

// SetPassword trims and stores a new server password (empty after trimming
// disables authentication) and persists the hash. Reports whether the
// password was cleared.
func (s *Server) SetPassword(raw string) (cleared bool, err error) {
	cleared, err = s.password.Set(raw)
	if err != nil {
		return false, err
	}
	if err := s.store.SaveSetting(store.SettingPasswordHash, s.password.Encoded()); err != nil {
		slog.Warn("could not persist password", "err", err)
	}
	return cleared, nil
}

// Run starts the server and blocks until a shutdown signal.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.DisconnectAll("")
	s.Shutdown()
	return nil
}

// DisconnectAll intentionally disconnects every connected session, sending
// each the optional farewell, and waits briefly for the writers to flush.
func (s *Server) DisconnectAll(farewell string) {
	sessions := s.registry.Snapshot()
	for _, sess := range sessions {
		sess.Disconnect("", farewell)
	}
	deadline := time.After(2 * time.Second)
	for _, sess := range sessions {
		select {
		case <-sess.writerDone:
		case <-deadline:
			return
		}
	}
}

// Shutdown stops accepting connections and releases resources.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// audit records an event, logging instead of failing when the store is
// unavailable: per-connection paths must never break on persistence errors.
func (s *Server) audit(kind model.EventKind, actor, detail string) {
	if err := s.store.AppendEvent(kind, actor, detail); err != nil {
		slog.Warn("audit write failed", "kind", kind, "err", err)
	}
}
