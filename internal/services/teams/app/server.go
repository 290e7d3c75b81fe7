// Package app wires the team formation runtime and HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/improperboy/Hackmate-sub002/internal/platform/config"
	httpapi "github.com/improperboy/Hackmate-sub002/internal/services/teams/api/http"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/engine"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/policy"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath    string `env:"HACKMATE_TEAMS_DB_PATH"`
	JWTSecret string `env:"HACKMATE_JWT_SECRET"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return serverEnv{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "teams.db")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return serverEnv{}, fmt.Errorf("HACKMATE_JWT_SECRET is required")
	}
	return cfg, nil
}

// Server hosts the formation JSON API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured formation server for the provided address.
func New(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srvEnv, err := loadServerEnv()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	store, err := openTeamsStore(srvEnv.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	limits, err := policy.FromEnv()
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("load team size limits: %w", err)
	}

	eng := engine.New(store, limits,
		engine.WithNotifier(notify.NewLogNotifier(log.Default())))
	handler := httpapi.New(eng, []byte(srvEnv.JWTSecret), log.Default())

	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a formation server until context cancellation.
func Run(ctx context.Context, addr string) error {
	server, err := New(addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("teams server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases formation server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close teams store: %v", err)
		}
	}
}

func openTeamsStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open teams sqlite store: %w", err)
	}
	return store, nil
}
