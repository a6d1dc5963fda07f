// Package app wires the registry runtime and HTTP lifecycle.
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

	"github.com/formledger/formledger/internal/platform/config"
	"github.com/formledger/formledger/internal/registry"
	registryhttp "github.com/formledger/formledger/internal/registry/api/http"
	"github.com/formledger/formledger/internal/registry/service"
	registrysqlite "github.com/formledger/formledger/internal/registry/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath         string `env:"FORMLEDGER_REGISTRY_DB_PATH"`
	BootstrapAdmin string `env:"FORMLEDGER_BOOTSTRAP_ADMIN"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "registry.db")
	}
	return cfg
}

// Server hosts the registry HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	svc        *service.Service
	store      *registrysqlite.Store
}

// New creates a configured registry server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured registry server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	identity, err := registryhttp.LoadIdentityConfigFromEnv(nil)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openRegistryStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	svc := service.New(store)
	if admin := strings.TrimSpace(env.BootstrapAdmin); admin != "" {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Bootstrap(ctx, registry.Identity(admin)); err != nil {
			svc.Close()
			_ = store.Close()
			_ = listener.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           registryhttp.NewHandler(svc, identity),
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:   svc,
		store: store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a registry server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
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

	log.Printf("registry server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases registry server resources.
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
	if s.svc != nil {
		s.svc.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
	}
}

func openRegistryStore(path string) (*registrysqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := registrysqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry sqlite store: %w", err)
	}
	return store, nil
}
