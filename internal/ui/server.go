// Package ui serves a browser view of the lineage of a SQL file or
// directory, re-parsing it when files change.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/leapstack-labs/ezql/internal/ui/features/common"
	"github.com/leapstack-labs/ezql/internal/ui/notifier"
	"github.com/leapstack-labs/ezql/internal/ui/router"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the port used when Config.Port is zero.
const DefaultPort = 8765

const debounce = 100 * time.Millisecond

// Config holds configuration for the UI server.
type Config struct {
	Engine *engine.Engine
	// Store, when set, records every reload as a run and exposes the run
	// history.
	Store         state.Store
	Path          string
	Port          int
	Watch         bool
	SessionSecret string
	Logger        *slog.Logger
}

// Server is the lineage viewer.
type Server struct {
	engine       *engine.Engine
	store        state.Store
	sessionStore *sessions.CookieStore
	path         string
	port         int
	watch        bool
	logger       *slog.Logger
	snapshot     *common.Snapshot
	notifier     *notifier.Notifier

	reloadMu sync.Mutex
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Server{
		engine:       cfg.Engine,
		store:        cfg.Store,
		sessionStore: sessionStore,
		path:         cfg.Path,
		port:         port,
		watch:        cfg.Watch,
		logger:       logger,
		snapshot:     common.NewSnapshot(cfg.Path),
		notifier:     notifier.New(),
	}
}

// Snapshot returns the result currently served.
func (s *Server) Snapshot() *common.Snapshot {
	return s.snapshot
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Reload parses the input path again, stores the run when a store is
// configured, and tells connected browsers to refresh.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	result, err := s.engine.Run(ctx, s.path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	var runID string
	if s.store != nil {
		run, err := s.store.SaveRun(ctx, s.path, s.engine.Mode(), result)
		if err != nil {
			s.logger.Warn("failed to save run", "error", err)
		} else {
			runID = run.ID
		}
	}

	s.snapshot.Set(result, runID)
	gen := s.notifier.Broadcast()
	s.logger.Debug("snapshot reloaded", "generation", gen, "procedures", len(result.Procedures))
	return nil
}

// Handler returns the HTTP handler of the viewer.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.snapshot, s.store, s.sessionStore, s.notifier, s.logger); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve listens on the configured port and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. The input is parsed
// once before the first request is accepted.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if err := s.Reload(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	handler, err := s.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())

	if s.watch {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchFiles re-parses the input when a .sql file under it changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		err = watchDirRecursive(watcher, s.path)
	} else {
		err = watcher.Add(filepath.Dir(s.path))
	}
	if err != nil {
		s.logger.Error("failed to watch input", "path", s.path, "error", err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) && info.IsDir() {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
				}
			}
			if !s.relevant(event, info.IsDir()) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			name := event.Name
			timer = time.AfterFunc(debounce, func() {
				s.logger.Debug("file changed, re-parsing", "file", name)
				if err := s.Reload(ctx); err != nil {
					s.logger.Error("reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) relevant(event fsnotify.Event, dir bool) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	if !dir {
		return filepath.Clean(event.Name) == filepath.Clean(s.path)
	}
	return filepath.Ext(event.Name) == ".sql"
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
