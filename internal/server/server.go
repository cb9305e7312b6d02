package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/citybuild/maprelay/internal/presence"
	"github.com/citybuild/maprelay/internal/server/middleware"
	"github.com/citybuild/maprelay/pkg/auth"
	"github.com/citybuild/maprelay/pkg/config"
	"github.com/citybuild/maprelay/pkg/mapapi"
	"github.com/citybuild/maprelay/pkg/metrics"
	"github.com/citybuild/maprelay/pkg/transport"
)

// App is the event gateway: it terminates client transport sessions,
// assigns connection ids, and feeds inbound commands to the coordinator.
type App struct {
	logger   *slog.Logger
	registry *presence.Registry
	coord    *presence.Coordinator
	router   *CommandRouter
	wg       sync.WaitGroup
	http     *http.Server
	config   *config.Config

	originPatterns []string

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, promReg *prometheus.Registry) *App {
	m := metrics.New(promReg)
	registry := presence.NewRegistry(logger)
	rooms := presence.NewRoomStore(logger)
	coord := presence.NewCoordinator(logger, registry, rooms, m)

	var verifier auth.Verifier
	if cfg.Auth.Verify {
		verifier = auth.NewHS(cfg.Auth.JWTSecret)
	}
	var maps *mapapi.Client
	if cfg.API.BaseURL != "" {
		maps = mapapi.New(cfg.API.BaseURL, cfg.API.Timeout)
	}

	app := &App{
		logger:         logger,
		registry:       registry,
		coord:          coord,
		router:         NewCommandRouter(logger, coord, verifier, maps, m),
		config:         cfg,
		originPatterns: originPatterns(cfg.Server.AllowOrigins),
		ctx:            rootCtx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
		),
	)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metrics.Handler(promReg))

	corsWrap := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	})

	app.http = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           corsWrap.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	var remoteIP string
	if reqMeta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
		remoteIP = reqMeta.IP
	}
	connLogger := a.logger.With(slog.String("remoteAddr", remoteIP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.originPatterns,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			IdleTimeout:  a.config.Transport.IdleTimeout,
			PingInterval: a.config.Transport.PingInterval,
		},
		nil,
		nil,
		a.logger,
	)
	if _, err := a.coord.Connect(conn); err != nil {
		connLogger.Error("Failed to register connection", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.router.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.coord.Disconnect(id)
	})

	connLogger.Info("Visitor connection established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.All() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}

// originPatterns converts configured origins (scheme://host:port) into the
// host patterns the websocket accept check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
