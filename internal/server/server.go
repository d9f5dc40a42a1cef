package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/game"
	"github.com/neo/quizrush_backend/internal/gateway"
	"github.com/neo/quizrush_backend/internal/lobby"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/timer"
)

// Server wires the HTTP API, the socket gateway, and the background workers
// over the game core
type Server struct {
	router *gin.Engine
	cfg    Config
	db     database.Store
	engine *game.Engine
	lobby  *lobby.Controller
	hub    *gateway.Hub
	worker *timer.Worker
	bus    *bus.Bus
}

// NewServer assembles the router and routes
func NewServer(cfg Config, db database.Store, engine *game.Engine, lobbyCtl *lobby.Controller, hub *gateway.Hub, worker *timer.Worker, b *bus.Bus) *Server {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(RecoveryMiddleware())

	s := &Server{
		router: router,
		cfg:    cfg,
		db:     db,
		engine: engine,
		lobby:  lobbyCtl,
		hub:    hub,
		worker: worker,
		bus:    b,
	}

	api := router.Group("/api")
	{
		api.POST("/duel/start", s.handleStartDuel)
		api.POST("/fastest-finger/start", s.handleStartFastestFinger)
		api.POST("/practice/start", s.handleStartPractice)
		api.POST("/time-attack/start", s.handleStartTimeAttack)

		api.POST("/lobby", s.handleCreateLobby)
		api.POST("/lobby/join", s.handleJoinLobby)
		api.POST("/lobby/leave", s.handleLeaveLobby)
		api.POST("/lobby/countdown", s.handleInitiateCountdown)
		api.DELETE("/lobby/countdown", s.handleCancelCountdown)

		api.GET("/sessions", s.handleListSessions)
		api.GET("/health", s.handleHealth)
	}

	router.GET("/ws", hub.ServeWS)

	return s
}

// Start launches the background workers and serves HTTP until the listener
// fails or ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	// Timer deliveries for both queues land back in this process
	s.worker.Register(timer.QueueGameTimers, func(ctx context.Context, jobID string, payload []byte) {
		if err := s.engine.HandleGameTimer(ctx, jobID, payload); err != nil {
			logging.Error("Game timer handler failed", map[string]interface{}{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	})
	s.worker.Register(timer.QueueLobbyCountdown, func(ctx context.Context, jobID string, payload []byte) {
		if err := s.lobby.HandleCountdownJob(ctx, jobID, payload); err != nil {
			logging.Error("Countdown handler failed", map[string]interface{}{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	})
	s.worker.Start(ctx)

	// Gateway-forwarded client events: lobby control goes to the controller,
	// everything else to the engine
	s.bus.SubscribeInbound(ctx, func(msg bus.InboundMessage) {
		s.routeInbound(ctx, msg)
	})

	s.hub.Run(ctx)

	logging.Info("Server listening", map[string]interface{}{"addr": addr})

	srv := &http.Server{Addr: addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains the workers and retires the live actors
func (s *Server) Stop() {
	s.worker.Stop()
	s.engine.Shutdown()
}
