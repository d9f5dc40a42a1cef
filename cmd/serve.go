package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/neo/quizrush_backend/internal/bot"
	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/game"
	"github.com/neo/quizrush_backend/internal/gateway"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/lobby"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/server"
	"github.com/neo/quizrush_backend/internal/timer"
)

var (
	port         int
	pollInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the QuizRush server",
	Long: `Start the QuizRush server with the specified configuration.
This initializes the HTTP API, the socket gateway, the timer worker,
and begins accepting connections.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll("data", 0755); err != nil {
			fmt.Printf("Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			fmt.Println("Warning: .env file not found, using environment defaults")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}

		if err := logging.InitDefaultLogger(logging.Config{
			Level:     logging.INFO,
			Prefix:    "QuizRush",
			Colored:   true,
			LogToFile: true,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		cfg := server.LoadConfig()
		gameCfg := game.LoadConfig()

		db, err := database.New(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations("internal/database/migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %v", err)
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})
		defer rdb.Close()

		liveStore := live.NewStore(rdb)
		scheduler := timer.NewScheduler(rdb)
		worker := timer.NewWorker(rdb, pollInterval)
		eventBus := bus.New(rdb)
		bots := bot.New()

		engine := game.NewEngine(gameCfg, db, liveStore, scheduler, eventBus, bots)
		lobbyCtl := lobby.New(db, scheduler, eventBus, engine, gameCfg.CountdownSeconds)
		hub := gateway.NewHub(eventBus, []byte(cfg.JWTSecret))

		srv := server.NewServer(cfg, db, engine, lobbyCtl, hub, worker, eventBus)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf(":%d", port)
			if err := srv.Start(ctx, addr); err != nil {
				errChan <- fmt.Errorf("server error: %v", err)
			}
		}()

		select {
		case err := <-errChan:
			return err
		case sig := <-sigChan:
			logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
			cancel()
			srv.Stop()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to run the server on")
	serveCmd.Flags().DurationVar(&pollInterval, "poll-interval", 200*time.Millisecond, "Timer worker poll interval")
}
