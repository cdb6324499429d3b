package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-lottery/internal/allocation"
	"ms-lottery/internal/allocation/allocation_api"
	allocation_db "ms-lottery/internal/allocation/db"
	allocation_redis "ms-lottery/internal/allocation/redis"
	"ms-lottery/internal/auth"
	"ms-lottery/internal/config"
	"ms-lottery/internal/draw"
	draw_db "ms-lottery/internal/draw/db"
	"ms-lottery/internal/draw/draw_api"
	"ms-lottery/internal/kafka"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/projection"
	"ms-lottery/internal/projection/projection_api"
	"ms-lottery/internal/receipts"
	"ms-lottery/internal/rounds"
	rounds_db "ms-lottery/internal/rounds/db"
	"ms-lottery/internal/rounds/round_api"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func buildTicketStore(cfg *config.Config, bunDB *bun.DB, log *logger.Logger) allocation.TicketStore {
	if cfg.Lottery.TicketStore == "redis" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
		}
		log.Info("REDIS", "Using Redis ticket store at "+cfg.Redis.Addr)
		return allocation_redis.NewStore(client)
	}
	log.Info("DATABASE", "Using SQL ticket store")
	return &allocation_db.DB{Bun: bunDB}
}

func buildProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled || cfg.Kafka.MockMode {
		log.Warn("KAFKA", "Kafka disabled or in mock mode, events will be logged only")
		return kafka.NewMockProducer()
	}
	return kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
		RoundEvents:  cfg.Kafka.Topics.RoundEvents,
		TicketsSold:  cfg.Kafka.Topics.TicketsSold,
		WinnersDrawn: cfg.Kafka.Topics.WinnersDrawn,
	})
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	if err := runMigrations(bunDB, log); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	producer := buildProducer(cfg, log)
	defer producer.Close()

	ticketStore := buildTicketStore(cfg, bunDB, log)
	ticketDB := &allocation_db.DB{Bun: bunDB}
	roundDB := &rounds_db.DB{Bun: bunDB}
	resultDB := &draw_db.DB{Bun: bunDB}

	pool := allocation.NewPool(ticketStore, nil, producer, log, cfg.Lottery.RetryBudgetFactor)
	roundService := rounds.NewService(roundDB, pool, producer, log)
	pool.Rounds = roundService

	engine := draw.NewEngine(resultDB, roundDB, ticketStore, producer, log)
	projections := projection.NewService(roundService, ticketStore)
	qr := receipts.NewQRGenerator(cfg.Lottery.QRSecret)

	roundHandler := round_api.NewHandler(roundService, log)
	allocationHandler := allocation_api.NewHandler(pool, ticketDB, qr, log)
	drawHandler := draw_api.NewHandler(engine, log)
	projectionHandler := projection_api.NewHandler(projections, log)

	r := chi.NewRouter()
	r.Route("/rounds", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Administrative round lifecycle.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/", roundHandler.CreateRound)
			r.Put("/{roundId}", roundHandler.UpdateRound)
			r.Post("/{roundId}/open", roundHandler.OpenRound)
			r.Post("/{roundId}/close", roundHandler.CloseRound)
			r.Post("/{roundId}/cancel", roundHandler.CancelRound)
			r.Post("/{roundId}/archive", roundHandler.ArchiveRound)
			r.Post("/{roundId}/draw", drawHandler.DrawWinners)
			r.Post("/{roundId}/release", allocationHandler.Release)
		})

		r.Get("/{roundId}", roundHandler.GetRound)
		r.Get("/{roundId}/projection", projectionHandler.GetProjection)
		r.Get("/{roundId}/winners", drawHandler.GetWinners)
		r.Post("/{roundId}/purchase", allocationHandler.Purchase)
		r.Get("/{roundId}/tickets/{number}/qr", allocationHandler.TicketQR)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Lottery service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "Lottery service shutdown complete")
}
