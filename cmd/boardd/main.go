package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boardsync/config"
	"boardsync/internal/api"
	"boardsync/internal/auth"
	"boardsync/internal/channel"
	"boardsync/internal/engine"
	"boardsync/internal/model"
	"boardsync/internal/rest"
	"boardsync/internal/util"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting boardsync")

	tp, err := util.InitTracer("boardsync", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	tokens := auth.StaticToken(cfg.API.Token)

	client := rest.NewClient(
		cfg.API.BaseURL,
		cfg.API.RestaurantID,
		tokens,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
	)

	ch, err := buildChannel(cfg, tokens)
	if err != nil {
		log.Fatalf("Failed to build channel: %v", err)
	}
	defer ch.Close()

	eng := engine.New(client, ch, engine.Options{
		Scope:      scopeForSurface(cfg.Engine.Surface),
		HistoryCap: cfg.Engine.HistoryCap,
		TrackKPI:   cfg.Engine.TrackKPI,
	})

	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	if err := eng.Start(engineCtx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	log.Printf("Engine started: surface=%s", cfg.Engine.Surface)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(eng)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	engineCancel()
	log.Println("Server exited")
}

// buildChannel selects the push transport. All four speak the same frame
// format, so the engine never knows which one it is on.
func buildChannel(cfg *config.Config, tokens auth.TokenProvider) (channel.Channel, error) {
	switch cfg.Channel.Transport {
	case "websocket":
		return channel.NewWebSocket(cfg.Channel.WebSocketURL, tokens), nil
	case "kafka":
		group := fmt.Sprintf("%s-%s", cfg.Channel.KafkaGroup, cfg.Engine.Surface)
		return channel.NewKafka(cfg.Channel.KafkaBrokers, cfg.API.RestaurantID, group), nil
	case "redis":
		return channel.NewRedis(
			cfg.Channel.RedisAddr,
			cfg.Channel.RedisPassword,
			cfg.Channel.RedisDB,
			cfg.API.RestaurantID,
		)
	case "poll":
		return channel.NewPoller(time.Duration(cfg.Channel.PollIntervalSeconds) * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown channel transport %q", cfg.Channel.Transport)
	}
}

// scopeForSurface narrows the snapshot to what each display surface shows.
func scopeForSurface(surface string) rest.Scope {
	switch surface {
	case "kitchen":
		return rest.Scope{
			Statuses: []model.OrderStatus{
				model.StatusPending,
				model.StatusInPreparation,
				model.StatusReady,
			},
			ExcludeCancelled: true,
		}
	case "waiter":
		return rest.Scope{
			Statuses: []model.OrderStatus{
				model.StatusAwaitingPayment,
				model.StatusReady,
				model.StatusDelivered,
			},
			ExcludeCancelled: true,
		}
	default: // dashboard and anything else sees everything active
		return rest.Scope{ExcludeCancelled: true}
	}
}
