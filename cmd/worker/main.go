package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ducdigital/fairy-go/internal/config"
	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/queue"
	"github.com/ducdigital/fairy-go/internal/worker"
)

func main() {
	queueName := flag.String("queue", "default", "queue name this worker drains")
	handlerName := flag.String("handler", "echo", "demo handler: echo, sleep, compute, or fail")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Str("queue", *queueName).Str("handler", *handlerName).Msg("starting worker")

	store, err := queue.NewRedisStore(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	publisher := events.NewRedisPubSub(store.Client())
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	client := queue.NewClient(store, cfg.Queue, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := client.Queue(ctx, *queueName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue")
	}

	handler, err := demoHandler(*handlerName)
	if err != nil {
		log.Fatal().Err(err).Msg("unknown handler")
	}

	pool := worker.NewPool(&cfg.Worker, q, handler, 0, store.Client())
	if err := pool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker pool")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("worker shutdown error")
	}

	log.Info().Msg("worker stopped")
}

// demoHandler resolves one of the reference handlers a caller can point a
// worker at from the command line. Real embedders supply their own
// queue.Handler; these exist so `go run ./cmd/worker` has something to do
// against an enqueued task.
func demoHandler(name string) (queue.Handler, error) {
	switch name {
	case "echo":
		return echoHandler, nil
	case "sleep":
		return sleepHandler, nil
	case "compute":
		return computeHandler, nil
	case "fail":
		return failHandler, nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

// echoHandler succeeds immediately, returning the task's own args as the
// result.
func echoHandler(ctx context.Context, args []interface{}) (interface{}, *queue.HandlerError) {
	logger.Info().Interface("args", args).Msg("echo handler processing task")
	return map[string]interface{}{"echoed": args}, nil
}

// sleepHandler treats args[1] (if present and numeric) as a sleep duration
// in milliseconds, otherwise sleeps 1s.
func sleepHandler(ctx context.Context, args []interface{}) (interface{}, *queue.HandlerError) {
	duration := time.Second
	if len(args) > 1 {
		if ms, ok := args[1].(float64); ok {
			duration = time.Duration(ms) * time.Millisecond
		}
	}

	logger.Info().Interface("args", args).Dur("duration", duration).Msg("sleep handler processing task")

	select {
	case <-time.After(duration):
		return map[string]interface{}{"slept_for": duration.String()}, nil
	case <-ctx.Done():
		return nil, queue.NewHandlerError(ctx.Err().Error(), "")
	}
}

// computeHandler burns args[1] (default 1,000,000) CPU iterations, useful
// for exercising cross-group parallelism under load.
func computeHandler(ctx context.Context, args []interface{}) (interface{}, *queue.HandlerError) {
	iterations := 1000000
	if len(args) > 1 {
		if n, ok := args[1].(float64); ok {
			iterations = int(n)
		}
	}

	sum := 0
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, queue.NewHandlerError(ctx.Err().Error(), "")
		default:
			sum += i
		}
	}

	return map[string]interface{}{"result": sum}, nil
}

// failHandler always fails, picking one of the three failure directives at random
// spec.md §4.3 defines so a group can be driven into every failure branch
// for manual testing.
func failHandler(ctx context.Context, args []interface{}) (interface{}, *queue.HandlerError) {
	logger.Info().Interface("args", args).Msg("fail handler processing task")
	directives := []queue.Directive{"", queue.DirectiveBlockAfterRetry, queue.DirectiveBlock}
	do := directives[rand.Intn(len(directives))]
	return nil, queue.NewHandlerError("intentional failure for testing", do)
}
