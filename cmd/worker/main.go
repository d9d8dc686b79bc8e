package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"contact-harvester/internal/config"
	"contact-harvester/internal/delivery"
	"contact-harvester/internal/llm"
	"contact-harvester/internal/pipeline"
	"contact-harvester/internal/repository/postgresql"
	"contact-harvester/internal/scrape"
	"contact-harvester/internal/service"
	"contact-harvester/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("missing POSTGRES_DSN")
	}
	if cfg.RedisAddr == "" {
		log.Fatal("missing REDIS_ADDR")
	}
	if cfg.LLMAPIKey == "" {
		log.Println("warning: LLM_API_KEY is empty, inference calls will fail")
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// DI
	repo := postgresql.NewTaskRepository(pool)
	queue := service.NewRedisQueue(rdb, cfg.QueueKey, cfg.ProcessingKey)

	searcher := scrape.NewDuckDuckGo(cfg.SearchBaseURL)
	fetcher := scrape.NewPageFetcher()
	inference := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	gate := pipeline.NewGate(cfg.MaxBrowserSessions)
	dispatcher := delivery.NewDispatcher(repo, cfg.DeliveryMaxAttempts, cfg.DeliveryBackoff.Duration())

	orchestrator := pipeline.NewOrchestrator(
		repo, gate,
		searcher, inference, fetcher, inference,
		dispatcher,
		cfg.StageTimeout.Duration(),
	)

	// Reaper: периодически возвращает задачи из processing обратно в queue
	// (если воркер падал/перезапускался)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.RequeueStale(ctx, 100)
				if err != nil {
					log.Printf("requeue error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("requeued %d tasks from processing", n)
				}
			}
		}
	}()

	poolWorkers := worker.NewPool(queue, orchestrator, cfg.Workers)

	log.Printf("worker started: workers=%d browser_sessions=%d redis_addr=%s queue_key=%s",
		cfg.Workers, cfg.MaxBrowserSessions, cfg.RedisAddr, cfg.QueueKey)
	poolWorkers.Run(ctx)

	log.Println("worker stopped")
}
