package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/queue"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// bulkclassify queues classification jobs for existing tickets, e.g. after
// enabling the classifier on a database that predates it.
func main() {
	statusFlag := flag.String("status", "", "only queue tickets with this status (A, C, H or X)")
	limitFlag := flag.Int("limit", 50, "maximum number of tickets to queue")
	forceFlag := flag.Bool("force", false, "also queue tickets that already have a category")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var status *domain.TicketStatus
	if *statusFlag != "" {
		s := domain.TicketStatus(*statusFlag)
		if !s.Valid() {
			fmt.Fprintf(os.Stderr, "invalid status %q\n", *statusFlag)
			os.Exit(1)
		}
		status = &s
	}

	ctx := context.Background()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	ticketRepo := repository.NewTicketRepository(pg.PoolHandle())
	jobQueue := queue.New(queue.NewRedisBroker(redis.Client, cfg.Queue.Key))

	tickets, err := ticketRepo.ListForClassification(ctx, status, *forceFlag, *limitFlag)
	if err != nil {
		logger.Fatal("failed to list tickets", zap.Error(err))
	}

	queued := 0
	for i := range tickets {
		if err := jobQueue.Enqueue(ctx, tickets[i].ID, *forceFlag); err != nil {
			logger.Error("failed to enqueue ticket",
				zap.String("ticket_id", tickets[i].ID),
				zap.Error(err))
			continue
		}
		queued++
	}

	fmt.Printf("queued %d of %d tickets for classification\n", queued, len(tickets))
}
