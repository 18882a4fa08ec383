// Command server runs the governance gateway: the HTTP surface over the
// share-voting engine. State lives in Postgres when DATABASE_URL is set and
// in process memory otherwise; the engine semantics are identical either way.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accountservice "quorum/internal/account/service"
	accountstore "quorum/internal/account/store"
	"quorum/internal/authz"
	delegationservice "quorum/internal/delegation/service"
	delegationstore "quorum/internal/delegation/store"
	disputeservice "quorum/internal/dispute/service"
	disputestore "quorum/internal/dispute/store"
	"quorum/internal/engine"
	"quorum/internal/escrow"
	jwttoken "quorum/internal/jwt_token"
	"quorum/internal/platform/config"
	"quorum/internal/platform/httpserver"
	"quorum/internal/platform/logger"
	"quorum/internal/platform/metrics"
	platformredis "quorum/internal/platform/redis"
	proposalservice "quorum/internal/proposal/service"
	proposalstore "quorum/internal/proposal/store"
	reputationservice "quorum/internal/reputation/service"
	reputationstore "quorum/internal/reputation/store"
	httptransport "quorum/internal/transport/http"
	votingservice "quorum/internal/voting/service"
	votingstore "quorum/internal/voting/store"
	"quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	auditkafka "quorum/pkg/platform/audit/kafka"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	auditpostgres "quorum/pkg/platform/audit/store/postgres"
	auditworker "quorum/pkg/platform/audit/worker"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// backends is the persistence selection. Every field is an interface so the
// memory and Postgres variants wire identically.
type backends struct {
	accounts    accountservice.AccountStore
	delegations delegationservice.DelegationStore
	proposals   proposalservice.ProposalStore
	votes       votingservice.VoteStore
	reputation  reputationservice.ReputationStore
	disputes    disputeservice.DisputeStore
	roles       authz.Store
	audits      audit.Store
	runner      engine.TxRunner
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, cleanup, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// Optional read-through cache in front of the proposal store.
	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		b.proposals = proposalstore.NewCachedStore(b.proposals, client.Client, log)
		log.Info("proposal read cache enabled")
	}

	// Audit entries commit with the transition; Kafka delivery is a
	// best-effort forward drained by a worker.
	var auditOpts []audit.Option
	var worker *auditworker.Worker
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer sink.Close()
		inbox := make(chan audit.Entry, 1024)
		auditOpts = append(auditOpts, audit.WithSink(inbox))
		worker = auditworker.NewWorker(sink, inbox, log)
		log.Info("audit forwarding enabled", "topic", cfg.AuditTopic)
	}
	auditor := audit.NewPublisher(b.audits, auditOpts...)

	eng, err := buildEngine(ctx, cfg, log, b, auditor)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "quorum", "quorum-api")
	handler, err := httptransport.NewHandler(eng, log)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(handler, jwttoken.NewMiddlewareAdapter(jwtService), log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	srv := httpserver.New(cfg.Addr, mux)

	g, ctx := errgroup.WithContext(ctx)
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (backends, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory stores")
		return backends{
			accounts:    accountstore.NewInMemoryStore(),
			delegations: delegationstore.NewInMemoryStore(),
			proposals:   proposalstore.NewInMemoryStore(),
			votes:       votingstore.NewInMemoryStore(),
			reputation:  reputationstore.NewInMemoryStore(),
			disputes:    disputestore.NewInMemoryStore(),
			roles:       authz.NewInMemoryStore(),
			audits:      auditmemory.NewInMemoryStore(),
			runner:      engine.NewMemoryTx(),
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return backends{}, nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return backends{}, nil, fmt.Errorf("ping database: %w", err)
	}

	schemas := []string{
		accountstore.Schema(),
		delegationstore.Schema(),
		proposalstore.Schema(),
		votingstore.Schema(),
		reputationstore.Schema(),
		disputestore.Schema(),
		authz.Schema(),
		auditpostgres.Schema(),
	}
	for _, schema := range schemas {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return backends{}, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	log.Info("using postgres stores")
	return backends{
		accounts:    accountstore.NewPostgresStore(db),
		delegations: delegationstore.NewPostgresStore(db),
		proposals:   proposalstore.NewPostgresStore(db),
		votes:       votingstore.NewPostgresStore(db),
		reputation:  reputationstore.NewPostgresStore(db),
		disputes:    disputestore.NewPostgresStore(db),
		roles:       authz.NewPostgresStore(db),
		audits:      auditpostgres.New(db),
		runner:      engine.NewPostgresTx(db),
	}, func() { db.Close() }, nil
}

func buildEngine(ctx context.Context, cfg config.Server, log *slog.Logger, b backends, auditor *audit.Publisher) (*engine.Engine, error) {
	m := metrics.New()
	owner := domain.AccountID(cfg.Owner)

	roles, err := authz.New(owner, b.roles, auditor, authz.WithLogger(log))
	if err != nil {
		return nil, err
	}

	reputation, err := reputationservice.New(b.reputation, b.accounts, roles, auditor,
		reputationservice.WithLogger(log), reputationservice.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	delegations, err := delegationservice.New(b.delegations, b.accounts, b.accounts, reputation, auditor,
		delegationservice.WithLogger(log), delegationservice.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	accounts, err := accountservice.New(b.accounts, roles, delegations, auditor,
		accountservice.WithLogger(log), accountservice.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	proposals, err := proposalservice.New(b.proposals, b.accounts, roles, auditor,
		proposalservice.WithLogger(log), proposalservice.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	votes, err := votingservice.New(b.votes, b.proposals, b.accounts, reputation, auditor,
		votingservice.WithLogger(log), votingservice.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	disputeOpts := []disputeservice.Option{
		disputeservice.WithLogger(log), disputeservice.WithMetrics(m),
	}
	if cfg.Arbitrator != "" {
		disputeOpts = append(disputeOpts, disputeservice.WithArbitrator(domain.AccountID(cfg.Arbitrator)))
	}
	disputes, err := disputeservice.New(b.disputes, b.accounts, roles, escrow.NewInMemoryLedger(), reputation, auditor, disputeOpts...)
	if err != nil {
		return nil, err
	}

	// The in-process ledger loses its balances on restart while dispute rows
	// persist. Rebuild the pool from the pending stakes so those disputes
	// stay resolvable; forfeited stakes already moved to the pending
	// treasury are not recoverable from dispute state.
	if cfg.DatabaseURL != "" {
		credited, err := disputes.RehydrateEscrow(ctx)
		if err != nil {
			return nil, fmt.Errorf("rehydrate escrow: %w", err)
		}
		log.Warn("escrow ledger is in-process; pending treasury balance does not survive restarts",
			"pool_credited", credited)
	}

	return engine.New(engine.Config{
		Accounts:    accounts,
		Delegations: delegations,
		Proposals:   proposals,
		Votes:       votes,
		Reputation:  reputation,
		Disputes:    disputes,
		Roles:       roles,
		Auditor:     auditor,
		Runner:      b.runner,
	})
}
