// Package components is the composition root: it wires config,
// logging, the Postgres pool, every domain service, the saga
// coordinator, the outbox worker pool, the event publisher and the
// HTTP server into one Container, the same shape as the teacher's
// internal/pkg/components.Container.
package components

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"saga-orchestrator/internal/api/handlers"
	"saga-orchestrator/internal/api/routes"
	"saga-orchestrator/internal/config"
	"saga-orchestrator/internal/events"
	"saga-orchestrator/internal/events/kafka"
	"saga-orchestrator/internal/idempotency"
	"saga-orchestrator/internal/ledger"
	"saga-orchestrator/internal/logging"
	"saga-orchestrator/internal/metrics"
	"saga-orchestrator/internal/outbox"
	"saga-orchestrator/internal/saga"
	"saga-orchestrator/internal/transfer"
)

// Container holds every application component, wired once at startup.
type Container struct {
	Config         *config.Config
	Pool           *pgxpool.Pool
	IdempotencyDB  idempotency.Store
	Ledger         ledger.Service
	SagaRepo       saga.Repository[transfer.Data]
	Coordinator    *saga.Coordinator[transfer.Data]
	Steps          []saga.Step[transfer.Data]
	OutboxRepo     outbox.Repository
	Workers        []*outbox.Worker
	EventPublisher events.Publisher
	Router         *gin.Engine
	Server         *http.Server

	workersCancel context.CancelFunc
	workersWG     sync.WaitGroup
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the singleton container, initializing it on
// first call.
func GetInstance() (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer()
	})
	return instance, instanceErr
}

// New initializes all application components. Alias kept for callers
// that don't care about the singleton, matching the teacher's
// components.New().
func New() (*Container, error) {
	return GetInstance()
}

func newContainer() (*Container, error) {
	c := &Container{}

	if err := c.initConfig(); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}
	if err := c.initLogger(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := c.initDomainServices(); err != nil {
		return nil, fmt.Errorf("init domain services: %w", err)
	}
	if err := c.initEventPublisher(); err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}
	if err := c.initOutboxWorkers(); err != nil {
		return nil, fmt.Errorf("init outbox workers: %w", err)
	}
	if err := c.initServer(); err != nil {
		return nil, fmt.Errorf("init server: %w", err)
	}

	logging.Info("all components initialized", nil)
	return c, nil
}

func (c *Container) initConfig() error {
	c.Config = config.Load()
	return nil
}

func (c *Container) initLogger() error {
	logging.Init(c.Config)
	logging.Info("logger initialized", map[string]interface{}{"level": c.Config.Logging.Level})
	return nil
}

func (c *Container) initDatabase() error {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(c.Config.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(c.Config.Database.MaxOpenConns)
	poolConfig.MinConns = int32(c.Config.Database.MaxIdleConns)
	if maxLifetime, err := time.ParseDuration(c.Config.Database.ConnMaxLifetime); err == nil {
		poolConfig.MaxConnLifetime = maxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	c.Pool = pool
	logging.Info("database initialized", map[string]interface{}{
		"host": c.Config.Database.Host, "database": c.Config.Database.Database,
	})
	return nil
}

// initDomainServices wires the idempotency store, ledger, saga
// repository/coordinator and the one concrete saga type (transfer).
func (c *Container) initDomainServices() error {
	c.IdempotencyDB = idempotency.NewPostgresStore(c.Pool)
	c.Ledger = ledger.NewPostgresService(c.Pool, c.Config.Saga.OverdraftLimitCents)
	c.SagaRepo = saga.NewPostgresRepository[transfer.Data](c.Pool, "transfer")
	c.Coordinator = saga.NewCoordinator[transfer.Data](c.SagaRepo)

	c.Steps = []saga.Step[transfer.Data]{
		transfer.NewDebitSenderStep(c.IdempotencyDB, c.Ledger, c.Config.Saga.StepLeaseDefault),
		transfer.NewCreditReceiverStep(c.IdempotencyDB, c.Ledger, c.Config.Saga.StepLeaseDefault, c.Config.Saga.CreditAmountLimitCents),
	}

	c.OutboxRepo = outbox.NewPostgresRepository(c.Pool)
	return nil
}

func (c *Container) initEventPublisher() error {
	if !c.Config.Kafka.Enabled {
		logging.Info("kafka disabled, using no-op event publisher", nil)
		c.EventPublisher = events.NewNoOpPublisher()
		return nil
	}

	kafkaConfig := &kafka.Config{
		Brokers:           c.Config.Kafka.Brokers,
		ClientID:          c.Config.Kafka.ClientID,
		EnableIdempotence: false,
		CompressionType:   "snappy",
		RequiredAcks:      "all",
		MaxRetries:        5,
		RetryBackoff:      100 * time.Millisecond,
	}

	publisher, err := events.NewKafkaPublisher(kafkaConfig)
	if err != nil {
		logging.Warn("failed to initialize kafka, using no-op event publisher", map[string]interface{}{"error": err.Error()})
		c.EventPublisher = events.NewNoOpPublisher()
		return nil
	}

	c.EventPublisher = publisher
	logging.Info("kafka event publisher initialized", map[string]interface{}{"brokers": c.Config.Kafka.Brokers})
	return nil
}

// initOutboxWorkers builds the worker pool and registers the
// StartSaga dispatch handler, which loads the saga, drives it through
// the coordinator, and publishes the terminal lifecycle event.
func (c *Container) initOutboxWorkers() error {
	dispatch := c.makeStartSagaHandler()

	for i := 0; i < c.Config.Saga.WorkerCount; i++ {
		w := outbox.NewWorker(c.OutboxRepo, fmt.Sprintf("worker-%d-%s", i, uuid.New().String()[:8]), c.Config.Saga)
		w.Register("StartSaga", dispatch)
		c.Workers = append(c.Workers, w)
	}
	return nil
}

func (c *Container) initServer() error {
	if c.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	c.Router = gin.Default()
	routes.RegisterRoutes(c.Router, c.Config, c)

	c.Server = &http.Server{
		Addr:           ":" + c.Config.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return nil
}

// Start runs the outbox workers and the HTTP server, blocking until a
// shutdown signal arrives.
func (c *Container) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.workersCancel = cancel
	for _, w := range c.Workers {
		c.workersWG.Add(1)
		go func(w *outbox.Worker) {
			defer c.workersWG.Done()
			w.Run(ctx)
		}(w)
	}

	logging.Info("starting http server", map[string]interface{}{"address": c.Server.Addr})
	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	c.waitForShutdown()
	return nil
}

func (c *Container) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		logging.Error("forced shutdown", err, nil)
	}
	logging.Info("shutdown complete", nil)
}

// Shutdown stops accepting new outbox work, drains in-flight workers,
// closes the HTTP server and every external connection.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.workersCancel != nil {
		c.workersCancel()
	}

	done := make(chan struct{})
	go func() {
		c.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("outbox workers did not drain before shutdown timeout", nil)
	}

	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			logging.Error("failed to close event publisher", err, nil)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return nil
}

func (c *Container) GetConfig() *config.Config { return c.Config }
func (c *Container) GetRouter() *gin.Engine     { return c.Router }

// SagaRepository, SagaSteps and SagaCoordinator implement
// admin.Dependencies for the operator CLI.
func (c *Container) SagaRepository() saga.Repository[transfer.Data]   { return c.SagaRepo }
func (c *Container) SagaSteps() []saga.Step[transfer.Data]            { return c.Steps }
func (c *Container) SagaCoordinator() *saga.Coordinator[transfer.Data] { return c.Coordinator }

// CreateTransferSaga implements handlers.HandlerDependencies.
func (c *Container) CreateTransferSaga(ctx context.Context, fromAccountID, toAccountID int, amountCents int64) (string, error) {
	sagaID := uuid.New().String()
	data := &transfer.Data{
		SagaID:        sagaID,
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		AmountCents:   amountCents,
	}
	if err := c.SagaRepo.CreateSaga(ctx, sagaID, data); err != nil {
		return "", err
	}
	metrics.SagasCreatedTotal.Inc()
	return sagaID, nil
}

// GetSagaStatus implements handlers.HandlerDependencies.
func (c *Container) GetSagaStatus(ctx context.Context, sagaID string) (handlers.SagaStatus, bool, error) {
	inst, err := c.SagaRepo.Load(ctx, sagaID, c.Steps)
	if err != nil {
		return handlers.SagaStatus{}, false, err
	}
	if inst == nil {
		return handlers.SagaStatus{}, false, nil
	}
	return handlers.SagaStatus{
		SagaID:      inst.ID(),
		State:       string(inst.State()),
		CurrentStep: inst.Cursor(),
		Errors:      inst.ErrorLog(),
	}, true, nil
}

// makeStartSagaHandler builds the outbox dispatch closure for
// "StartSaga" messages: load the saga, drive it, publish its terminal
// lifecycle event.
func (c *Container) makeStartSagaHandler() outbox.Handler {
	return func(ctx context.Context, payload []byte) error {
		var body struct {
			SagaId string
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return fmt.Errorf("start saga: decode payload: %w", err)
		}

		inst, err := c.SagaRepo.Load(ctx, body.SagaId, c.Steps)
		if err != nil {
			return fmt.Errorf("start saga: load: %w", err)
		}
		if inst == nil {
			logging.Warn("start saga: no snapshot found, treating as processed", map[string]interface{}{"saga_id": body.SagaId})
			return nil
		}

		if err := c.Coordinator.Process(ctx, inst); err != nil {
			return err
		}

		c.publishTerminalEvent(inst)
		return nil
	}
}

func (c *Container) publishTerminalEvent(inst *saga.Instance[transfer.Data]) {
	now := time.Now()
	switch inst.State() {
	case saga.StateCompleted:
		if err := c.EventPublisher.PublishSagaCompleted(events.SagaCompletedEvent{SagaID: inst.ID(), Timestamp: now}); err != nil {
			logging.Error("failed to publish saga completed event", err, map[string]interface{}{"saga_id": inst.ID()})
		}
	case saga.StateCompensated:
		reason := ""
		if len(inst.ErrorLog()) > 0 {
			reason = inst.ErrorLog()[0]
		}
		if err := c.EventPublisher.PublishSagaCompensated(events.SagaCompensatedEvent{SagaID: inst.ID(), Reason: reason, Timestamp: now}); err != nil {
			logging.Error("failed to publish saga compensated event", err, map[string]interface{}{"saga_id": inst.ID()})
		}
	case saga.StateFatalError:
		if err := c.EventPublisher.PublishSagaFatal(events.SagaFatalEvent{SagaID: inst.ID(), Errors: inst.ErrorLog(), Timestamp: now}); err != nil {
			logging.Error("failed to publish saga fatal event", err, map[string]interface{}{"saga_id": inst.ID()})
		}
	}
}
