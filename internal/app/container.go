package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	calendarApp "github.com/felixgeelhaar/nestly/internal/calendar/application"
	calendarSubscribers "github.com/felixgeelhaar/nestly/internal/calendar/application/subscribers"
	calendarWorkers "github.com/felixgeelhaar/nestly/internal/calendar/application/workers"
	calendarDomain "github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/internal/calendar/infrastructure/caldav"
	notificationApp "github.com/felixgeelhaar/nestly/internal/notification/application"
	notificationSubscribers "github.com/felixgeelhaar/nestly/internal/notification/application/subscribers"
	notificationInfra "github.com/felixgeelhaar/nestly/internal/notification/infrastructure"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/scheduling/infrastructure/idempotency"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Infrastructure. DBConn is nil for the memory driver and RedisClient is
	// nil when Redis is not configured or not reachable in development.
	DBConn      database.Connection
	DBDriver    database.Driver
	RedisClient *redis.Client
	Repos       *Repositories
	Idempotency commands.IdempotencyStore

	// Scheduling services
	Policy       schedulingDomain.Policy
	Clock        schedulingDomain.Clock
	Ledger       *services.BookingLedger
	Availability *services.AvailabilityStore
	Resolver     *services.ConflictResolver
	StateMachine *services.BookingStateMachine
	Expander     *services.RecurrenceExpander

	// Scheduling command handlers
	RequestBookingHandler      *commands.RequestBookingHandler
	RespondToBookingHandler    *commands.RespondToBookingHandler
	CancelBookingHandler       *commands.CancelBookingHandler
	DeclareAvailabilityHandler *commands.DeclareAvailabilityHandler
	RetractAvailabilityHandler *commands.RetractAvailabilityHandler
	SweepCompletionsHandler    *commands.SweepCompletionsHandler
	LinkCalendarRefHandler     *commands.LinkCalendarRefHandler

	// Scheduling query handlers
	ListBookingsHandler    *queries.ListBookingsHandler
	GetAvailabilityHandler *queries.GetAvailabilityHandler
	CheckAdmissionHandler  *queries.CheckAdmissionHandler
	FindOpenSlotsHandler   *queries.FindOpenSlotsHandler

	// Events. EventBus is set only for the in-process broker, where the
	// outbox processor delivers straight to Consumers.
	EventPublisher  eventbus.Publisher
	EventBus        *eventbus.InProcessEventBus
	Consumers       *eventbus.ConsumerRegistry
	OutboxProcessor *outbox.Processor

	// Calendar. CalendarSync and CalendarRetryWorker are nil while sync is
	// disabled.
	CalendarSync           *calendarApp.SyncService
	CalendarSyncSubscriber *calendarSubscribers.CalendarSyncSubscriber
	CalendarRetryWorker    *calendarWorkers.CalendarRetryWorker

	// Notifications
	Notifier               notificationApp.Notifier
	NotificationSubscriber *notificationSubscribers.BookingNotificationSubscriber
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
		Policy:  PolicyFromConfig(cfg),
		Clock:   schedulingDomain.SystemClock{},
	}

	if err := c.connectDatabase(ctx); err != nil {
		return nil, err
	}
	c.connectRedis(ctx)

	repos, err := NewRepositoryFactory(c.DBConn, c.Policy.Loc()).Build()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Repos = repos

	if c.RedisClient != nil {
		c.Idempotency = idempotency.NewRedisStore(c.RedisClient, cfg.IdempotencyTTL)
	} else {
		c.Idempotency = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	if err := c.setupEventPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	c.wireScheduling()

	if err := c.wireCalendar(); err != nil {
		c.Close()
		return nil, err
	}
	c.wireNotifications()

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	processorConfig.RetentionDays = cfg.OutboxRetentionDays
	processorConfig.CleanupInterval = cfg.OutboxCleanupInterval
	c.OutboxProcessor = outbox.NewProcessor(c.Repos.Outbox, c.EventPublisher, processorConfig, logger)
	c.OutboxProcessor.SetMetrics(c.Metrics)
	c.Consumers.SetMetrics(c.Metrics)

	c.registerHealthChecks()

	logger.Info("container ready",
		"driver", c.DBDriver,
		"broker", cfg.EventBroker,
		"redis", c.RedisClient != nil,
		"calendar_sync", c.CalendarSync != nil,
	)
	return c, nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	dbConfig := database.Config{
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
		MaxConns:   c.Config.DatabaseMaxConns,
	}
	c.DBDriver = dbConfig.ResolvedDriver()
	if c.DBDriver == database.DriverMemory {
		c.Logger.Warn("using in-memory storage, nothing survives a restart")
		return nil
	}

	conn, err := database.NewConnection(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	applied, err := migrations.Run(ctx, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		c.Logger.Info("applied migrations", "count", len(applied), "versions", applied)
	}

	c.DBConn = conn
	c.Logger.Info("connected to database", "driver", c.DBDriver)
	return nil
}

// connectRedis is optional in development: failures fall back to the
// in-memory idempotency store.
func (c *Container) connectRedis(ctx context.Context) {
	if c.Config.RedisURL == "" {
		return
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		c.Logger.Warn("invalid Redis URL, idempotency will use in-memory fallback", "error", err)
		return
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		c.Logger.Warn("Redis not available, idempotency will use in-memory fallback", "error", err)
		return
	}
	c.RedisClient = client
	c.Logger.Info("connected to Redis")
}

func (c *Container) setupEventPublisher() error {
	cfg := c.Config
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		c.Consumers = eventbus.NewConsumerRegistry(c.Logger)
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, c.Logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
			return nil
		}
		c.EventPublisher = publisher

	case config.BrokerKafka:
		c.Consumers = eventbus.NewConsumerRegistry(c.Logger)
		publisher, err := eventbus.NewKafkaPublisher(eventbus.KafkaConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Logger:      c.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		c.EventPublisher = publisher

	default:
		c.EventBus = eventbus.NewInProcessEventBus(c.Logger)
		c.Consumers = c.EventBus.GetRegistry()
		c.EventPublisher = c.EventBus
	}
	return nil
}

// NewBrokerConsumer connects a consumer that feeds broker deliveries into
// Consumers. It returns nil for the in-process broker, where the outbox
// processor dispatches directly.
func (c *Container) NewBrokerConsumer(group string) (eventbus.Consumer, error) {
	cfg := c.Config
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:       cfg.RabbitMQURL,
			QueueName: group,
			Exchange:  cfg.RabbitMQExchange,
			Logger:    c.Logger,
		}, c.Consumers)
		if err != nil {
			return nil, err
		}
		return consumer, nil
	case config.BrokerKafka:
		consumer, err := eventbus.NewKafkaConsumer(eventbus.KafkaConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
			GroupID:     group,
			Logger:      c.Logger,
		}, c.Consumers)
		if err != nil {
			return nil, err
		}
		return consumer, nil
	default:
		return nil, nil
	}
}

func (c *Container) wireScheduling() {
	repos := c.Repos
	logger := c.Logger

	c.Ledger = services.NewBookingLedger(repos.Bookings)
	c.Availability = services.NewAvailabilityStore(repos.Availability, c.Ledger, c.Policy, c.Clock, logger)
	c.Resolver = services.NewConflictResolver(c.Ledger, c.Availability, c.Policy, c.Clock, logger)
	c.StateMachine = services.NewBookingStateMachine(c.Resolver, c.Clock, logger)
	c.Expander = services.NewRecurrenceExpander(c.Policy)

	c.RequestBookingHandler = commands.NewRequestBookingHandler(repos.Bookings, repos.Locker, c.Resolver, c.Expander, repos.Outbox, repos.UnitOfWork, c.Idempotency, c.Clock, c.Metrics, logger)
	c.RespondToBookingHandler = commands.NewRespondToBookingHandler(repos.Bookings, repos.Locker, c.StateMachine, repos.Outbox, repos.UnitOfWork, c.Metrics, logger)
	c.CancelBookingHandler = commands.NewCancelBookingHandler(repos.Bookings, c.StateMachine, repos.Outbox, repos.UnitOfWork, c.Metrics, logger)
	c.DeclareAvailabilityHandler = commands.NewDeclareAvailabilityHandler(c.Availability, repos.Locker, c.Expander, repos.Outbox, repos.UnitOfWork, c.Policy, c.Clock, logger)
	c.RetractAvailabilityHandler = commands.NewRetractAvailabilityHandler(c.Availability, repos.Locker, repos.Outbox, repos.UnitOfWork, logger)
	c.SweepCompletionsHandler = commands.NewSweepCompletionsHandler(repos.Bookings, c.StateMachine, repos.Outbox, repos.UnitOfWork, c.Clock, c.Metrics, logger)
	c.LinkCalendarRefHandler = commands.NewLinkCalendarRefHandler(c.Availability, repos.UnitOfWork, c.Clock, logger)

	c.ListBookingsHandler = queries.NewListBookingsHandler(c.Ledger)
	c.GetAvailabilityHandler = queries.NewGetAvailabilityHandler(c.Availability, c.Ledger, c.Policy)
	c.CheckAdmissionHandler = queries.NewCheckAdmissionHandler(c.Resolver)
	c.FindOpenSlotsHandler = queries.NewFindOpenSlotsHandler(c.Resolver)
}

func (c *Container) wireCalendar() error {
	cfg := c.Config
	if !cfg.CalendarSyncEnabled {
		return nil
	}

	adapter, err := caldav.NewAdapter(caldav.Config{
		BaseURL:         cfg.CalDAVURL,
		Username:        cfg.CalDAVUsername,
		Password:        cfg.CalDAVPassword,
		BearerToken:     cfg.CalDAVBearerToken,
		CalendarPath:    cfg.CalDAVCalendarPath,
		BreakerFailures: uint32(max(cfg.CalendarBreakerFailures, 1)),
		BreakerTimeout:  cfg.CalendarBreakerTimeout,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create CalDAV adapter: %w", err)
	}

	linker := calendarApp.RefLinkerFunc(func(ctx context.Context, blockID uuid.UUID, ref string) error {
		return c.LinkCalendarRefHandler.Handle(ctx, commands.LinkCalendarRefCommand{BlockID: blockID, Ref: ref})
	})

	backoff := calendarDomain.DefaultBackoff()
	if cfg.CalendarRetryLimit > 0 {
		backoff.MaxAttempts = cfg.CalendarRetryLimit
	}

	c.CalendarSync = calendarApp.NewSyncService(adapter, c.Repos.Failures, linker, backoff, c.Metrics, c.Logger)
	c.CalendarSyncSubscriber = calendarSubscribers.NewCalendarSyncSubscriber(c.CalendarSync, c.Logger)
	c.CalendarRetryWorker = calendarWorkers.NewCalendarRetryWorker(c.CalendarSync, c.Repos.Failures, calendarWorkers.DefaultRetryBatch, c.Metrics, c.Logger)
	c.Consumers.Register(c.CalendarSyncSubscriber)
	return nil
}

func (c *Container) wireNotifications() {
	if c.EventBus != nil {
		c.Notifier = notificationInfra.NewLogNotifier(c.Logger)
	} else {
		c.Notifier = notificationInfra.NewBrokerNotifier(c.EventPublisher)
	}
	c.NotificationSubscriber = notificationSubscribers.NewBookingNotificationSubscriber(c.Notifier, c.Metrics, c.Logger)
	c.Consumers.Register(c.NotificationSubscriber)
}

func (c *Container) registerHealthChecks() {
	c.Health.Register("process", func(context.Context) observability.HealthCheckResult {
		return observability.HealthCheckResult{Status: observability.HealthStatusHealthy, Message: "ok"}
	})
	if c.DBConn != nil {
		c.Health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, c.DBConn.Ping))
	}
	if c.RedisClient != nil {
		c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	if c.Config.EventBroker == config.BrokerKafka {
		c.Health.Register("kafka", observability.PingChecker("kafka", observability.HealthStatusDegraded, eventbus.KafkaReadyCheck(c.Config.KafkaBrokers)))
	}
	if c.CalendarSync != nil {
		failures := c.Repos.Failures
		c.Health.Register("calendar", func(ctx context.Context) observability.HealthCheckResult {
			open, err := failures.CountOpen(ctx)
			if err != nil {
				return observability.HealthCheckResult{Status: observability.HealthStatusDegraded, Message: "calendar: " + err.Error()}
			}
			if open > 0 {
				return observability.HealthCheckResult{Status: observability.HealthStatusDegraded, Message: fmt.Sprintf("calendar: %d failed syncs pending retry", open)}
			}
			return observability.HealthCheckResult{Status: observability.HealthStatusHealthy, Message: "calendar ok"}
		})
	}
}

// FlushOutbox publishes pending events once. Short-lived processes call it
// after a command so in-process subscribers run before exit.
func (c *Container) FlushOutbox(ctx context.Context) error {
	return c.OutboxProcessor.ProcessOnce(ctx)
}

// Close releases all resources.
func (c *Container) Close() error {
	var errs []error
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PolicyFromConfig maps the configured policy onto the domain type.
func PolicyFromConfig(cfg *config.Config) schedulingDomain.Policy {
	p := cfg.Scheduling
	return schedulingDomain.Policy{
		Location:                cfg.Location(),
		LateCancellationWindow:  p.LateCancellationWindow,
		MinLeadTime:             p.MinLeadTime,
		EmergencySkipsLeadTime:  p.EmergencySkipsLeadTime,
		EmergencySkipsPastStart: p.EmergencySkipsPastStart,
		OpenWhenNoAvailability:  p.OpenWhenNoAvailability,
		MaxOccurrences:          p.MaxOccurrences,
		MaxRecurrenceHorizon:    p.MaxRecurrenceHorizon,
	}
}
