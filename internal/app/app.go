package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"backoffice/internal/config"
	"backoffice/internal/events"
	"backoffice/internal/redis"
	"backoffice/internal/repository"
	"backoffice/internal/services"
	"backoffice/pkg/broker"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// App holds the wired modules. The HTTP layer (out of process scope here)
// consumes the services; the event handlers are registered on the bus at
// build time so the dispatch graph lives in one place.
type App struct {
	Bus          *pkgevents.Bus
	Orders       *services.OrderService
	Products     *services.ProductService
	Records      *services.AttendanceRecordService
	Settings     *services.SettingService
	Applications *services.ApplicationService
	OutboxWorker *services.OutboxWorker

	redisClient *goredis.Client
	publisher   broker.Publisher
	consumers   []*broker.KafkaConsumer
	log         *logger.Logger
}

// New wires every module against the shared infrastructure.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (*App, error) {
	redisClient, err := redis.NewClient(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	locks := redis.NewLockManager(redisClient)
	productCache := redis.NewProductCache(redisClient, 5*time.Minute)
	publisher := broker.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","))

	txs := repository.NewTxRunner(db)
	outboxRepo := repository.NewOutboxRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)

	bus := pkgevents.NewBus(log)

	a := &App{
		Bus:      bus,
		Orders:   services.NewOrderService(orderRepo, outboxRepo, txs, bus, log),
		Products: services.NewProductService(productRepo, orderRepo, txs, productCache, locks, log, cfg.StockLockWait, cfg.StockLockTTL),
		Records:  services.NewAttendanceRecordService(recordRepo, outboxRepo, txs, bus, log),
		Settings: services.NewSettingService(settingRepo, outboxRepo, txs, bus, log),
		Applications: services.NewApplicationService(
			applicationRepo, outboxRepo, txs, bus, log),
		OutboxWorker: services.NewOutboxWorker(outboxRepo, publisher, log,
			services.WithInterval(cfg.OutboxInterval),
			services.WithBatchSize(cfg.OutboxBatchSize),
			services.WithMaxAttempts(cfg.OutboxMaxAttempts),
		),
		redisClient: redisClient,
		publisher:   publisher,
		log:         log,
	}

	// The dispatch graph: who reacts to what.
	bus.Subscribe(events.EventOrderCreated, a.Products.HandleOrderCreated)
	bus.Subscribe(events.EventSettingUpdated, a.Records.HandleSettingUpdated)
	bus.Subscribe(events.EventAttendanceRecorded, a.Applications.HandleAttendanceRecorded)
	bus.Subscribe(events.EventApplicationStatusChanged, a.Settings.HandleApplicationStatusChanged)

	// Every topic with a subscriber gets a consumer in this service's group.
	// The in-process dispatch after commit is only the fast path; the broker
	// round trip is what guarantees a failed handler sees the event again.
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	for _, topic := range []pkgevents.Type{
		events.EventOrderCreated,
		events.EventSettingUpdated,
		events.EventAttendanceRecorded,
		events.EventApplicationStatusChanged,
	} {
		a.consumers = append(a.consumers,
			broker.NewKafkaConsumer(brokers, cfg.KafkaGroupID, string(topic), a.relayMessage, log))
	}

	return a, nil
}

// relayMessage turns a broker message read from one of our own topics back
// into a typed event and runs it through the bus. A failing handler makes
// the whole delivery retryable so the consumer holds the offset.
func (a *App) relayMessage(ctx context.Context, msg broker.Message) error {
	evt, err := events.Decode(pkgevents.Type(msg.Topic), msg.Payload)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, logger.RequestIdKey, uuid.New().String())
	return a.Bus.Deliver(ctx, evt)
}

// Start launches the background outbox publisher and the topic consumers.
func (a *App) Start() {
	a.OutboxWorker.Start()
	for _, c := range a.consumers {
		c.Start()
	}
}

// Shutdown stops the worker and consumers and closes broker and cache
// connections.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.OutboxWorker.Stop(ctx); err != nil {
		a.log.Errorf("outbox worker did not stop cleanly: %v", err)
	}
	for _, c := range a.consumers {
		if err := c.Stop(ctx); err != nil {
			a.log.Errorf("consumer did not stop cleanly: %v", err)
		}
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Errorf("failed to close broker publisher: %v", err)
	}
	if err := a.redisClient.Close(); err != nil {
		a.log.Errorf("failed to close redis client: %v", err)
	}
}
