package main

import (
	"context"
	"fmt"
	"time"

	"PetAlertAPI/internal/bus"
	"PetAlertAPI/internal/cache"
	"PetAlertAPI/internal/config"
	"PetAlertAPI/internal/database"
	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/mqtt"
	"PetAlertAPI/internal/notify"
	"PetAlertAPI/internal/repository"
	"PetAlertAPI/internal/service"
	"PetAlertAPI/internal/websocket"

	"github.com/redis/go-redis/v9"
)

// app holds everything the subcommands share once wiring is done.
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.Database

	natsConn   *bus.Conn
	mqttClient *mqtt.Client
	rdb        *redis.Client
	hub        *websocket.Hub

	limiter      *service.RateLimiter
	scheduler    *service.BatchScheduler
	alertService *service.AlertService
	ruleService  *service.RuleService

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.log.Close()
}

// loadBase loads configuration, the logger and the database connection.
func loadBase() (*config.Config, *logger.Logger, *database.Database, error) {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Compress:    cfg.Logging.Compress,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if debug {
		log.SetLevel(logger.DEBUG)
	}

	if err := cfg.Validate(); err != nil {
		log.Close()
		return nil, nil, nil, err
	}

	// 3. Database Connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Health(context.Background()); err != nil {
		db.Close()
		log.Close()
		return nil, nil, nil, err
	}

	log.Info("Database connected successfully")
	return cfg, log, db, nil
}

// bootstrap wires the complete alerting pipeline. The hub runs until ctx is
// cancelled.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, log, db, err := loadBase()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}
	a.closers = append(a.closers, func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// 4. Initialize Repositories
	ruleRepo := repository.NewRuleRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)
	contactRepo := repository.NewContactRepository(db.DB)
	petRepo := repository.NewPetRepository(db.DB)

	// 5. Trigger Log
	var triggerLog repository.ITriggerLog = repository.NewTriggerRepository(db.DB)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, keeping the trigger log in Postgres: %v", err)
		} else {
			a.rdb = rdb
			a.closers = append(a.closers, func() { rdb.Close() })
			triggerLog = cache.NewTriggerLog(rdb, cfg.Redis.KeyPrefix)
			log.Info("Trigger log stored in Redis at %s", cfg.Redis.Addr)
		}
	}

	// 6. NATS (anomaly detection and trigger events)
	natsConn, err := bus.Connect(&cfg.NATS, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.natsConn = natsConn
	a.closers = append(a.closers, natsConn.Close)
	log.Info("NATS connected at %s", cfg.NATS.URL)

	// 7. Delivery Channels
	var pushSender service.PushSender
	if cfg.PushEnabled() {
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			MQTT:   &cfg.MQTT,
			Logger: log,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create MQTT client: %w", err)
		}
		if err := mqttClient.Connect(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		a.mqttClient = mqttClient
		a.closers = append(a.closers, mqttClient.Disconnect)

		if err := mqttClient.SubscribeReceipts(handleReceipt(notificationRepo, log)); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to subscribe to push receipts: %w", err)
		}
		pushSender = mqttClient
	} else {
		log.Warn("MQTT broker not configured, push delivery disabled")
	}

	var emailSender service.EmailSender
	if cfg.EmailEnabled() {
		emailSender = notify.NewSMTPSender(&cfg.SMTP)
	} else {
		log.Warn("SMTP host not configured, email delivery disabled")
	}

	a.hub = websocket.NewHub(log)
	go a.hub.Run(ctx)

	// 8. Initialize Services
	a.limiter = service.NewRateLimiter(triggerLog)

	dispatcher, err := service.NewChannelDispatcher(service.DispatcherConfig{
		Notifications: notificationRepo,
		Contacts:      contactRepo,
		Email:         emailSender,
		Push:          pushSender,
		InApp:         a.hub,
		SendTimeout:   cfg.Alerting.SendTimeout,
		Logger:        log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	engine, err := service.NewAlertEngine(service.EngineConfig{
		Rules:         ruleRepo,
		Pets:          petRepo,
		Detector:      natsConn,
		Limiter:       a.limiter,
		Dispatcher:    dispatcher,
		Publisher:     natsConn,
		DetectTimeout: cfg.Alerting.DetectTimeout,
		Logger:        log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.scheduler = service.NewBatchScheduler(ruleRepo, engine, cfg.Alerting.SweepWorkers, cfg.Alerting.PairTimeout, log)
	a.alertService = service.NewAlertService(engine, a.scheduler, log)

	templates, err := service.LoadRuleTemplates(cfg.Alerting.DefaultRulesPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ruleService = service.NewRuleService(ruleRepo, petRepo, notificationRepo, templates, log)

	return a, nil
}

func handleReceipt(notifications repository.INotificationRepository, log *logger.Logger) mqtt.ReceiptHandler {
	return func(ctx context.Context, r mqtt.Receipt) error {
		if r.Status != mqtt.ReceiptDelivered {
			log.Debug("Push %s to device %s reported %q, keeping sent status", r.NotificationID, r.DeviceToken, r.Status)
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		updated, err := notifications.MarkDelivered(ctx, r.NotificationID, models.ChannelPush)
		if err != nil {
			log.Error("Failed to record push receipt for %s: %v", r.NotificationID, err)
			return err
		}
		if !updated {
			log.Debug("Ignoring receipt for unknown or unsent notification %s", r.NotificationID)
		}
		return nil
	}
}
