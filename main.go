package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	domain "github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/modules/api"
	"github.com/example/product-catalog/modules/cache"
	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/database"
	"github.com/example/product-catalog/modules/dispatcher"
	"github.com/example/product-catalog/modules/jobstore"
	"github.com/example/product-catalog/modules/photo"
	"github.com/example/product-catalog/modules/product"
	"github.com/example/product-catalog/modules/publisher"
	"github.com/example/product-catalog/modules/queue"
	"github.com/example/product-catalog/modules/router"
	"github.com/example/product-catalog/modules/user"
	"github.com/example/product-catalog/modules/worker"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/middleware/accesslog"
	"github.com/go-monolith/mono/middleware/requestid"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
		case "publish":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: product-catalog publish <product-id>")
				os.Exit(2)
			}
			os.Exit(runPublish(os.Args[2]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected serve or publish)\n", os.Args[1])
			os.Exit(2)
		}
	}

	serve()
}

func databaseConfig() database.Config {
	cfg := database.DefaultConfig()
	cfg.Driver = getEnv("DB_DRIVER", cfg.Driver)
	cfg.Path = getEnv("DB_PATH", cfg.Path)
	cfg.DSN = getEnv("DATABASE_URL", cfg.DSN)
	cfg.Debug = getEnvBool("DB_DEBUG", cfg.Debug)
	return cfg
}

// runPublish publishes one product from the command line and returns the exit code.
func runPublish(id string) int {
	db, err := database.Open(databaseConfig())
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return 1
	}
	defer database.Close(db)

	products := product.NewService(product.NewRepository(db), nil)
	scheduler := publisher.NewScheduler(products, nil, nil)

	_, changed, err := scheduler.Publish(context.Background(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		fmt.Println("Product not found")
		return -1
	case err != nil:
		log.Printf("Failed to publish product: %v", err)
		return 1
	case changed:
		fmt.Println("Product published")
	default:
		fmt.Println("Product already published")
	}
	return 0
}

func serve() {
	log.Println("=== Product Catalog ===")

	httpPort := getEnvInt("HTTP_PORT", 3000)
	natsPort := getEnvInt("NATS_PORT", 4222)
	storagePath := getEnv("STORAGE_PATH", "/tmp/product-catalog")
	redisAddr := getEnv("REDIS_ADDR", "")
	queueBackend := getEnv("QUEUE_BACKEND", queue.BackendJetStream)

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(storagePath),
		mono.WithNATSPort(natsPort),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Middleware is registered before modules.
	requestIDMiddleware, err := requestid.New(requestid.WithHeaderName("X-Request-ID"))
	if err != nil {
		log.Fatalf("Failed to create requestid middleware: %v", err)
	}
	if err := app.Register(requestIDMiddleware); err != nil {
		log.Fatalf("Failed to register requestid middleware: %v", err)
	}
	accessLogMiddleware, err := accesslog.New(
		accesslog.WithOutput(os.Stdout),
		accesslog.WithFormat(accesslog.FormatJSON),
		accesslog.WithFields([]accesslog.Field{
			accesslog.FieldTimestamp,
			accesslog.FieldRequestID,
			accesslog.FieldModule,
			accesslog.FieldService,
			accesslog.FieldDurationMS,
			accesslog.FieldStatus,
		}),
	)
	if err != nil {
		log.Fatalf("Failed to create accesslog middleware: %v", err)
	}
	if err := app.Register(accessLogMiddleware); err != nil {
		log.Fatalf("Failed to register accesslog middleware: %v", err)
	}

	kvPlugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{jobstore.BucketConfig()},
	})
	if err != nil {
		log.Fatalf("Failed to create kv plugin: %v", err)
	}
	if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
		log.Fatalf("Failed to register kv plugin: %v", err)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{photo.BucketConfig()},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	// Persistence
	dbCfg := databaseConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	databaseModule := database.NewModule(db, dbCfg.Driver)

	var productCache product.Cache
	var cacheModule *cache.Module
	var rateStorage fiber.Storage
	if redisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = redisAddr
		c, err := cache.Connect(context.Background(), cacheCfg)
		if err != nil {
			log.Printf("Warning: cache disabled: %v", err)
		} else {
			productCache = c
			cacheModule = cache.NewModule(c)
			if storage, err := api.NewRedisRateStorage(redisAddr); err == nil {
				rateStorage = storage
			} else {
				log.Printf("Warning: rate limiter falls back to memory: %v", err)
			}
		}
	}

	// Queue and job status
	queueCfg := queue.DefaultConfig()
	queueCfg.URL = getEnv("NATS_URL", fmt.Sprintf("nats://localhost:%d", natsPort))
	queueCfg.AckWait = getEnvDuration("QUEUE_ACK_WAIT", queueCfg.AckWait)
	queueModule, err := queue.NewModule(queueBackend, queueCfg)
	if err != nil {
		log.Fatalf("Failed to create queue: %v", err)
	}
	jobstoreModule := jobstore.NewModule(app.Logger())
	jobs := jobstoreModule.Store()

	// Notifications
	var mailer channel.Mailer = channel.NewLogMailer()
	if smtpAddr := getEnv("SMTP_ADDR", ""); smtpAddr != "" {
		mailer = channel.NewSMTPMailer(smtpAddr, nil)
	}
	notificationModule, err := channel.NewModule(channel.NewNotificationRepository(db), mailer, getEnv("MAIL_FROM", "noreply@example.com"))
	if err != nil {
		log.Fatalf("Failed to create notification module: %v", err)
	}
	notifications := dispatcher.New(queueModule.Queue(), notificationModule.Channels()...)

	// Catalog and users
	products := product.NewService(product.NewRepository(db), productCache)
	productModule := product.NewModule(products)
	scheduler := publisher.NewScheduler(products, queueModule.Queue(), jobs)

	tokenCfg := user.DefaultTokenConfig()
	tokenCfg.Secret = getEnv("JWT_SECRET", tokenCfg.Secret)
	tokenCfg.TTL = getEnvDuration("JWT_TTL", tokenCfg.TTL)
	userRepo := user.NewRepository(db)
	users := user.NewService(userRepo, user.NewPasswordHasher(user.DefaultBcryptCost), user.NewTokenManager(tokenCfg))
	userModule := user.NewModule(users, &user.AdminSeed{
		Name:     getEnv("ADMIN_NAME", "Admin"),
		Email:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		Password: getEnv("ADMIN_PASSWORD", ""),
	})

	routerModule := router.NewModule(router.New(user.NewDirectory(userRepo), notifications))

	// Background workers
	poolCfg := worker.DefaultPoolConfig()
	poolCfg.NumWorkers = getEnvInt("WORKER_COUNT", poolCfg.NumWorkers)
	poolCfg.MaxRetries = getEnvInt("WORKER_MAX_RETRIES", poolCfg.MaxRetries)
	if poolCfg.HeartbeatInterval >= queueCfg.AckWait {
		poolCfg.HeartbeatInterval = queueCfg.AckWait / 3
	}
	workerModule := worker.NewModule(poolCfg, queueModule.Queue(), jobs, worker.NewProcessor(notifications, scheduler))

	photoModule := photo.NewModule(app.Logger())

	apiCfg := api.DefaultConfig()
	apiCfg.Port = httpPort
	apiCfg.SpecFilePath = getEnv("SPEC_FILE_PATH", apiCfg.SpecFilePath)
	apiCfg.RateLimit = getEnvInt("RATE_LIMIT", apiCfg.RateLimit)
	apiCfg.RateStorage = rateStorage
	apiModule := api.NewModule(apiCfg, api.Services{
		Products:      products,
		Publisher:     scheduler,
		Users:         users,
		Notifications: notificationModule,
		Photos:        photoModule,
		Jobs:          jobs,
	})

	// Independent modules first, then the ones that use them.
	modules := []mono.Module{databaseModule}
	if cacheModule != nil {
		modules = append(modules, cacheModule)
	}
	modules = append(modules,
		queueModule,
		jobstoreModule,
		photoModule,
		notificationModule,
		userModule,
		productModule,
		routerModule,
		workerModule,
		apiModule,
	)
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	log.Println("Application started successfully")
	log.Printf("HTTP API:  http://localhost:%d/api/v1", httpPort)
	log.Printf("Queue:     %s", queueBackend)
	log.Printf("Storage:   %s", storagePath)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as time.Duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
