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

	"github.com/go-chi/chi/v5"

	apprec "github.com/bryanwahyu/naturelens/internal/application/recognition"
	"github.com/bryanwahyu/naturelens/internal/config"
	domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
	aiopenai "github.com/bryanwahyu/naturelens/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/naturelens/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/naturelens/internal/infra/db/postgres"
	"github.com/bryanwahyu/naturelens/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/naturelens/internal/infra/storage"
	"github.com/bryanwahyu/naturelens/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect record store (mysql default, postgres optional)
	var repo domain.Repository
	var checkers = map[string]middleware.HealthChecker{}
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		repo = postgresp.NewRecognitionRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		repo = mysqlp.NewRecognitionRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}

	// init minio (signing mechanism for scoped credentials)
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}
	checkers["storage"] = store

	// init classifier
	classifier := aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init service
	svc := &apprec.Service{
		Repo:       repo,
		Signer:     store,
		Classifier: classifier,
		Clock:      apprec.SystemClock{},
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(httpserver.CORS())
	mux.Use(middleware.SubjectAuth(cfg.Auth.Tokens))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RateLimitMiddleware(30, 1))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
