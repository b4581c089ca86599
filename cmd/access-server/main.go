// Package main provides the catalog access server entry point: the HTTP
// service that authenticates callers and decides dataset access.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dataplane/catalog-access/pkg/access"
	"github.com/dataplane/catalog-access/pkg/auth"
	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
	"github.com/dataplane/catalog-access/pkg/server"
	"github.com/dataplane/catalog-access/pkg/subjects"
)

func main() {
	var (
		listenAddr       string
		databaseType     string
		databaseDSN      string
		jwksURL          string
		resourceServerID string
		seedVocabulary   bool
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&jwksURL, "jwks-url", "", "Identity provider JWKS URL")
	flag.StringVar(&resourceServerID, "resource-server-id", "", "OAuth2 resource server URI stripped from client scopes")
	flag.BoolVar(&seedVocabulary, "seed-vocabulary", false, "Seed the static permission vocabulary at startup")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if jwksURL == "" {
		jwksURL = os.Getenv("ACCESS_JWKS_URL")
	}
	if resourceServerID == "" {
		resourceServerID = envOrDefault("ACCESS_RESOURCE_SERVER_ID", "https://catalog.local")
	}
	if jwksURL == "" {
		glog.Fatal("JWKS URL is required (use -jwks-url flag or ACCESS_JWKS_URL environment variable)")
	}

	logger.Info("starting access server",
		"listen", listenAddr,
		"jwksUrl", jwksURL,
		"resourceServerId", resourceServerID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	permissionStore := permissions.NewStore(gormDB)
	if err := permissionStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate permission tables: %v", err)
	}
	catalogStore := datacatalog.NewStore(gormDB)
	if err := catalogStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate catalog tables: %v", err)
	}

	resolver := permissions.NewResolver(permissionStore, logger)
	evaluator := access.NewEvaluator(resolver, catalogStore, logger)
	guard := access.NewGuard(resolver, evaluator, logger)
	subjectService := subjects.NewService(permissionStore, resolver, logger)

	if seedVocabulary {
		if err := subjectService.SeedVocabulary(ctx); err != nil {
			glog.Fatalf("Failed to seed permission vocabulary: %v", err)
		}
		logger.Info("permission vocabulary seeded")
	}

	jwks := auth.NewJWKSClient(jwksURL, 0)
	parser := auth.NewTokenParser(jwks.Keyfunc, resourceServerID)

	srv := server.New(parser, guard, evaluator, resolver, subjectService, logger)
	router := srv.Router()

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("access server ready", "listen", listenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("access server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = envOrDefault("DATABASE_TYPE", "postgres")
	}

	switch dbType {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database type %q (expected postgres or mysql)", dbType)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
