package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/auth"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

func main() {
	service := "auth"
	log := kit.NewLogger(service, os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8081")
	jwtSecret := getenv("JWT_SECRET", "dev-secret")
	ctx := context.Background()

	tp, err := kit.NewTracerProvider(ctx, service, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatal("init tracing failed", zap.Error(err))
	}

	docs, err := docstore.Open(ctx, docstore.ConfigFromEnv("pos:"))
	if err != nil {
		log.Fatal("open store failed", zap.Error(err))
	}
	users := auth.NewStore(docs)

	if err := auth.EnsureAdmin(ctx, users, log,
		os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	}

	s := &auth.Server{
		Log:   log,
		Store: users,
		JWT:   auth.NewTokenMaker(jwtSecret),
	}

	reg := kit.NewRegistry()
	h := auth.NewHandler(s, auth.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	})

	err = kit.RunHTTPServer(":"+port, kit.Traced(service, h), log,
		tp.Shutdown,
		func(context.Context) error { return docs.Close() },
	)
	if err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
