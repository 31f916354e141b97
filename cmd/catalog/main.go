package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

func main() {
	service := "catalog"
	log := kit.NewLogger(service, os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8082")
	ctx := context.Background()

	tp, err := kit.NewTracerProvider(ctx, service, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatal("init tracing failed", zap.Error(err))
	}

	store, err := docstore.Open(ctx, docstore.ConfigFromEnv("pos:"))
	if err != nil {
		log.Fatal("open store failed", zap.Error(err))
	}

	reg := kit.NewRegistry()
	s := &catalog.Server{
		Service:       catalog.NewService(store, log, reg),
		Log:           log,
		InternalToken: os.Getenv("INTERNAL_TOKEN"),
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	})

	err = kit.RunHTTPServer(":"+port, kit.Traced(service, h), log,
		tp.Shutdown,
		func(context.Context) error { return store.Close() },
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
