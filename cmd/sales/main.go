package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/sales"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

func main() {
	service := "sales"
	log := kit.NewLogger(service, os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8083")
	ctx := context.Background()

	tp, err := kit.NewTracerProvider(ctx, service, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatal("init tracing failed", zap.Error(err))
	}

	store, err := docstore.Open(ctx, docstore.ConfigFromEnv("pos:"))
	if err != nil {
		log.Fatal("open store failed", zap.Error(err))
	}

	catalogURL := getenv("CATALOG_URL", "http://localhost:8082")
	inventory := sales.NewCatalogClient(catalogURL, os.Getenv("INTERNAL_TOKEN"))
	log.Info("taking stock from catalog", zap.String("catalog_url", catalogURL))

	reg := kit.NewRegistry()
	s := &sales.Server{
		Recorder: sales.NewRecorder(store, inventory, log, reg),
		Clients:  sales.NewDirectory(store, log, sales.CollectionClients),
		Sellers:  sales.NewDirectory(store, log, sales.CollectionSellers),
		Log:      log,
	}

	h := sales.NewHandler(s, sales.HTTPDeps{
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
