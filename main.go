package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"fenix-advisor/backend/config"
	"fenix-advisor/backend/database"
	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/engine"
	"fenix-advisor/backend/middlewares"
	"fenix-advisor/backend/oracle"
	"fenix-advisor/backend/routes"
	"fenix-advisor/backend/session"
	"fenix-advisor/backend/utils"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		log.Fatalf("gemini client error: %v", err)
	}
	defer gemini.Close()

	layout := datasource.Layout{
		DateColumn:   cfg.DateColumn,
		AmountColumn: cfg.AmountColumn,
		EntityColumn: cfg.EntityColumn,
		StatusColumn: cfg.StatusColumn,
		Decimal:      utils.ParseConvention(cfg.AmountDecimal),
	}
	src := defaultSource(ctx, cfg, layout, logger)

	cache := datasource.NewCache(64, cfg.DatasetTTL, layout, engine.Profile, logger)
	eng := engine.New(gemini, cache, engine.Options{
		PlanTimeout:   cfg.PlanTimeout,
		AnswerTimeout: cfg.AnswerTimeout,
		SampleRows:    cfg.SampleRows,
		TableRowLimit: cfg.TableRowLimit,
		Anchor:        engine.ParseAnchor(cfg.ProjectionAnchor),
	}, logger)
	store := session.NewStore(cfg.HistorySize, cfg.SessionTTL, func() datasource.Source { return src })
	go sweepSessions(store, cfg.SessionTTL, logger)

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.Logger(logger), middlewares.CORS())
	routes.Register(r, cfg, eng, cache, store)
	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("source_kind", cfg.SourceKind))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newLogger(level string) *zap.Logger {
	zc := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zc.Level = lvl
	}
	logger, err := zc.Build()
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	return logger
}

// defaultSource builds the ledger new sessions start with. It returns nil
// when sessions must upload a file first.
func defaultSource(ctx context.Context, cfg config.Config, layout datasource.Layout, logger *zap.Logger) datasource.Source {
	switch cfg.SourceKind {
	case "sheets":
		opts := []option.ClientOption{}
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		} else if cfg.GeminiAPIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.GeminiAPIKey))
		}
		sheet, err := datasource.NewGoogleSheet(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsRange, opts...)
		if err != nil {
			log.Fatalf("sheets client error: %v", err)
		}
		return sheet
	case "postgres":
		pool := database.Connect(cfg.DatabaseURL)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		missing, err := database.MissingLedgerColumns(pctx, pool, cfg.LedgerTable, []string{layout.DateColumn, layout.AmountColumn})
		if err != nil {
			log.Fatalf("ledger table check error: %v", err)
		}
		if len(missing) > 0 {
			logger.Warn("ledger table is missing required columns", zap.String("table", cfg.LedgerTable), zap.Strings("missing", missing))
		}
		return datasource.NewPostgresTable(pool, cfg.LedgerTable)
	}
	if cfg.SourcePath == "" {
		logger.Info("no ledger file configured; sessions start empty until an upload")
		return nil
	}
	f, err := datasource.OpenFile(cfg.SourcePath, cfg.SourceSheet)
	if err != nil {
		log.Fatalf("ledger file error: %v", err)
	}
	return f
}

func sweepSessions(store *session.Store, ttl time.Duration, logger *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	for range time.Tick(interval) {
		if n := store.Sweep(); n > 0 {
			logger.Info("expired sessions removed", zap.Int("count", n), zap.Int("live", store.Len()))
		}
	}
}
