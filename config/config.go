package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string
	LogLevel  string

	GeminiAPIKey string
	GeminiModel  string

	// Tabular source: "file", "sheets" or "postgres".
	SourceKind            string
	SourcePath            string
	SourceSheet           string
	SheetsSpreadsheetID   string
	SheetsRange           string
	GoogleCredentialsFile string
	DatabaseURL           string
	LedgerTable           string

	DateColumn    string
	AmountColumn  string
	EntityColumn  string
	StatusColumn  string
	AmountDecimal string // auto | comma | point

	DatasetTTL    time.Duration
	PlanTimeout   time.Duration
	AnswerTimeout time.Duration
	SessionTTL    time.Duration

	HistorySize      int
	TableRowLimit    int
	SampleRows       int
	ProjectionAnchor string // now | last-observed
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:      get("PORT", "8080"),
		JWTSecret: must("JWT_SECRET"),
		LogLevel:  get("LOG_LEVEL", "info"),

		GeminiAPIKey: get("GEMINI_API_KEY", ""),
		GeminiModel:  get("GEMINI_MODEL", "gemini-1.5-flash"),

		SourceKind:            strings.ToLower(get("SOURCE_KIND", "file")),
		SourcePath:            get("SOURCE_PATH", ""),
		SourceSheet:           get("SOURCE_SHEET", ""),
		SheetsSpreadsheetID:   get("SHEETS_SPREADSHEET_ID", ""),
		SheetsRange:           get("SHEETS_RANGE", "A:Z"),
		GoogleCredentialsFile: get("GOOGLE_CREDENTIALS_FILE", ""),
		DatabaseURL:           get("DATABASE_URL", ""),
		LedgerTable:           get("LEDGER_TABLE", "ledger"),

		DateColumn:    get("DATE_COLUMN", "Fecha"),
		AmountColumn:  get("AMOUNT_COLUMN", "Monto"),
		EntityColumn:  get("ENTITY_COLUMN", "Cliente"),
		StatusColumn:  get("STATUS_COLUMN", "Estado"),
		AmountDecimal: strings.ToLower(get("AMOUNT_DECIMAL", "auto")),

		DatasetTTL:    getDuration("DATASET_TTL", 600*time.Second),
		PlanTimeout:   getDuration("PLAN_TIMEOUT", 30*time.Second),
		AnswerTimeout: getDuration("ANSWER_TIMEOUT", 60*time.Second),
		SessionTTL:    getDuration("SESSION_TTL", 12*time.Hour),

		HistorySize:      getInt("HISTORY_SIZE", 5),
		TableRowLimit:    getInt("TABLE_ROW_LIMIT", 100),
		SampleRows:       getInt("SAMPLE_ROWS", 10),
		ProjectionAnchor: strings.ToLower(get("PROJECTION_ANCHOR", "now")),
	}
	switch cfg.SourceKind {
	case "file", "sheets", "postgres":
	default:
		log.Fatalf("invalid SOURCE_KIND: %s", cfg.SourceKind)
	}
	if cfg.SourceKind == "sheets" && cfg.SheetsSpreadsheetID == "" {
		log.Fatalf("missing required env: SHEETS_SPREADSHEET_ID")
	}
	if cfg.SourceKind == "postgres" && cfg.DatabaseURL == "" {
		log.Fatalf("missing required env: DATABASE_URL")
	}
	return cfg
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env: %s", k)
	}
	return v
}

// getInt falls back to def on unparsable or non-positive values.
func getInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		log.Printf("ignoring invalid %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

// getDuration accepts Go durations ("90s", "10m") or a bare number of seconds.
func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("ignoring invalid %s=%q, using %s", k, v, def)
		return def
	}
	return d
}
