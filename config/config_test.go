package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SOURCE_KIND", "")
	t.Setenv("DATASET_TTL", "")
	t.Setenv("HISTORY_SIZE", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file", cfg.SourceKind)
	assert.Equal(t, "Fecha", cfg.DateColumn)
	assert.Equal(t, "Monto", cfg.AmountColumn)
	assert.Equal(t, 600*time.Second, cfg.DatasetTTL)
	assert.Equal(t, 30*time.Second, cfg.PlanTimeout)
	assert.Equal(t, 60*time.Second, cfg.AnswerTimeout)
	assert.Equal(t, 5, cfg.HistorySize)
	assert.Equal(t, 100, cfg.TableRowLimit)
	assert.Equal(t, "now", cfg.ProjectionAnchor)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATASET_TTL", "120")
	t.Setenv("PLAN_TIMEOUT", "45s")
	t.Setenv("HISTORY_SIZE", "3")
	t.Setenv("AMOUNT_DECIMAL", "COMMA")
	t.Setenv("PROJECTION_ANCHOR", "last-observed")

	cfg := Load()

	assert.Equal(t, 120*time.Second, cfg.DatasetTTL)
	assert.Equal(t, 45*time.Second, cfg.PlanTimeout)
	assert.Equal(t, 3, cfg.HistorySize)
	assert.Equal(t, "comma", cfg.AmountDecimal)
	assert.Equal(t, "last-observed", cfg.ProjectionAnchor)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("TABLE_ROW_LIMIT", "lots")
	t.Setenv("ANSWER_TIMEOUT", "-5s")

	assert.Equal(t, 100, getInt("TABLE_ROW_LIMIT", 100))
	assert.Equal(t, time.Minute, getDuration("ANSWER_TIMEOUT", time.Minute))
}
