package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_DSN", "")
	t.Setenv("EVENTS_SINK", "log")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/")
	assert.Equal(t, 24*time.Hour, cfg.CancellationWindow())
	assert.Equal(t, 2*time.Second, cfg.Events.PublishTimeout)
}

func TestLoadConfig_Postgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "booking")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Contains(t, cfg.Database.DSN, "host=db port=5432")
	assert.Contains(t, cfg.Database.DSN, "dbname=booking")
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CANCELLATION_WINDOW_HOURS", "48")
	t.Setenv("EVENTS_SINK", "redis")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 48*time.Hour, cfg.CancellationWindow())
	assert.Equal(t, "redis", cfg.Events.Sink)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"driver":      {"DB_DRIVER", "oracle"},
		"sink":        {"EVENTS_SINK", "kafka"},
		"window":      {"CANCELLATION_WINDOW_HOURS", "soon"},
		"slot":        {"DEFAULT_SLOT_MINUTES", "0"},
		"jwt minutes": {"JWT_EXPIRATION_MINUTES", "x"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "memory")
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}

	t.Run("sqs without queue", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "memory")
		t.Setenv("EVENTS_SINK", "sqs")
		t.Setenv("SQS_QUEUE_URL", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
