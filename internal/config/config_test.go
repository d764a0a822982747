package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_PORT", "3306")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, ChatModeRules, cfg.ChatMode)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/")
}

func TestLoadConfigPostgresDSN(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Contains(t, cfg.Database.DSN, "host=db port=5433")
}

func TestLoadConfigDefaultsToLLMChatWithKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("DB_DRIVER", "mysql")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ChatModeLLM, cfg.ChatMode)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":       {"DB_DRIVER": "sqlite"},
		"upload":       {"MAX_UPLOAD_MB": "abc"},
		"llm no key":   {"CHAT_MODE": "llm", "GEMINI_API_KEY": ""},
		"chat mode":    {"CHAT_MODE": "oracle"},
		"jwt minutes":  {"JWT_EXPIRATION_MINUTES": "0"},
		"gemini delay": {"GEMINI_TIMEOUT_SECONDS": "x"},
		"refresh ttl":  {"JWT_REFRESH_EXPIRATION_HOURS": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "mysql")
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
