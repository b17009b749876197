package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123456:test-token")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123456:test-token", cfg.TelegramToken)
	assert.Equal(t, "normalizer_bot", cfg.MongoDBName)
	assert.Equal(t, 4, cfg.HashRetentionDays)
	assert.Empty(t, cfg.BotOwnerIDs)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
}

func TestLoadMissingMongoURI(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123456:test-token")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoadOwnerIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_OWNER_IDS", "123456789, 987654321")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{123456789, 987654321}, cfg.BotOwnerIDs)
}

func TestLoadInvalidOwnerIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_OWNER_IDS", "123,abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_OWNER_IDS")
}

func TestLoadHashRetention(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{name: "custom value", value: "7", want: 7},
		{name: "minimum allowed", value: "3", want: 3},
		{name: "below dedup window", value: "2", wantErr: true},
		{name: "not a number", value: "week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("HASH_RETENTION_DAYS", tt.value)

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.HashRetentionDays)
		})
	}
}
