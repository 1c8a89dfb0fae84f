package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, 10000, cfg.GrabQueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.GrabTimeout)
	assert.Equal(t, 64, cfg.WSSendBuffer)
	assert.Equal(t, AuthModeRedis, cfg.AuthMode)
	assert.Equal(t, "ticket.orders", cfg.KafkaOrdersTopic)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.OrderEventsEnabled())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":             "docker",
		"STORE_DRIVER":        "memory",
		"AUTH_MODE":           "static",
		"AUTH_STATIC_TOKENS":  "tok-a:user-a,tok-b:user-b",
		"KAFKA_BROKERS":       "kafka:9092, kafka2:9092 ,",
		"GRAB_QUEUE_CAPACITY": "5",
		"SHUTDOWN_TIMEOUT":    "3s",
	})
	require.NoError(t, err)

	assert.Equal(t, EnvDocker, cfg.AppEnv)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, map[string]string{"tok-a": "user-a", "tok-b": "user-b"}, cfg.AuthStaticTokens)
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.OrderEventsEnabled())
	assert.Equal(t, 5, cfg.GrabQueueCapacity)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantErr string
	}{
		{"unknown env", map[string]string{"APP_ENV": "staging"}, "APP_ENV"},
		{"unknown store", map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"static auth without tokens", map[string]string{"AUTH_MODE": "static"}, "AUTH_STATIC_TOKENS"},
		{"zero queue", map[string]string{"GRAB_QUEUE_CAPACITY": "0"}, "GRAB_QUEUE_CAPACITY"},
		{"bad duration", map[string]string{"GRAB_TIMEOUT": "soon"}, "GrabTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaskDSN(t *testing.T) {
	masked := maskDSN("postgres://user:secret@db:5432/app?sslmode=disable")
	assert.NotContains(t, masked, "secret")
	assert.True(t, strings.HasPrefix(masked, "postgres://user:"))

	assert.Equal(t, "postgres://db/app", maskDSN("postgres://db/app"))
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line  string
		first bool
		key   string
		value string
		ok    bool
	}{
		{line: "FOO=bar", key: "FOO", value: "bar", ok: true},
		{line: "export FOO = \"quoted value\"", key: "FOO", value: "quoted value", ok: true},
		{line: "\ufeffFOO='x'", first: true, key: "FOO", value: "x", ok: true},
		{line: "# comment"},
		{line: "   "},
		{line: "NOVALUE"},
		{line: "=orphan"},
	}
	for _, tt := range tests {
		key, value, ok := parseEnvLine(tt.line, tt.first)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.key, key, tt.line)
		assert.Equal(t, tt.value, value, tt.line)
	}
}
