package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv("AGENDA_SERVER_PORT", "9090")
	t.Setenv("AGENDA_JWT_SECRET", "secret")
	t.Setenv("AGENDA_GATEWAY_ACCESS_TOKEN", "TEST-token")
	t.Setenv("AGENDA_DATABASE_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Secrets.JWTSecret)
	assert.Equal(t, "TEST-token", cfg.Secrets.GatewayAccessToken)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, 30, cfg.Subscription.GrantDays)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	require.NoError(t, cfg.ValidateAPI())
}

func TestValidateAPIRequiresSecrets(t *testing.T) {
	cfg := &Config{Subscription: SubscriptionConfig{PriceCents: 100, GrantDays: 30}}

	err := cfg.ValidateAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENDA_JWT_SECRET")
	assert.Contains(t, err.Error(), "AGENDA_GATEWAY_ACCESS_TOKEN")
}

func TestValidateAPIRejectsBadTimezone(t *testing.T) {
	cfg := &Config{
		Secrets:      Secrets{JWTSecret: "s", GatewayAccessToken: "t"},
		Subscription: SubscriptionConfig{PriceCents: 100, GrantDays: 30},
		Scheduling:   SchedulingConfig{Timezone: "Mars/Olympus"},
	}
	assert.Error(t, cfg.ValidateAPI())
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "agenda", Password: "p@ss", Name: "agenda", SSLMode: "disable"}
	assert.Equal(t, "postgres://agenda:p%40ss@db:5432/agenda?sslmode=disable", db.URL())
	assert.Contains(t, db.DSN(), "dbname=agenda")
}
