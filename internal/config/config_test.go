package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Env: "production"},
		Database:  DatabaseConfig{Database: "fishmarket"},
		JWT:       JWTConfig{Secret: "s3cret"},
		RateLimit: RateLimitConfig{Requests: 10, Window: time.Minute},
		Events:    EventsConfig{Driver: "none"},
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	viper.Reset()
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DATABASE", "market")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("EVENTS_DRIVER", "KAFKA")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "market", cfg.Database.Database)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL())
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	noSecret := validConfig()
	noSecret.JWT.Secret = ""
	assert.Error(t, noSecret.Validate())

	devNoSecret := validConfig()
	devNoSecret.Server.Env = "development"
	devNoSecret.JWT.Secret = ""
	assert.NoError(t, devNoSecret.Validate())

	badDriver := validConfig()
	badDriver.Events.Driver = "carrier-pigeon"
	assert.ErrorContains(t, badDriver.Validate(), "EVENTS_DRIVER")

	kafkaNoBrokers := validConfig()
	kafkaNoBrokers.Events.Driver = "kafka"
	assert.Error(t, kafkaNoBrokers.Validate())
}

func TestValidateWorker(t *testing.T) {
	cfg := validConfig()
	cfg.Events = EventsConfig{Driver: "kafka", KafkaBrokers: []string{"k:9092"}, Topic: "t", ConsumerGroup: "g"}
	cfg.ClickHouse = ClickHouseConfig{Host: "ch", Port: 9000}
	cfg.Analytics = AnalyticsConfig{BatchSize: 100, FlushInterval: time.Second}
	require.NoError(t, cfg.ValidateWorker())

	rabbit := *cfg
	rabbit.Events.Driver = "rabbitmq"
	assert.ErrorContains(t, rabbit.ValidateWorker(), "EVENTS_DRIVER=kafka")

	noBatch := *cfg
	noBatch.Analytics.BatchSize = 0
	assert.ErrorContains(t, noBatch.ValidateWorker(), "ANALYTICS_BATCH_SIZE")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "m", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/m?sslmode=disable&search_path=public", d.DSN())
}
