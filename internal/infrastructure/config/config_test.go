package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	registerDefaults(v)
	cfg, err := decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	t.Run("fills warehouse defaults", func(t *testing.T) {
		cfg := defaultConfig(t)

		assert.Equal(t, "wms-backend", cfg.App.Name)
		assert.Equal(t, "DOCK-IN", cfg.Warehouse.InboundDockCode)
		assert.Equal(t, "DOCK-OUT", cfg.Warehouse.OutboundDockCode)
		assert.Equal(t, "FIFO", cfg.Warehouse.PickPolicy)
		assert.Equal(t, "FIRST_FIT", cfg.Warehouse.PlacementPolicy)
		assert.Equal(t, "PALLET", cfg.Warehouse.DefaultUnitTypeCode)
		assert.Equal(t, 30*time.Minute, cfg.Warehouse.ReservationTTL)
		assert.Equal(t, 3, cfg.Warehouse.MaxCapacityRetries)
		assert.Equal(t, 5*time.Minute, cfg.Sweeper.CheckInterval)
	})

	t.Run("explicit values win over defaults", func(t *testing.T) {
		v := viper.New()
		registerDefaults(v)
		v.Set("warehouse.pick_policy", "LIFO")
		v.Set("warehouse.reservation_ttl", time.Hour)

		cfg, err := decode(v)
		require.NoError(t, err)
		assert.Equal(t, "LIFO", cfg.Warehouse.PickPolicy)
		assert.Equal(t, time.Hour, cfg.Warehouse.ReservationTTL)
	})

	t.Run("environment variables win over defaults", func(t *testing.T) {
		t.Setenv("WMS_WAREHOUSE_PICK_POLICY", "LOCATION_PREFERENCE")

		v := viper.New()
		registerDefaults(v)
		v.SetEnvPrefix("WMS")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		cfg, err := decode(v)
		require.NoError(t, err)
		assert.Equal(t, "LOCATION_PREFERENCE", cfg.Warehouse.PickPolicy)
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts defaults", func(t *testing.T) {
		require.NoError(t, defaultConfig(t).validate())
	})

	t.Run("rejects unknown pick policy", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Warehouse.PickPolicy = "RANDOM"
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects unknown placement policy", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Warehouse.PlacementPolicy = "BEST_GUESS"
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects identical dock codes", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Warehouse.OutboundDockCode = cfg.Warehouse.InboundDockCode
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects idle conns above open conns", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns + 1
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires database password", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.App.Env = "production"
		cfg.Database.SSLMode = "require"
		assert.Error(t, cfg.validate())

		cfg.Database.Password = "secret"
		assert.NoError(t, cfg.validate())
	})

	t.Run("production rejects full SQL logging", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.Telemetry.DBLogFullSQL = true
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects out of range sampling ratio", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Telemetry.SamplingRatio = 1.5
		assert.Error(t, cfg.validate())
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := &DatabaseConfig{
		Host: "db.internal", Port: 5432,
		User: "wms", Password: "p@ss/word",
		DBName: "wms", SSLMode: "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// special characters must be escaped, not passed raw
	assert.NotContains(t, dsn, "p@ss/word")
}
