package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := &DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "ipal", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ipal sslmode=disable", c.GetDSN())
}

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "monitor")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	c := &DatabaseConfig{Host: "localhost", Port: 5432, MaxConns: 4}
	c.LoadFromEnv("DB")

	assert.Equal(t, "pg.internal", c.Host)
	assert.Equal(t, 6543, c.Port)
	assert.Equal(t, "monitor", c.Database)
	assert.Equal(t, 4, c.MaxConns)
}

func TestMQTTConfig_LoadFromEnv_QoSRange(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "5")

	c := &MQTTConfig{QoS: 1}
	c.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", c.Broker)
	assert.Equal(t, byte(1), c.QoS)
}

func TestAPIConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://backend:5000")
	t.Setenv("API_TIMEOUT", "15")

	c := &APIConfig{Timeout: time.Second}
	c.LoadFromEnv("API")

	assert.Equal(t, "http://backend:5000", c.BaseURL)
	assert.Equal(t, 15*time.Second, c.Timeout)
}
