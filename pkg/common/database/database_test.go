package database

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/patho-fhir/pkg/common/config"
)

func TestGetRedisReportsUnreachableServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	client, err := GetRedis(&config.Config{RedisHost: "127.0.0.1", RedisPort: strconv.Itoa(port)})
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis at 127.0.0.1:"+strconv.Itoa(port))

	// the failure is remembered
	_, again := GetRedis(&config.Config{})
	assert.Equal(t, err, again)
	assert.NoError(t, CloseRedis())
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(&config.Config{
		PostgresHost:     "db",
		PostgresUser:     "patho",
		PostgresPassword: "secret",
		PostgresDB:       "patho_fhir",
		PostgresPort:     "5432",
		PostgresSSLMode:  "disable",
	})
	assert.Equal(t, "host=db user=patho password=secret dbname=patho_fhir port=5432 sslmode=disable", dsn)
}
