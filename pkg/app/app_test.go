package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/config"
)

func TestConnectionString(t *testing.T) {
	cfg := config.Config{
		DatabaseHost:     "db.internal",
		DatabasePort:     "5433",
		DatabaseUserName: "fern",
		DatabasePassword: "secret",
		DatabaseName:     "fern",
		DatabaseSSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=fern password=secret dbname=fern sslmode=require",
		connectionString(cfg),
	)
}
