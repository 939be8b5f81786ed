package backend_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/spacestore/internal/backend"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"badger", "postgres"}, backend.Names())
	assert.True(t, backend.Registered("badger"))
	assert.False(t, backend.Registered("sqlite"))
}

func TestOpen_Unknown(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := backend.Open(context.Background(), "sqlite", backend.Options{}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestOpen_PostgresRequiresURL(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := backend.Open(context.Background(), backend.Postgres, backend.Options{}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}

func TestOpen_BadgerInMemory(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	b, err := backend.Open(ctx, backend.Badger, backend.Options{BadgerInMemory: true}, log)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	assert.Equal(t, backend.Badger, b.Name)
	assert.Nil(t, b.Pool)
	require.NoError(t, b.HealthCheck(ctx))
	require.NoError(t, b.SchemaCheck(ctx))

	eng := engine.New(b.Engine, log, engine.Options{})
	res, err := eng.Write(ctx, models.WriteRequest{
		SpaceID: "s1",
		Feature: models.Feature{ID: "f1", Properties: map[string]any{"name": "x"}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	head, err := b.Reader.GetHead(ctx, "s1", "f1")
	require.NoError(t, err)
	assert.Equal(t, res.Record.Version, head.Version)
	assert.Equal(t, "x", head.Properties["name"])
}
