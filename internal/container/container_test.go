package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/disbursement/internal/application/workflow"
	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
)

func testConfig(t *testing.T, driver string) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Database.Driver = driver
	cfg.Database.Path = filepath.Join(t.TempDir(), "disbursement.db")
	cfg.Storage.ArchiveDir = filepath.Join(t.TempDir(), "exports")
	cfg.Workflow.CEOThreshold = decimal.NewFromInt(1000)
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }},
		{"zero threshold", func(c *Config) { c.Workflow.CEOThreshold = decimal.Zero }},
		{"empty id prefix", func(c *Config) { c.Workflow.IDPrefix = "" }},
		{"empty sender", func(c *Config) { c.Email.From = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := NewContainer(cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	for _, driver := range []string{DriverMemory, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c, err := NewContainer(testConfig(t, driver), zap.NewNop())
			require.NoError(t, err)
			assert.False(t, c.Ready())

			require.NoError(t, c.Start(context.Background()))
			assert.True(t, c.Ready())
			assert.Error(t, c.Start(context.Background()), "second start")

			require.NotNil(t, c.WorkflowEngine())
			require.NotNil(t, c.Services())
			require.NotNil(t, c.HTTPServer())
			require.NotNil(t, c.FileStorage())

			health := c.Health()
			assert.True(t, health.Overall, "%+v", health.Components)

			require.NoError(t, c.Close())
			assert.False(t, c.Ready())
			assert.Error(t, c.Close(), "second close")
			assert.Error(t, c.Start(context.Background()), "start after close")
		})
	}
}

func TestContainer_WiresConfiguredThreshold(t *testing.T) {
	for _, driver := range []string{DriverMemory, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c, err := NewContainer(testConfig(t, driver), zap.NewNop())
			require.NoError(t, err)
			require.NoError(t, c.Start(context.Background()))
			t.Cleanup(func() { _ = c.Close() })

			ctx := context.Background()
			engine := c.WorkflowEngine()
			due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

			// submitted by the seeded finance user, so it is routed on amount immediately
			req, err := engine.SubmitRequest(ctx, workflow.SubmitInput{
				RequestType:             entity.RequestTypeCashAdvance,
				SubmitterID:             3,
				Amount:                  decimal.NewFromInt(1500),
				Category:                entity.CategoryTravel,
				AdvancePurpose:          "Site visit",
				ExpectedLiquidationDate: &due,
			})
			require.NoError(t, err)
			assert.Equal(t, entity.StatusPendingCEO, req.Status)
			assert.Equal(t, "REQ001", req.ID)
			assert.Equal(t, "PHP", req.Currency)

			req, err = engine.ApplyAction(ctx, req.ID, domainwf.ActionApprove, 4, "")
			require.NoError(t, err)
			assert.Equal(t, entity.StatusApproved, req.Status)

			detail, err := c.Services().Queries.GetRequest(ctx, 4, req.ID)
			require.NoError(t, err)
			assert.Len(t, detail.Timeline, 2)
		})
	}
}

func TestContainer_MemoryHealthWithoutDatabase(t *testing.T) {
	c, err := NewContainer(testConfig(t, DriverMemory), zap.NewNop())
	require.NoError(t, err)

	health := c.Health()
	assert.False(t, health.Overall)
	assert.Equal(t, "not initialized", health.Components["database"].Message)

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	health = c.Health()
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "in-memory store", health.Components["database"].Message)
}

func TestContainer_Workers(t *testing.T) {
	cfg := testConfig(t, DriverMemory)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	require.NotNil(t, c.Workers())
	assert.Equal(t, 1, c.Workers().Count())
	assert.True(t, c.Workers().IsRunning())
	assert.Equal(t, "1 registered", c.Health().Components["workers"].Message)

	workers := c.Workers()
	require.NoError(t, c.Close())
	assert.False(t, workers.IsRunning())

	cfg = testConfig(t, DriverMemory)
	cfg.Worker.ReminderInterval = 0
	c, err = NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	assert.Zero(t, c.Workers().Count())

	cfg = testConfig(t, DriverMemory)
	cfg.Worker.ReminderInterval = -time.Second
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}
