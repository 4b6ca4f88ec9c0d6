package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/config"
)

func TestSetupLogger(t *testing.T) {
	lg := SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "ha-deepseek-control"})
	assert.NotNil(t, lg)
	assert.True(t, lg.Enabled(context.Background(), slog.LevelDebug), "dev mode enables debug")

	lg = SetupLogger(config.Config{AppEnv: "prod", OTELServiceName: "ha-deepseek-control"})
	assert.False(t, lg.Enabled(context.Background(), slog.LevelDebug), "prod mode keeps debug off")
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(config.Config{})
	assert.NoError(t, err)
	assert.Nil(t, shutdown)
}
