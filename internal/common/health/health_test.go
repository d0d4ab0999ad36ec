package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	healthy := true
	app := fiber.New()
	app.Get("/health/live", Liveness)
	app.Get("/health/startup", Startup)
	app.Get("/health/ready", Readiness(map[string]Check{
		"db": func(context.Context) error {
			if !healthy {
				return errors.New("database is locked")
			}
			return nil
		},
	}))

	for _, path := range []string{"/health/live", "/health/startup", "/health/ready"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	healthy = false
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
