package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnectionService struct {
	completeURL      string
	completePlatform models.Platform
}

func (s *stubConnectionService) Begin(ctx context.Context, userID int64, p models.Platform, redirectURL string) (string, error) {
	return "https://auth.example.com/authorize", nil
}

func (s *stubConnectionService) Complete(ctx context.Context, p models.Platform, code, state, errParam string) string {
	s.completePlatform = p
	return s.completeURL
}

func (s *stubConnectionService) SweepExpiredStates(ctx context.Context, now time.Time) error {
	return nil
}

func newCallbackApp(cs *stubConnectionService) *fiber.App {
	cfg := config.Config{FrontendURL: "https://app.example.com"}
	h := NewConnectionHandler(cfg, cs, nil)

	app := fiber.New()
	app.Get("/oauth/:platform/callback", h.Callback)
	return app
}

func TestCallbackRedirects(t *testing.T) {
	cs := &stubConnectionService{completeURL: "https://app.example.com/accounts?connected=facebook&account=Test"}
	app := newCallbackApp(cs)

	req := httptest.NewRequest(http.MethodGet, "/oauth/facebook/callback?code=c&state=s", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, cs.completeURL, resp.Header.Get("Location"))
	assert.Equal(t, models.PlatformFacebook, cs.completePlatform)
}

func TestCallbackUnknownPlatformStillRedirects(t *testing.T) {
	cs := &stubConnectionService{}
	app := newCallbackApp(cs)

	req := httptest.NewRequest(http.MethodGet, "/oauth/myspace/callback?code=c&state=s", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The callback never renders a body; errors ride the redirect.
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.Contains(t, location, "https://app.example.com/accounts")
	assert.Contains(t, location, "error=")
}
