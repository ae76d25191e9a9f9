package handlers

import (
	"errors"
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/internal/transfer"
)

type ConnectionHandler struct {
	cfg config.Config
	cs  service.ConnectionService
	as  service.AccountService
}

func NewConnectionHandler(cfg config.Config, cs service.ConnectionService, as service.AccountService) *ConnectionHandler {
	return &ConnectionHandler{cfg: cfg, cs: cs, as: as}
}

// Connect starts an OAuth flow and returns the authorization URL for the
// frontend to redirect to.
func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	var req transfer.ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	p, ok := models.ParsePlatform(req.Platform)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": service.ErrUnsupportedPlatform.Error(),
		})
	}

	authURL, err := h.cs.Begin(c.Context(), GetUserID(c), p, req.RedirectURL)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, service.ErrUnsupportedPlatform) || errors.Is(err, service.ErrConfiguration) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"auth_url": authURL,
	})
}

// Callback is the public OAuth return endpoint. It always answers with a
// redirect; errors travel back as query parameters, never as a body. An
// unparsable platform segment has no stored state to recover a redirect
// from, so it falls back to the frontend accounts page.
func (h *ConnectionHandler) Callback(c *fiber.Ctx) error {
	p, ok := models.ParsePlatform(c.Params("platform"))
	if !ok {
		fallback := h.cfg.FrontendURL + "/accounts?error=" + url.QueryEscape(service.ErrUnsupportedPlatform.Error())
		return c.Redirect(fallback, fiber.StatusFound)
	}

	redirectURL := h.cs.Complete(
		c.Context(),
		p,
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)

	return c.Redirect(redirectURL, fiber.StatusFound)
}

func (h *ConnectionHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accountList, err := h.as.List(c.Context(), GetUserID(c))
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *ConnectionHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	accountID := c.QueryInt("id", 0)

	err := h.as.Disconnect(c.Context(), GetUserID(c), int64(accountID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to delete social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
