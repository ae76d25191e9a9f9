package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostHandler struct {
	ps service.PostService
}

func NewPostHandler(ps service.PostService) *PostHandler {
	return &PostHandler{ps: ps}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	pc := &transfer.PostCreation{
		Caption:       c.FormValue("caption"),
		Title:         c.FormValue("title"),
		Hashtags:      c.FormValue("hashtags"),
		CallToAction:  c.FormValue("call_to_action"),
		ScheduledTime: c.FormValue("scheduled_time"),
		AccountIDs:    c.FormValue("account_ids"),
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}
	files := form.File["files"]

	postID, err := h.ps.CreatePost(c.Context(), userID, pc, files)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post_id": postID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) PostInfo(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	post, err := h.ps.PostInfo(c.Context(), GetUserID(c), int64(postID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListSchedules(c *fiber.Ctx) error {
	schedules, err := h.ps.ListSchedules(c.Context(), GetUserID(c))
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch schedules",
		})
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	if err := h.ps.Remove(c.Context(), GetUserID(c), int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
