package controller

import (
	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/pkg/serverutils"
	"ai-coursegen-be/internal/service"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
)

type IContentController interface {
	RegisterRoutes(r fiber.Router)
	CreateTopic(ctx *fiber.Ctx) error
}

type contentController struct {
	contentService service.IContentService
}

func NewContentController(contentService service.IContentService) IContentController {
	return &contentController{
		contentService: contentService,
	}
}

func (c *contentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/topics")
	h.Post("", c.CreateTopic)
}

func (c *contentController) CreateTopic(ctx *fiber.Ctx) error {
	var req dto.CreateTopicRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperrors.NewValidation("request body must be valid JSON")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.contentService.CreateTopic(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).
		JSON(serverutils.SuccessResponse("Topic created", res))
}
