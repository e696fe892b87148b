package controller

import (
	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/pkg/serverutils"
	"ai-coursegen-be/internal/service"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IGenerationController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
}

type generationController struct {
	generationService service.IGenerationService
}

func NewGenerationController(generationService service.IGenerationService) IGenerationController {
	return &generationController{
		generationService: generationService,
	}
}

func (c *generationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generations")
	h.Post("", c.Submit)
	h.Get(":id", c.Status)
	h.Delete(":id", c.Cancel)
}

func (c *generationController) Submit(ctx *fiber.Ctx) error {
	var req dto.SubmitGenerationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperrors.NewValidation("request body must be valid JSON")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.generationService.Submit(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).
		JSON(serverutils.SuccessResponse("Job accepted", res))
}

func (c *generationController) Status(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewValidation("id must be a valid UUID")
	}

	res, err := c.generationService.Status(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Job status", res))
}

func (c *generationController) Cancel(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewValidation("id must be a valid UUID")
	}

	if err := c.generationService.Cancel(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Job cancelled", nil))
}
