package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"entity-admin/internal/query"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /entities/:entity/records
func (h *Handler) List(c *fiber.Ctx) error {
	req, err := ParseListParams(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Query(c.UserContext(), req)
	if err != nil {
		return err
	}

	items := make([]map[string]any, len(res.Items))
	for i, rec := range res.Items {
		items[i] = recordJSON(rec)
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{
			"page":      res.Page,
			"page_size": res.PageSize,
			"total":     res.Total,
		},
	})
}

// GetByID handles GET /entities/:entity/records/:key
func (h *Handler) GetByID(c *fiber.Ctx) error {
	rec, err := h.svc.Get(c.UserContext(), c.Params("entity"), c.Params("key"), parseIncludes(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recordJSON(rec)})
}

// Update handles PUT /entities/:entity/records/:key
func (h *Handler) Update(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid request body")
	}
	rec, err := h.svc.Update(c.UserContext(), c.Params("entity"), c.Params("key"), body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recordJSON(rec)})
}

// Create handles POST /entities/:entity/records
func (h *Handler) Create(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid request body")
	}
	rec, err := h.svc.Create(c.UserContext(), c.Params("entity"), body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": recordJSON(rec)})
}

// Upload handles POST /entities/:entity/records/:key/files/:property
func (h *Handler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return InvalidPayloadError("Missing file in form data")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	rec, err := h.svc.Upload(c.UserContext(), c.Params("entity"), c.Params("key"), c.Params("property"), file.Filename, file.Size, src)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": recordJSON(rec)})
}

// ErrorHandler renders every error as an ErrorResponse.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return respondError(c, NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message))
	}
	return respondError(c, AsAppError(err))
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// recordJSON converts a record, and any records nested in it by includes,
// into plain maps for encoding.
func recordJSON(r query.Record) map[string]any {
	if r == nil {
		return nil
	}
	out := query.ToMap(r)
	for k, v := range out {
		switch nested := v.(type) {
		case query.Record:
			out[k] = recordJSON(nested)
		case []query.Record:
			list := make([]map[string]any, len(nested))
			for i, n := range nested {
				list[i] = recordJSON(n)
			}
			out[k] = list
		}
	}
	return out
}
