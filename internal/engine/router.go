package engine

import "github.com/gofiber/fiber/v2"

// RegisterRecordRoutes mounts the record endpoints on r.
func RegisterRecordRoutes(r fiber.Router, h *Handler) {
	records := r.Group("/entities/:entity/records")

	records.Get("/", h.List)
	records.Post("/", h.Create)
	records.Get("/:key", h.GetByID)
	records.Put("/:key", h.Update)
	records.Post("/:key/files/:property", h.Upload)
}
