package admin

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"entity-admin/internal/engine"
	"entity-admin/internal/metadata"
)

// EntityGroup is one menu section of the entity list.
type EntityGroup struct {
	Group    string                      `json:"group"`
	Entities []metadata.EntityDescriptor `json:"entities"`
}

// Handler serves entity metadata.
type Handler struct {
	svc *engine.Service
}

func NewHandler(svc *engine.Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterMetadataRoutes(r fiber.Router, h *Handler) {
	entities := r.Group("/entities")
	entities.Get("/", h.ListEntities)
	entities.Get("/:entity", h.GetEntity)
}

// ListEntities handles GET /entities. Hidden entities are left out;
// groups are sorted by name, ungrouped entities first.
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	all, err := h.svc.Entities()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": groupEntities(all)})
}

// GetEntity handles GET /entities/:entity
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	entity, err := h.svc.Entity(c.Params("entity"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entity.Describe()})
}

func groupEntities(all []*metadata.EntityMetadata) []EntityGroup {
	byGroup := map[string][]metadata.EntityDescriptor{}
	for _, e := range all {
		if e.IsHidden {
			continue
		}
		byGroup[e.Group] = append(byGroup[e.Group], e.Describe())
	}

	groups := make([]EntityGroup, 0, len(byGroup))
	for name, entities := range byGroup {
		sort.Slice(entities, func(i, j int) bool { return entities[i].DisplayName < entities[j].DisplayName })
		groups = append(groups, EntityGroup{Group: name, Entities: entities})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Group < groups[j].Group })
	return groups
}
