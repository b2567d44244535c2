package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ParseListParams reads a list request from the query string:
// fields=a,b  search=text  page=n  page_size=n
func ParseListParams(c *fiber.Ctx) (Request, error) {
	req := Request{
		EntityID: c.Params("entity"),
		Fields:   splitAndTrim(c.Query("fields")),
		Search:   c.Query("search"),
	}
	var err error
	if req.Page, err = intParam(c, "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = intParam(c, "page_size"); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, InvalidPayloadError(fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return n, nil
}

func parseIncludes(c *fiber.Ctx) []string {
	return splitAndTrim(c.Query("include"))
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
