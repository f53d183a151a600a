// This file contains the actual validator implementation for incoming http requests.
//
// You can implement custom validators for each field in this file and reference them in the request structs.

package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
)

// newValidator returns a validator that also knows the knownScene tag for registry.
func newValidator(registry *scene.Registry) *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("knownScene", func(fl validator.FieldLevel) bool {
		return registry.Contains(scene.ID(fl.Field().Int()))
	})
	return validate
}

// validateRequest validates a request using a Fiber context and a request struct.
// It parses the request differently based on HTTP method.
func (s *WebServer) validateRequest(c *fiber.Ctx, req interface{}) error {
	switch c.Method() {
	case fiber.MethodGet:
		// For GET requests, we only need to parse query and path parameters
		if err := c.QueryParser(req); err != nil {
			return err
		}
		if err := c.ParamsParser(req); err != nil {
			return err
		}
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		// Path parameters first; a body is optional for some endpoints
		if err := c.ParamsParser(req); err != nil {
			return err
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(req); err != nil {
				return err
			}
		}
	}

	return s.validate.Struct(req)
}
