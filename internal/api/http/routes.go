package httpapi

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. refreshSecret
// is the shared secret the external scheduler presents on POST /refresh.
func RegisterRoutes(app *fiber.App, service *dashboard.Service, refreshSecret string) {
	v1 := app.Group("/api/v1")

	v1.Get("/data", func(c *fiber.Ctx) error {
		var q dataQuery
		q.Type = c.Query("type", "all")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		switch q.Type {
		case "all":
			snap, err := service.GetAll(c.Context())
			if err != nil {
				if errors.Is(err, dashboard.ErrAllSourcesFailed) {
					return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
						"success":   false,
						"timestamp": snap.Timestamp,
						"errors":    snap.Errors,
					})
				}
				return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch dashboard data")
			}
			return c.JSON(fiber.Map{
				"success":   true,
				"timestamp": snap.Timestamp,
				"cached":    snap.Cached,
				"sources":   snap.Sources,
				"errors":    snap.Errors,
			})

		case "history":
			return c.JSON(fiber.Map{
				"success":   true,
				"timestamp": time.Now().UTC(),
				"history":   service.History(c.Context()),
			})

		default:
			data, err := service.GetSource(c.Context(), dashboard.SourceName(q.Type))
			if err != nil {
				if errors.Is(err, dashboard.ErrNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "no cached data for source "+q.Type)
				}
				return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch source data")
			}
			return c.JSON(fiber.Map{
				"success":   true,
				"timestamp": time.Now().UTC(),
				"cached":    true,
				"source":    q.Type,
				"data":      data,
			})
		}
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if refreshSecret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "refresh secret is not configured")
		}
		if !authorized(c.Get(fiber.HeaderAuthorization), refreshSecret) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing bearer token")
		}

		summary := service.Refresh(c.Context())
		return c.JSON(fiber.Map{
			"success":   summary.Successes() > 0,
			"timestamp": summary.Timestamp,
			"summary":   summary,
		})
	})
}

// dataQuery holds the query parameters of the data endpoint.
type dataQuery struct {
	Type string `validate:"required,oneof=all sensor resort forecast history"`
}

func authorized(header, secret string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
