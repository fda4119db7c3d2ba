package httpapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	"github.com/cwyuen/hk-monitor/internal/database"
	"github.com/cwyuen/hk-monitor/internal/detector"
	"github.com/cwyuen/hk-monitor/internal/reading"
)

var validate = validator.New()

// AlertLog exposes the persisted alert history. It is optional; without a
// database the recent-alerts endpoint reports 501.
type AlertLog interface {
	RecentAlerts(limit int) ([]*database.AlertRow, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, engine *detector.Engine, states alerting.StateStore, alertLog AlertLog) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/snapshot", func(c *fiber.Ctx) error {
		var q snapshotQuery
		q.Metric = c.Query("metric")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		entries := engine.Snapshot()
		if q.Metric != "" {
			filtered := entries[:0]
			for _, entry := range entries {
				if entry.Metric == reading.Metric(q.Metric) {
					filtered = append(filtered, entry)
				}
			}
			entries = filtered
		}

		return c.JSON(fiber.Map{
			"count":   len(entries),
			"entries": entries,
		})
	})

	v1.Get("/alerts/states", func(c *fiber.Ctx) error {
		all, err := states.All(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read alert states")
		}
		return c.JSON(fiber.Map{
			"count":  len(all),
			"states": all,
		})
	})

	v1.Get("/alerts/recent", func(c *fiber.Ctx) error {
		if alertLog == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "alert log storage is not configured")
		}

		q := recentQuery{Limit: 20}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
			}
			q.Limit = limit
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		alerts, err := alertLog.RecentAlerts(q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read alert log")
		}
		return c.JSON(fiber.Map{
			"count":  len(alerts),
			"alerts": alerts,
		})
	})
}

// snapshotQuery holds query parameters for the snapshot endpoint.
type snapshotQuery struct {
	Metric string `validate:"omitempty,oneof=warning rainfall aqhi traffic"`
}

// recentQuery holds query parameters for the recent-alerts endpoint.
type recentQuery struct {
	Limit int `validate:"min=1,max=500"`
}
