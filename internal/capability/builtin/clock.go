// Package builtin holds the capabilities that ship with the server.
package builtin

import (
	"context"
	"time"

	"nova/internal/capability"
)

// clock answers get_time and get_date. A Now hook keeps it testable.
type clock struct {
	id  string
	now func() time.Time
}

func NewGetTime() capability.Capability {
	return &clock{id: "get_time", now: time.Now}
}

func NewGetDate() capability.Capability {
	return &clock{id: "get_date", now: time.Now}
}

func (c *clock) Metadata() capability.Metadata {
	desc := "Current local time"
	if c.id == "get_date" {
		desc = "Current local date"
	}
	return capability.Metadata{ID: c.id, Version: "1.0.0", Description: desc}
}

func (c *clock) Execute(_ context.Context, params map[string]any) (map[string]any, error) {
	now := c.now()
	if tz, ok := params["timezone"].(string); ok && tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}

	if c.id == "get_date" {
		return map[string]any{
			"date":    now.Format("2006-01-02"),
			"weekday": now.Weekday().String(),
			"spoken":  now.Format("Monday, January 2, 2006"),
		}, nil
	}
	return map[string]any{
		"time":   now.Format("15:04"),
		"spoken": now.Format("3:04 PM"),
	}, nil
}
