package api

import (
	"context"
	"net/http"

	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

func (c *Client) CalendarEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	return c.calendar(ctx, "/calendar/events")
}

func (c *Client) TeamCalendar(ctx context.Context) ([]domain.CalendarEvent, error) {
	return c.calendar(ctx, "/calendar/team")
}

// Calendar 有团队日历权限时返回团队日历，否则返回自己的
func (c *Client) Calendar(ctx context.Context, caps authz.Capabilities) ([]domain.CalendarEvent, error) {
	if caps.Allows(authz.PermViewTeamCalendar) {
		return c.TeamCalendar(ctx)
	}
	return c.CalendarEvents(ctx)
}

func (c *Client) calendar(ctx context.Context, path string) ([]domain.CalendarEvent, error) {
	var events []domain.CalendarEvent
	if err := c.gateway.Do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.CalendarEvent{}
	}
	return events, nil
}
