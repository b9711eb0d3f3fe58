package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common booking workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("review_requests").
		Description("Go through pending booking requests and accept or decline each one.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return textPrompt("Review Booking Requests", `Help me handle my pending booking requests. Please:

1. Read nestly://bookings/requests for the requests waiting on me
2. For each request, show the family, the date and the time
3. Use booking.check to see whether the time still fits my calendar

Then ask me, one request at a time, whether to accept or decline.
Use booking.accept to accept. Use booking.decline with a short note to decline.`), nil
		})

	srv.Prompt("plan_week").
		Description("Declare next week's availability from a short description of the provider's week.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return textPrompt("Plan Availability", `Help me set my availability for the coming week.

Ask me which days and hours I can take children, and which times I am away.
Declare available time with availability.declare and kind "available",
and time away with kind "unavailable". For hours that repeat every week,
use repeat (for example "mon,wed") with an until date.

Before declaring time away, check availability.show for that date: time with
bookings on it cannot be marked unavailable until those bookings are cancelled.`), nil
		})

	srv.Prompt("find_care").
		Description("Find and request an open slot with a provider.").
		Argument("provider_id", "Provider to book with", false).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			provider := args["provider_id"]
			if provider == "" {
				provider = "the provider I name"
			}
			return textPrompt("Find Childcare", fmt.Sprintf(`I need childcare with %s.

Ask me for the date and how long I need. Use availability.slots to list open
times and let me pick one. Request it with booking.request. If the request is
refused, explain why and offer the next open slot.`, provider)), nil
		})

	return nil
}

func textPrompt(description, text string) *mcp.PromptResult {
	return &mcp.PromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: string(mcp.RoleUser),
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		},
	}
}
