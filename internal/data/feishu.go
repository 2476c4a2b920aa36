package data

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
)

const reportTopChats = 5

// TextSender sends a plain text message to a chat
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// feishuNotifier sends the run report to a Feishu chat
type feishuNotifier struct {
	client TextSender
	chatID string
}

// NewFeishuNotifier creates a run-report notifier
func NewFeishuNotifier(client TextSender, chatID string) repo.Notifier {
	return &feishuNotifier{client: client, chatID: chatID}
}

// Notify sends the report
func (n *feishuNotifier) Notify(ctx context.Context, report *domain.RunReport) error {
	if err := n.client.SendText(ctx, n.chatID, FormatReport(report)); err != nil {
		return fmt.Errorf("send run report: %w", err)
	}
	return nil
}

// FormatReport renders the run report as plain text
func FormatReport(report *domain.RunReport) string {
	var sb strings.Builder
	sb.WriteString("Telegram digest\n")
	fmt.Fprintf(&sb, "Processed: %d", report.Processed())
	if len(report.Skipped) > 0 {
		fmt.Fprintf(&sb, " (skipped: %d)", len(report.Skipped))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Private unread: %d, Group unread: %d\n", report.Unread.Private, report.Unread.Group)

	var followups []domain.ExportRecord
	for _, r := range report.Records {
		if r.NeedsFollowup {
			followups = append(followups, r)
		}
	}
	if len(followups) == 0 {
		return sb.String()
	}

	sort.SliceStable(followups, func(i, j int) bool {
		return followups[i].UrgencyScore > followups[j].UrgencyScore
	})
	if len(followups) > reportTopChats {
		followups = followups[:reportTopChats]
	}

	sb.WriteString("\nNeeds followup:\n")
	for _, r := range followups {
		fmt.Fprintf(&sb, "- %s (urgency %d, unread %d)", r.ChatName, r.UrgencyScore, r.UnreadCount)
		if len(r.Services) > 0 {
			fmt.Fprintf(&sb, " [%s]", r.ServiceLabel())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
