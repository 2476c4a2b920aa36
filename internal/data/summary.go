package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
)

// SummaryConfig contains the summary prompts and length bound
type SummaryConfig struct {
	SystemPrompt string // may use {{company}}
	UserTemplate string // uses {{context}} and {{messages}}
	Company      string
	DefaultOffer string // used when no service was detected; may use {{company}}
	MaxTokens    int
}

// Completer is a chat completion backend
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (string, error)
}

// summaryRepo implements the Summarizer on a chat completion backend
type summaryRepo struct {
	completer Completer
	config    SummaryConfig
}

// NewSummaryRepo creates a summarizer
func NewSummaryRepo(completer Completer, config SummaryConfig) repo.Summarizer {
	return &summaryRepo{completer: completer, config: config}
}

// Summarize makes one completion call for the window
func (r *summaryRepo) Summarize(ctx context.Context, messages []domain.Message, services []string) (string, error) {
	system := r.withCompany(r.config.SystemPrompt)
	user := r.BuildPrompt(messages, services)

	summary, err := r.completer.Complete(ctx, system, user, r.config.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}

// BuildPrompt renders the user prompt: service context plus one line per message, in window order
func (r *summaryRepo) BuildPrompt(messages []domain.Message, services []string) string {
	offer := r.withCompany(r.config.DefaultOffer)
	if len(services) > 0 {
		offer = fmt.Sprintf("%s offers: %s", r.config.Company, strings.Join(services, ", "))
	}

	lines := make([]string, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Date.Format("2006-01-02 15:04:05"),
			participant(msg),
			msg.DisplayText(),
		))
	}

	prompt := strings.ReplaceAll(r.config.UserTemplate, "{{context}}", offer)
	prompt = strings.ReplaceAll(prompt, "{{messages}}", strings.Join(lines, "\n"))
	return strings.TrimSpace(prompt)
}

func (r *summaryRepo) withCompany(s string) string {
	return strings.ReplaceAll(s, "{{company}}", r.config.Company)
}

// participant tags a sender by username, falling back to User_<id>
func participant(msg *domain.Message) string {
	if name := msg.SenderUsername(); name != "" {
		return name
	}
	if msg.SenderID != 0 {
		return "User_" + strconv.FormatInt(msg.SenderID, 10)
	}
	return "User_Unknown"
}
