package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// DigestServer exposes the persisted chat rollups as MCP tools
type DigestServer struct {
	server *mcp.Server
	chats  repo.ChatRepo
	now    func() time.Time
}

// NewServer creates a new digest MCP server
func NewServer(chats repo.ChatRepo, version string) *DigestServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tg-digest",
		Version: version,
	}, nil)

	s := &DigestServer{
		server: server,
		chats:  chats,
		now:    time.Now,
	}
	s.registerTools()
	return s
}

// Run starts the MCP server with stdio transport
func (s *DigestServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *DigestServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "digest_list_followups",
		Description: "List Telegram chats that need a reply, most urgent first.",
	}, s.handleListFollowups)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "digest_get_chat",
		Description: "Get the stored digest of one chat: urgency, followup flag, dates and detected opportunities.",
	}, s.handleGetChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "digest_list_opportunities",
		Description: "List detected business opportunities, newest first. Optionally filter by chat or service.",
	}, s.handleListOpportunities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "digest_mark_replied",
		Description: "Record that you replied to a chat. This resets the staleness used by the followup policy.",
	}, s.handleMarkReplied)
}

// ChatView is the tool representation of a chat rollup
type ChatView struct {
	ChatID          int64  `json:"chat_id"`
	Name            string `json:"name"`
	IsGroup         bool   `json:"is_group"`
	LastMessageDate string `json:"last_message_date,omitempty"`
	UrgencyScore    int    `json:"urgency_score"`
	NeedsFollowup   bool   `json:"needs_followup"`
	LastReplyDate   string `json:"last_reply_date,omitempty"`
}

// OpportunityView is the tool representation of an opportunity
type OpportunityView struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ListFollowupsInput is the input for digest_list_followups
type ListFollowupsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of chats to return (default 20, max 200)"`
}

// ListFollowupsOutput is the output for digest_list_followups
type ListFollowupsOutput struct {
	Chats []ChatView `json:"chats"`
	Error string     `json:"error,omitempty"`
}

func (s *DigestServer) handleListFollowups(ctx context.Context, req *mcp.CallToolRequest, input ListFollowupsInput) (*mcp.CallToolResult, ListFollowupsOutput, error) {
	chats, err := s.chats.ListFollowups(ctx, clampLimit(input.Limit))
	if err != nil {
		return nil, ListFollowupsOutput{Chats: []ChatView{}, Error: err.Error()}, nil
	}

	views := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		views = append(views, chatView(c))
	}
	return nil, ListFollowupsOutput{Chats: views}, nil
}

// GetChatInput is the input for digest_get_chat
type GetChatInput struct {
	ChatID int64 `json:"chat_id" jsonschema:"Marked Telegram chat id as exported (users positive, groups and channels negative)"`
}

// GetChatOutput is the output for digest_get_chat
type GetChatOutput struct {
	Found         bool              `json:"found"`
	Chat          *ChatView         `json:"chat,omitempty"`
	Opportunities []OpportunityView `json:"opportunities"`
	Error         string            `json:"error,omitempty"`
}

func (s *DigestServer) handleGetChat(ctx context.Context, req *mcp.CallToolRequest, input GetChatInput) (*mcp.CallToolResult, GetChatOutput, error) {
	out := GetChatOutput{Opportunities: []OpportunityView{}}

	chat, err := s.chats.GetChat(ctx, input.ChatID)
	if err != nil {
		out.Error = err.Error()
		return nil, out, nil
	}
	if chat == nil {
		return nil, out, nil
	}

	view := chatView(chat)
	out.Found = true
	out.Chat = &view

	opps, err := s.chats.ListOpportunities(ctx, input.ChatID, "", maxLimit)
	if err != nil {
		out.Error = err.Error()
		return nil, out, nil
	}
	for _, o := range opps {
		out.Opportunities = append(out.Opportunities, opportunityView(o))
	}
	return nil, out, nil
}

// ListOpportunitiesInput is the input for digest_list_opportunities
type ListOpportunitiesInput struct {
	ChatID  int64  `json:"chat_id,omitempty" jsonschema:"Only opportunities of this chat (omit for all chats)"`
	Service string `json:"service,omitempty" jsonschema:"Only this service category, e.g. Security Audits"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of records to return (default 20, max 200)"`
}

// ListOpportunitiesOutput is the output for digest_list_opportunities
type ListOpportunitiesOutput struct {
	Opportunities []OpportunityView `json:"opportunities"`
	Error         string            `json:"error,omitempty"`
}

func (s *DigestServer) handleListOpportunities(ctx context.Context, req *mcp.CallToolRequest, input ListOpportunitiesInput) (*mcp.CallToolResult, ListOpportunitiesOutput, error) {
	opps, err := s.chats.ListOpportunities(ctx, input.ChatID, input.Service, clampLimit(input.Limit))
	if err != nil {
		return nil, ListOpportunitiesOutput{Opportunities: []OpportunityView{}, Error: err.Error()}, nil
	}

	views := make([]OpportunityView, 0, len(opps))
	for _, o := range opps {
		views = append(views, opportunityView(o))
	}
	return nil, ListOpportunitiesOutput{Opportunities: views}, nil
}

// MarkRepliedInput is the input for digest_mark_replied
type MarkRepliedInput struct {
	ChatID    int64  `json:"chat_id" jsonschema:"Marked Telegram chat id"`
	RepliedAt string `json:"replied_at,omitempty" jsonschema:"RFC3339 time of the reply (default now)"`
}

// MarkRepliedOutput is the output for digest_mark_replied
type MarkRepliedOutput struct {
	Success   bool   `json:"success"`
	RepliedAt string `json:"replied_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *DigestServer) handleMarkReplied(ctx context.Context, req *mcp.CallToolRequest, input MarkRepliedInput) (*mcp.CallToolResult, MarkRepliedOutput, error) {
	at := s.now()
	if input.RepliedAt != "" {
		parsed, err := time.Parse(time.RFC3339, input.RepliedAt)
		if err != nil {
			return nil, MarkRepliedOutput{Error: fmt.Sprintf("invalid replied_at: %v", err)}, nil
		}
		at = parsed
	}

	if err := s.chats.SetLastReplyDate(ctx, input.ChatID, at); err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			return nil, MarkRepliedOutput{Error: fmt.Sprintf("chat %d not found", input.ChatID)}, nil
		}
		return nil, MarkRepliedOutput{Error: err.Error()}, nil
	}
	return nil, MarkRepliedOutput{Success: true, RepliedAt: formatTime(at)}, nil
}

func chatView(c *domain.Chat) ChatView {
	return ChatView{
		ChatID:          c.ChatID,
		Name:            c.Name,
		IsGroup:         c.IsGroup,
		LastMessageDate: formatTime(c.LastMessageDate),
		UrgencyScore:    c.UrgencyScore,
		NeedsFollowup:   c.NeedsFollowup,
		LastReplyDate:   formatTime(c.LastReplyDate),
	}
}

func opportunityView(o *domain.Opportunity) OpportunityView {
	return OpportunityView{
		ChatID:    o.ChatID,
		MessageID: o.MessageID,
		Service:   o.Service,
		Timestamp: formatTime(o.Timestamp),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
