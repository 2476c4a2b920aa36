package domain

import (
	"math"
	"strings"
	"time"
)

// Score components
const (
	urgentKeywordBonus = 40
	knownContactBonus  = 20
	maxRecencyBonus    = 30
	groupBonus         = 10
	maxUrgency         = 100

	recencyStepMinutes = 10
	staleReplyDays     = 2
)

// ServiceRule maps a keyword group to a service category
type ServiceRule struct {
	Service  string
	Keywords []string
}

// Rules is the heuristic rule set used to score and tag a dialog's latest message.
// Keywords are matched case-insensitively as substrings.
type Rules struct {
	UrgentKeywords   []string
	FollowupKeywords []string
	KnownContacts    map[int64]bool
	Services         []ServiceRule // evaluated in order
}

// DefaultRules returns the built-in rule set
func DefaultRules() Rules {
	return Rules{
		UrgentKeywords:   []string{"urgent", "asap", "deadline", "proposal", "contract", "deal"},
		FollowupKeywords: []string{"follow up", "next steps", "meeting", "call", "discuss"},
		KnownContacts:    map[int64]bool{123456: true, 789012: true},
		Services: []ServiceRule{
			{Service: "Security Audits", Keywords: []string{"security", "audit"}},
			{Service: "Smart Contract Development", Keywords: []string{"smart contract", "solidity", "cairo"}},
			{Service: "DeFi Solutions", Keywords: []string{"defi", "finance"}},
			{Service: "Protocol Engineering", Keywords: []string{"blockchain", "protocol", "ethereum", "starknet"}},
		},
	}
}

// Urgency scores a dialog's latest message in [0, 100].
// The recency term depends on now, so the score changes as time passes.
func (r Rules) Urgency(msg *Message, isGroup bool, now time.Time) int {
	score := 0
	if containsAny(msg.Text, r.UrgentKeywords) {
		score += urgentKeywordBonus
	}
	if r.KnownContacts[msg.SenderID] {
		score += knownContactBonus
	}
	score += recencyBonus(msg.Date, now)
	if isGroup {
		score += groupBonus
	}
	if score > maxUrgency {
		return maxUrgency
	}
	return score
}

// recencyBonus decays from 30 by one point per 10 minutes, reaching 0 after 300 minutes
func recencyBonus(sent, now time.Time) int {
	minutes := now.Sub(sent).Minutes()
	bonus := maxRecencyBonus - int(math.Floor(minutes/recencyStepMinutes))
	if bonus < 0 {
		return 0
	}
	if bonus > maxRecencyBonus {
		return maxRecencyBonus
	}
	return bonus
}

// Opportunities returns the service categories whose keywords appear in text, in rule order
func (r Rules) Opportunities(text string) []string {
	if text == "" {
		return nil
	}
	var services []string
	for _, rule := range r.Services {
		if containsAny(text, rule.Keywords) {
			services = append(services, rule.Service)
		}
	}
	return services
}

// NeedsFollowup reports whether a reply is owed. A followup keyword always triggers;
// otherwise a last reply more than two whole days old does. A zero lastReply (no reply on record)
// never counts as stale.
func (r Rules) NeedsFollowup(text string, lastReply, now time.Time) bool {
	if containsAny(text, r.FollowupKeywords) {
		return true
	}
	if lastReply.IsZero() {
		return false
	}
	days := int(now.Sub(lastReply).Hours() / 24)
	return days > staleReplyDays
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
