package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/data"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// RulesConfig contains the heuristic rule set and summary prompts loaded from YAML
type RulesConfig struct {
	UrgentKeywords   []string        `yaml:"urgent_keywords"`
	FollowupKeywords []string        `yaml:"followup_keywords"`
	KnownContacts    []int64         `yaml:"known_contacts"`
	Services         []ServiceConfig `yaml:"services"`
	Summary          SummaryPrompts  `yaml:"summary"`
}

// ServiceConfig maps keywords to a service category
type ServiceConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SummaryPrompts contains summary model prompts.
// UserTemplate placeholders: {{context}}, {{messages}}. DefaultOffer may use {{company}}.
type SummaryPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
	Company      string `yaml:"company"`
	DefaultOffer string `yaml:"default_offer"`
}

// LoadRulesConfig loads the rules configuration from a YAML file.
// When no file is found the built-in defaults are returned.
func LoadRulesConfig(configPath string) (*RulesConfig, error) {
	log := logger.Component("config")

	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/rules.yaml",
			"/etc/tg-digest/rules.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "rules.yaml"))
		}
	}

	var raw []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			raw = b
			loadedPath = p
			break
		}
	}

	if raw == nil {
		if configPath != "" {
			return nil, fmt.Errorf("read rules file %s: not found", configPath)
		}
		log.Info().Msg("No rules.yaml found, using defaults")
		return DefaultRulesConfig(), nil
	}

	log.Info().Str("path", loadedPath).Msg("Loading rules")

	var config RulesConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse rules.yaml: %w", err)
	}

	config.fillDefaults()
	return &config, nil
}

// fillDefaults replaces every empty section with the built-in one
func (c *RulesConfig) fillDefaults() {
	defaults := DefaultRulesConfig()

	if len(c.UrgentKeywords) == 0 {
		c.UrgentKeywords = defaults.UrgentKeywords
	}
	if len(c.FollowupKeywords) == 0 {
		c.FollowupKeywords = defaults.FollowupKeywords
	}
	if len(c.KnownContacts) == 0 {
		c.KnownContacts = defaults.KnownContacts
	}
	if len(c.Services) == 0 {
		c.Services = defaults.Services
	}

	if c.Summary.SystemPrompt == "" {
		c.Summary.SystemPrompt = defaults.Summary.SystemPrompt
	}
	if c.Summary.UserTemplate == "" {
		c.Summary.UserTemplate = defaults.Summary.UserTemplate
	}
	if c.Summary.Company == "" {
		c.Summary.Company = defaults.Summary.Company
	}
	if c.Summary.DefaultOffer == "" {
		c.Summary.DefaultOffer = defaults.Summary.DefaultOffer
	}
}

// ToRules converts to the domain rule set
func (c *RulesConfig) ToRules() domain.Rules {
	contacts := make(map[int64]bool, len(c.KnownContacts))
	for _, id := range c.KnownContacts {
		contacts[id] = true
	}

	services := make([]domain.ServiceRule, 0, len(c.Services))
	for _, s := range c.Services {
		services = append(services, domain.ServiceRule{Service: s.Name, Keywords: s.Keywords})
	}

	return domain.Rules{
		UrgentKeywords:   c.UrgentKeywords,
		FollowupKeywords: c.FollowupKeywords,
		KnownContacts:    contacts,
		Services:         services,
	}
}

// ToSummaryConfig converts to the summarizer configuration
func (c *RulesConfig) ToSummaryConfig(maxTokens int) data.SummaryConfig {
	return data.SummaryConfig{
		SystemPrompt: c.Summary.SystemPrompt,
		UserTemplate: c.Summary.UserTemplate,
		Company:      c.Summary.Company,
		DefaultOffer: c.Summary.DefaultOffer,
		MaxTokens:    maxTokens,
	}
}

// DefaultRulesConfig returns the built-in rules configuration
func DefaultRulesConfig() *RulesConfig {
	rules := domain.DefaultRules()

	contacts := make([]int64, 0, len(rules.KnownContacts))
	for id := range rules.KnownContacts {
		contacts = append(contacts, id)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i] < contacts[j] })

	services := make([]ServiceConfig, 0, len(rules.Services))
	for _, s := range rules.Services {
		services = append(services, ServiceConfig{Name: s.Service, Keywords: s.Keywords})
	}

	return &RulesConfig{
		UrgentKeywords:   rules.UrgentKeywords,
		FollowupKeywords: rules.FollowupKeywords,
		KnownContacts:    contacts,
		Services:         services,
		Summary: SummaryPrompts{
			SystemPrompt: "You are a professional summarizer for {{company}}'s Business Development team. " +
				"Provide a concise summary of the conversation, highlighting key dates, places, reminders, and follow-up items. " +
				"Tag each participating user by their username.",
			UserTemplate: "Summarize the following conversation, including important dates, places, reminders, and follow-up items. " +
				"Tag each user who participated. Context: {{context}}\n\nMessages:\n{{messages}}",
			Company:      "Nethermind",
			DefaultOffer: "{{company}} offers blockchain solutions.",
		},
	}
}
