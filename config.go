package dataperm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oarkflow/date"
)

// Config is the declarative bootstrap format for the engine: cache TTLs,
// role-default overrides, and seed rules/grants. It round-trips through YAML
// and JSON.
type Config struct {
	Engine       EngineConfig   `json:"engine" yaml:"engine"`
	RoleDefaults []RoleDefault  `json:"role_defaults,omitempty" yaml:"role_defaults,omitempty"`
	Rules        []RuleConfig   `json:"rules,omitempty" yaml:"rules,omitempty"`
	Temporary    []TempConfig   `json:"temporary,omitempty" yaml:"temporary,omitempty"`
}

type EngineConfig struct {
	RuleDecisionTTL int64 `json:"rule_decision_ttl_ms" yaml:"rule_decision_ttl_ms"`
	TempDecisionTTL int64 `json:"temp_decision_ttl_ms" yaml:"temp_decision_ttl_ms"`
	ScopeTTL        int64 `json:"scope_ttl_ms" yaml:"scope_ttl_ms"`
}

// RoleDefault replaces the default operation set for one role on one
// resource type. Listing a role/type with no operations revokes its defaults.
type RoleDefault struct {
	Role         Role        `json:"role" yaml:"role"`
	ResourceType string      `json:"resource_type" yaml:"resource_type"`
	Operations   []Operation `json:"operations" yaml:"operations"`
}

// RuleConfig is the seed form of a PermissionRule. Times are parsed with the
// flexible date parser, so "2026-01-02", RFC3339, and friends all work.
type RuleConfig struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	UserID        string         `json:"user_id" yaml:"user_id"`
	ResourceType  string         `json:"resource_type" yaml:"resource_type"`
	ResourceID    string         `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Operation     Operation      `json:"operation" yaml:"operation"`
	Allow         bool           `json:"allow" yaml:"allow"`
	Priority      int            `json:"priority" yaml:"priority"`
	EffectiveFrom string         `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   string         `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
	Condition     map[string]any `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type TempConfig struct {
	UserID       string    `json:"user_id" yaml:"user_id"`
	ResourceType string    `json:"resource_type" yaml:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Operation    Operation `json:"operation" yaml:"operation"`
	ExpiresAt    string    `json:"expires_at" yaml:"expires_at"`
	GrantedBy    string    `json:"granted_by,omitempty" yaml:"granted_by,omitempty"`
}

// ConfigLoader parses Config from the supported on-disk formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyConfig applies TTLs and role-default overrides, then seeds rules and
// temporary grants through the normal mutation paths so cache invalidation
// fires as usual. Seed entries are applied in order; the first failure aborts.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if cfg.Engine.RuleDecisionTTL > 0 {
		e.ruleDecisionTTL = time.Duration(cfg.Engine.RuleDecisionTTL) * time.Millisecond
	}
	if cfg.Engine.TempDecisionTTL > 0 {
		e.tempDecisionTTL = time.Duration(cfg.Engine.TempDecisionTTL) * time.Millisecond
	}
	if cfg.Engine.ScopeTTL > 0 {
		e.scopeTTL = time.Duration(cfg.Engine.ScopeTTL) * time.Millisecond
	}

	for _, d := range cfg.RoleDefaults {
		ops := make(map[Operation]bool, len(d.Operations))
		for _, op := range d.Operations {
			ops[op] = true
		}
		byType := e.roleDefaults[d.Role]
		if byType == nil {
			byType = make(map[string]map[Operation]bool)
			e.roleDefaults[d.Role] = byType
		}
		byType[d.ResourceType] = ops
	}

	for i, rc := range cfg.Rules {
		rule, err := rc.toRule()
		if err != nil {
			return fmt.Errorf("config rule %d: %w", i, err)
		}
		if err := e.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("config rule %d: %w", i, err)
		}
	}

	for i, tc := range cfg.Temporary {
		expires, err := date.Parse(tc.ExpiresAt)
		if err != nil {
			return fmt.Errorf("config temporary %d: parse expires_at: %w", i, err)
		}
		if err := e.GrantTemporaryPermission(ctx, tc.UserID, tc.ResourceType, tc.ResourceID, tc.Operation, expires, tc.GrantedBy); err != nil {
			return fmt.Errorf("config temporary %d: %w", i, err)
		}
	}
	return nil
}

func (rc RuleConfig) toRule() (*PermissionRule, error) {
	r := &PermissionRule{
		ID:           rc.ID,
		UserID:       rc.UserID,
		ResourceType: rc.ResourceType,
		ResourceID:   rc.ResourceID,
		Operation:    rc.Operation,
		Allow:        rc.Allow,
		Priority:     rc.Priority,
		Source:       SourceDirect,
	}
	if rc.EffectiveFrom != "" {
		t, err := date.Parse(rc.EffectiveFrom)
		if err != nil {
			return nil, fmt.Errorf("parse effective_from: %w", err)
		}
		r.EffectiveFrom = t
	}
	if rc.EffectiveTo != "" {
		t, err := date.Parse(rc.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("parse effective_to: %w", err)
		}
		r.EffectiveTo = t
	}
	if len(rc.Condition) > 0 {
		cond, err := ParseConditionPayload(rc.Condition)
		if err != nil {
			return nil, err
		}
		r.Condition = cond
	}
	return r, nil
}
