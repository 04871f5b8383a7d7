package uam

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full declarative configuration: the rule catalog, the tabular
// configuration rows and the engine settings. It is what the configuration
// source (spreadsheet export, config repo) serializes to.
type Config struct {
	Version uint16            `json:"version" yaml:"version"`
	Rules   []*PermissionRule `json:"rules" yaml:"rules"`
	Rows    []ConfigRow       `json:"rows" yaml:"rows"`
	Engine  EngineConfig      `json:"engine" yaml:"engine"`
}

// EngineConfig carries the tunable engine settings. Durations are plain
// millisecond integers so the file formats stay trivial.
type EngineConfig struct {
	AutoGrantThreshold       float64 `json:"auto_grant_threshold" yaml:"auto_grant_threshold"`
	RequireApprovalThreshold float64 `json:"require_approval_threshold" yaml:"require_approval_threshold"`

	DecisionCacheTTL    int64 `json:"decision_cache_ttl_ms" yaml:"decision_cache_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`

	ReasonerEndpoint    string  `json:"reasoner_endpoint" yaml:"reasoner_endpoint"`
	ReasonerAPIKey      string  `json:"reasoner_api_key" yaml:"reasoner_api_key"`
	ReasonerModel       string  `json:"reasoner_model" yaml:"reasoner_model"`
	ReasonerTemperature float64 `json:"reasoner_temperature" yaml:"reasoner_temperature"`
	ReasonerTimeout     int64   `json:"reasoner_timeout_ms" yaml:"reasoner_timeout_ms"`

	TicketingURL      string `json:"ticketing_url" yaml:"ticketing_url"`
	TicketingUsername string `json:"ticketing_username" yaml:"ticketing_username"`
	TicketingPassword string `json:"ticketing_password" yaml:"ticketing_password"`
	TicketingTable    string `json:"ticketing_table" yaml:"ticketing_table"`
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

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

// LoadFile picks the loader from the file extension
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports structural problems in the configuration. Issues are
// returned rather than logged so callers (CLI, tests) choose the presentation.
func (c *Config) Validate() []string {
	var issues []string
	seen := make(map[string]bool)
	for i, r := range c.Rules {
		if r == nil {
			issues = append(issues, fmt.Sprintf("rule %d: nil entry", i))
			continue
		}
		if strings.TrimSpace(r.PermissionName) == "" {
			issues = append(issues, fmt.Sprintf("rule %d: permission_name is empty", i))
		}
		switch r.PriorityLevel {
		case PriorityHigh, PriorityMedium, PriorityLow, "":
		default:
			issues = append(issues, fmt.Sprintf("rule %d (%s): unknown priority_level %q", i, r.PermissionName, r.PriorityLevel))
		}
		key := strings.ToLower(r.PermissionName)
		if key != "" {
			if seen[key] {
				issues = append(issues, fmt.Sprintf("rule %d: duplicate permission_name %q", i, r.PermissionName))
			}
			seen[key] = true
		}
	}
	for i, row := range c.Rows {
		if strings.TrimSpace(row.Role) == "" && strings.TrimSpace(row.Application) == "" {
			issues = append(issues, fmt.Sprintf("row %d: both role and application are empty", i))
		}
	}
	e := c.Engine
	if e.AutoGrantThreshold < 0 || e.AutoGrantThreshold > 100 {
		issues = append(issues, fmt.Sprintf("engine: auto_grant_threshold %.2f out of [0,100]", e.AutoGrantThreshold))
	}
	if e.RequireApprovalThreshold < 0 || e.RequireApprovalThreshold > 100 {
		issues = append(issues, fmt.Sprintf("engine: require_approval_threshold %.2f out of [0,100]", e.RequireApprovalThreshold))
	}
	if e.AutoGrantThreshold > 0 && e.RequireApprovalThreshold > e.AutoGrantThreshold {
		issues = append(issues, "engine: require_approval_threshold exceeds auto_grant_threshold")
	}
	return issues
}

// ApplyConfig applies engine settings and installs the rule/row snapshot.
// Evaluations started before the call keep the previous snapshot.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}

	if cfg.Engine.AutoGrantThreshold > 0 {
		e.autoGrantThreshold = cfg.Engine.AutoGrantThreshold
	}
	if cfg.Engine.RequireApprovalThreshold > 0 {
		e.requireApprovalThreshold = cfg.Engine.RequireApprovalThreshold
	}

	if cfg.Engine.RistrettoNumCounter > 0 {
		dc, err := newDecisionCache(CacheConfig{
			NumCounters: cfg.Engine.RistrettoNumCounter,
			MaxCost:     cfg.Engine.RistrettoMaxCost,
			BufferItems: cfg.Engine.RistrettoBuffer,
			TTL:         time.Duration(cfg.Engine.DecisionCacheTTL) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		e.decisionCache = dc
	}

	if cfg.Engine.TicketingURL != "" {
		tc, err := NewServiceNowClient(TicketingConfig{
			InstanceURL: cfg.Engine.TicketingURL,
			Username:    cfg.Engine.TicketingUsername,
			Password:    cfg.Engine.TicketingPassword,
			Table:       cfg.Engine.TicketingTable,
		})
		if err != nil {
			return err
		}
		e.tickets = tc
	}

	fallback := NewThresholdPolicy(e.autoGrantThreshold, e.requireApprovalThreshold)
	if cfg.Engine.ReasonerEndpoint != "" {
		reasoner, err := NewHTTPReasoner(ReasonerConfig{
			Endpoint:    cfg.Engine.ReasonerEndpoint,
			APIKey:      cfg.Engine.ReasonerAPIKey,
			Model:       cfg.Engine.ReasonerModel,
			Temperature: cfg.Engine.ReasonerTemperature,
			Timeout:     time.Duration(cfg.Engine.ReasonerTimeout) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		delegated := NewDelegatedPolicy(reasoner, fallback)
		delegated.SetLogger(e.logger)
		e.policy = delegated
	} else if _, ok := e.policy.(*ThresholdPolicy); ok || e.policy == nil {
		e.policy = fallback
	}

	rows := make([]ConfigRow, len(cfg.Rows))
	copy(rows, cfg.Rows)
	for i := range rows {
		if rows[i].RowIndex == 0 {
			rows[i].RowIndex = i
		}
	}
	e.SetSnapshot(&Snapshot{
		Catalog: NewCatalog(cfg.Rules),
		Rows:    rows,
	})
	return nil
}
