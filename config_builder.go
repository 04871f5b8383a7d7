package uam

// ConfigBuilder provides a fluent API for assembling configurations in code,
// mostly for tests and bootstrap tooling
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version: 1,
			Rules:   []*PermissionRule{},
			Rows:    []ConfigRow{},
			Engine: EngineConfig{
				AutoGrantThreshold:       DefaultAutoGrantThreshold,
				RequireApprovalThreshold: DefaultRequireApprovalThreshold,
			},
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

func (b *ConfigBuilder) AddRule(r *PermissionRule) *ConfigBuilder {
	b.cfg.Rules = append(b.cfg.Rules, r)
	return b
}

func (b *ConfigBuilder) AddRow(row ConfigRow) *ConfigBuilder {
	row.RowIndex = len(b.cfg.Rows)
	b.cfg.Rows = append(b.cfg.Rows, row)
	return b
}

func (b *ConfigBuilder) Thresholds(autoGrant, requireApproval float64) *ConfigBuilder {
	b.cfg.Engine.AutoGrantThreshold = autoGrant
	b.cfg.Engine.RequireApprovalThreshold = requireApproval
	return b
}

func (b *ConfigBuilder) DecisionCache(numCounters, maxCost, buffer, ttlMillis int64) *ConfigBuilder {
	b.cfg.Engine.RistrettoNumCounter = numCounters
	b.cfg.Engine.RistrettoMaxCost = maxCost
	b.cfg.Engine.RistrettoBuffer = buffer
	b.cfg.Engine.DecisionCacheTTL = ttlMillis
	return b
}

func (b *ConfigBuilder) Reasoner(endpoint, apiKey, model string) *ConfigBuilder {
	b.cfg.Engine.ReasonerEndpoint = endpoint
	b.cfg.Engine.ReasonerAPIKey = apiKey
	b.cfg.Engine.ReasonerModel = model
	return b
}

func (b *ConfigBuilder) Ticketing(url, username, password string) *ConfigBuilder {
	b.cfg.Engine.TicketingURL = url
	b.cfg.Engine.TicketingUsername = username
	b.cfg.Engine.TicketingPassword = password
	return b
}

func (b *ConfigBuilder) Build() *Config { return b.cfg }
