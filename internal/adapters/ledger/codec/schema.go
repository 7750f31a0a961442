package codec

import "fmt"

const currentSchemaVersion = 1

type documentSchema struct {
	Version   int                      `json:"version" toml:"version"`
	Aggregate aggregateSchema          `json:"aggregate" toml:"aggregate"`
	Accounts  map[string]accountSchema `json:"accounts" toml:"accounts"`
}

func (s *documentSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Accounts == nil {
		s.Accounts = map[string]accountSchema{}
	}
}

func (s documentSchema) validateVersion() error {
	if s.Version > currentSchemaVersion || s.Version < 0 {
		return fmt.Errorf("unsupported ledger schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type aggregateSchema struct {
	TotalRequests int64 `json:"totalRequests" toml:"totalRequests"`
	TotalUnits    int64 `json:"totalUnits" toml:"totalUnits"`
}

type accountSchema struct {
	RequestCount    int64  `json:"requestCount" toml:"requestCount"`
	UnitsConsumed   int64  `json:"unitsConsumed" toml:"unitsConsumed"`
	Balance         int64  `json:"balance" toml:"balance"`
	DisplayName     string `json:"displayName" toml:"displayName"`
	Handle          string `json:"handle,omitempty" toml:"handle,omitempty"`
	LastActivity    string `json:"lastActivity" toml:"lastActivity"`
	SystemDirective string `json:"systemDirective,omitempty" toml:"systemDirective,omitempty"`
}

// legacyAccountSchema is one per-user object of the legacy data.json format,
// keyed next to a "global" aggregate object.
type legacyAccountSchema struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Balance  int64   `json:"balance"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	LastDate string  `json:"lastdate"`
	Prompt   *string `json:"prompt"`
}

type legacyGlobalSchema struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

const (
	legacyGlobalKey   = "global"
	legacyPlaceholder = "None"
)
