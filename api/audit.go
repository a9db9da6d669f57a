package api

import "time"

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	ToEnv   string    `json:"to_env,omitempty"`
	Verdict Verdict   `json:"verdict,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// AuditStats provides summary statistics over recent audit records.
type AuditStats struct {
	TotalRecords int            `json:"total_records"`
	AllowCount   int            `json:"allow_count"`
	DenyCount    int            `json:"deny_count"`
	LogCount     int            `json:"log_count"`
	Productions  int            `json:"productions"`
	ByTool       map[string]int `json:"by_tool"`
	ByTargetEnv  map[string]int `json:"by_target_env"`
}
