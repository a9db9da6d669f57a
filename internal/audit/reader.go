package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"deploygate/api"
)

// ReadDir loads audit records from the dated JSONL files in dir, oldest
// first, applying the filter. Unparseable lines are skipped so a partially
// written final line never blocks reading the rest.
func ReadDir(dir string, filter api.QueryFilter) ([]*api.AuditRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var records []*api.AuditRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var r api.AuditRecord
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			if matchesFilter(&r, filter) {
				records = append(records, &r)
			}
		}
		f.Close()
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return nil, nil
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

// Summarize aggregates records into stats.
func Summarize(records []*api.AuditRecord) *api.AuditStats {
	stats := &api.AuditStats{
		ByTool:      make(map[string]int),
		ByTargetEnv: make(map[string]int),
	}
	for _, r := range records {
		stats.TotalRecords++
		switch r.Verdict {
		case api.VerdictAllow:
			stats.AllowCount++
		case api.VerdictDeny:
			stats.DenyCount++
		case api.VerdictLog:
			stats.LogCount++
		}
		if r.Production {
			stats.Productions++
		}
		if r.Tool != "" {
			stats.ByTool[r.Tool]++
		}
		if r.ToEnv != "" {
			stats.ByTargetEnv[r.ToEnv]++
		}
	}
	return stats
}
