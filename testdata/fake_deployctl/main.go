// fake_deployctl simulates the deployment CLI for manual testing.
// Usage: go build -o deployctl . && deploygate serve --command ./deployctl
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: deployctl <releases|health|promote> [args...]")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "releases":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "releases: missing app")
			os.Exit(2)
		}
		releases := []map[string]any{
			{"version": "1.4.2", "environment": "staging", "deployed_at": "2026-08-28T10:00:00Z"},
			{"version": "1.4.1", "environment": "prod", "deployed_at": "2026-08-20T09:30:00Z"},
			{"version": "1.4.0", "environment": "prod", "deployed_at": "2026-08-12T14:15:00Z"},
		}
		json.NewEncoder(os.Stdout).Encode(releases)

	case "health":
		envs := []string{"dev", "staging", "uat", "prod"}
		if len(os.Args) > 2 {
			envs = os.Args[2:3]
		}
		var out []map[string]any
		for _, env := range envs {
			out = append(out, map[string]any{
				"environment": env,
				"status":      "healthy",
				"checked_at":  time.Now().UTC().Format(time.RFC3339),
			})
		}
		json.NewEncoder(os.Stdout).Encode(out)

	case "promote":
		if len(os.Args) != 6 {
			fmt.Fprintln(os.Stderr, "promote: expected app version from to")
			os.Exit(2)
		}
		app, version, from, to := os.Args[2], os.Args[3], os.Args[4], os.Args[5]
		if version == "0.0.0-fail" {
			fmt.Fprintf(os.Stderr, "promote: release %s of %s not found in %s\n", version, app, from)
			os.Exit(1)
		}
		if version == "0.0.0-hang" {
			time.Sleep(time.Hour)
		}
		fmt.Printf("promoted %s %s: %s -> %s\n", app, version, from, to)

	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(2)
	}
}
