package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/klappy/bible-search-engine/pkg/client"
	"github.com/klappy/bible-search-engine/pkg/core"
)

type searchFlags struct {
	URL          string
	Language     string
	Owner        string
	Reference    string
	Limit        int
	IncludeHelps bool
	Fuzzy        float64
	Prefix       bool
	TimeoutMs    int
}

// newSearchCmd creates a cobra command that runs one query against a
// running instance over the /search JSON contract and prints the response
// to stdout.
func newSearchCmd(flags *cmdFlags) *cobra.Command {
	sFlags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a search query against a running instance",
		Long:  "Send one query to a running instance's /search endpoint and print the JSON response.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), flags, sFlags, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&sFlags.URL, "url", "http://localhost:8080", "base URL of the instance")
	cmd.Flags().StringVar(&sFlags.Language, "language", "en", "resource language")
	cmd.Flags().StringVar(&sFlags.Owner, "owner", "unfoldingWord", "resource owner organization")
	cmd.Flags().StringVar(&sFlags.Reference, "reference", "", "optional Bible reference filter (e.g. \"John 3:16\")")
	cmd.Flags().IntVar(&sFlags.Limit, "limit", 0, "maximum hits to return (server default when unset)")
	cmd.Flags().BoolVar(&sFlags.IncludeHelps, "include-helps", true, "search helps resources alongside scripture")
	cmd.Flags().Float64Var(&sFlags.Fuzzy, "fuzzy", 0, "fuzzy match threshold 0.0-1.0 (server default when unset)")
	cmd.Flags().BoolVar(&sFlags.Prefix, "prefix", true, "enable prefix matching")
	cmd.Flags().IntVar(&sFlags.TimeoutMs, "timeout-ms", 0, "per-request deadline in milliseconds (server default when unset)")

	bindSearchEnvDefaults(cmd)

	return cmd
}

// bindSearchEnvDefaults sets flag defaults from environment variables when
// the flags are not explicitly provided.
func bindSearchEnvDefaults(cmd *cobra.Command) {
	envBindings := map[string]string{
		"url":      "BSEARCH_URL",
		"language": "BSEARCH_LANGUAGE",
		"owner":    "BSEARCH_OWNER",
	}

	for flagName, envVar := range envBindings {
		if val := os.Getenv(envVar); val != "" {
			if err := cmd.Flags().Set(flagName, val); err != nil {
				slog.Warn("failed to set flag from env", "flag", flagName, "env", envVar, "error", err)
			}
		}
	}
}

// runSearch builds the request, preserving the server's own defaults for
// any option the caller did not set explicitly, and prints the response.
func runSearch(ctx context.Context, flags *cmdFlags, sFlags *searchFlags, cmd *cobra.Command, query string) error {
	if err := initLogger(flags); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	req := core.SearchRequest{
		Query:     query,
		Language:  sFlags.Language,
		Owner:     sFlags.Owner,
		Reference: sFlags.Reference,
		TimeoutMs: sFlags.TimeoutMs,
	}

	// Only forward options the caller set, so the server's defaults stay
	// authoritative (the contract requires tools to pass inputs through
	// unchanged).
	if cmd.Flags().Changed("limit") {
		req.Limit = &sFlags.Limit
	}

	if cmd.Flags().Changed("include-helps") {
		req.IncludeHelps = &sFlags.IncludeHelps
	}

	if cmd.Flags().Changed("fuzzy") {
		req.Fuzzy = &sFlags.Fuzzy
	}

	if cmd.Flags().Changed("prefix") {
		req.Prefix = &sFlags.Prefix
	}

	resp, err := client.New(sFlags.URL).Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	slog.Info("Search complete", "hits", len(resp.Hits), "resources", resp.ResourceCount, "failures", len(resp.Failures), "took_ms", resp.TookMs)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to print response: %w", err)
	}

	return nil
}
