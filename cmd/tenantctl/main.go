package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tenant-config-service/internal/access"
	"tenant-config-service/internal/onboarding"
	"tenant-config-service/internal/registry"
	"tenant-config-service/internal/store"
	"tenant-config-service/internal/usage"
	"tenant-config-service/pkg/config"
	"tenant-config-service/pkg/database"
)

var Version = "dev"

// jsonOutput switches every command to machine-readable output.
var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:     "tenantctl",
		Short:   "Administer tenants, onboarding, access, and usage",
		Version: Version,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(requestChangesCmd())
	rootCmd.AddCommand(manualEntryCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(grantCmd())
	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(tenantsCmd())
	rootCmd.AddCommand(setStatusCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(markUsedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engine bundles the services the subcommands operate on. The CLI talks
// to the store directly rather than through the HTTP API, so it needs the
// same database the server uses.
type engine struct {
	docs     store.DocumentStore
	resolver *access.Resolver
	flow     *onboarding.Workflow
	tenants  *registry.Registry
	tracker  *usage.Tracker
}

func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	var docs store.DocumentStore
	var sessions store.SessionStore
	if cfg.Store.Driver == "memory" {
		docs = store.NewMemoryStore()
		sessions = store.NewMemorySessionStore()
	} else {
		if err := database.Init(cfg); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		docs = store.NewGormStore(database.GetDB())
		sessions = store.NewGormSessionStore(database.GetDB())
	}

	return &engine{
		docs:     docs,
		resolver: access.NewResolver(docs),
		flow:     onboarding.New(docs, sessions, nil, cfg.Onboarding.TTL, cfg.Onboarding.BaseURL),
		tenants:  registry.New(docs),
		tracker:  usage.New(docs),
	}, nil
}

// emit prints v as indented JSON when --json is set and returns true,
// leaving human-readable output to the caller otherwise.
func emit(v interface{}) bool {
	if !jsonOutput {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return true
}
