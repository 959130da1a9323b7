package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TannerBurns/termai/internal/config"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long:  `Commands for listing, removing, and cleaning up stored agent sessions.`,
	RunE:  runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long: `List stored sessions with their state:
- Session ID and name
- Capability mode and last phase
- Whether another termai process has the session open`,
	RunE: runSessionsList,
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "remove <session-id>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRemove,
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up stale session locks",
	Long: `Remove lock files left behind by termai processes that died without
releasing their sessions. Locks held by live processes are kept.`,
	RunE: runSessionsClean,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)
	sessionsCmd.AddCommand(sessionsCleanCmd)
}

// openManager builds a Manager for the one-shot session commands.
// They log nowhere and share nothing, so a fresh bus is fine.
func openManager() (*session.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return session.NewManager(cfg, event.NewBus(), logging.NopLogger())
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}
	defer manager.Close(context.Background())

	infos, err := manager.Stored(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Println("Termai Sessions")
	fmt.Println(strings.Repeat("─", 70))

	if len(infos) == 0 {
		fmt.Println("\nNo sessions found.")
		fmt.Println("Run 'termai run <prompt>' to start one.")
		return nil
	}

	fmt.Println()
	for i, info := range infos {
		name := info.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("[%d] %s  %s (%s)\n", i+1, info.ID, name, info.Mode)
		fmt.Printf("    Phase: %s  Steps: %d  Updated: %s\n",
			info.Phase, info.Steps, info.Updated.Format("2006-01-02 15:04:05"))
		if info.Locked {
			fmt.Println("    Open in another termai process")
		}
		fmt.Println()
	}

	fmt.Printf("Resume with 'termai run --session <id>'\n")
	return nil
}

func runSessionsRemove(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}
	defer manager.Close(context.Background())

	id := args[0]
	if err := manager.Remove(context.Background(), id); err != nil {
		return fmt.Errorf("failed to remove session %s: %w", id, err)
	}

	fmt.Printf("Removed session %s\n", id)
	return nil
}

func runSessionsClean(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}
	defer manager.Close(context.Background())

	removed, err := session.CleanStaleLocks(manager.Root(), logging.NopLogger())
	if err != nil {
		return fmt.Errorf("failed to clean locks: %w", err)
	}

	if len(removed) == 0 {
		fmt.Println("No stale locks found.")
		return nil
	}
	for _, path := range removed {
		fmt.Printf("Removed stale lock %s\n", path)
	}
	return nil
}
