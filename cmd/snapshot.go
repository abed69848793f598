package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/streamcart/cartsync/pkg/cache"
	"github.com/streamcart/cartsync/pkg/config"
)

var (
	snapshotHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("214"))

	snapshotMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// SnapshotCommand creates the snapshot command for offline inspection of the
// cached state. It opens the cache database directly, so it works whether or
// not the daemon is running.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Inspect cached snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scope",
				Usage: "Only show snapshots for this scope",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Print the decoded JSON payload of each snapshot",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return showSnapshots(cfg.StorageDir, c.String("scope"), c.Bool("dump"))
		},
	}
}

func showSnapshots(storageDir, scopeFilter string, dump bool) error {
	store, err := cache.NewStore(storageDir)
	if err != nil {
		return fmt.Errorf("opening snapshot cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List()
	if err != nil {
		return err
	}

	shown := 0
	for _, e := range entries {
		if scopeFilter != "" && e.Scope != scopeFilter {
			continue
		}
		shown++
		fmt.Printf("%s %s\n",
			snapshotHeaderStyle.Render(fmt.Sprintf("%s/%s", e.Scope, e.Domain)),
			snapshotMetaStyle.Render(fmt.Sprintf("%d bytes, updated %s", e.Size, e.UpdatedAt.Local().Format("2006-01-02 15:04:05"))),
		)
		if dump {
			var payload any
			if _, err := store.Get(e.Scope, e.Domain, &payload); err != nil {
				fmt.Printf("  (unreadable: %v)\n", err)
				continue
			}
			pretty, err := json.MarshalIndent(payload, "  ", "  ")
			if err != nil {
				fmt.Printf("  (unprintable: %v)\n", err)
				continue
			}
			fmt.Printf("  %s\n", pretty)
		}
	}

	if shown == 0 {
		fmt.Println("No cached snapshots.")
	}
	return nil
}
