package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/streamcart/cartsync/pkg/config"
	"github.com/streamcart/cartsync/pkg/realtime"
)

var (
	tailTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	tailScopeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	tailKindStyles = map[string]lipgloss.Style{
		realtime.KindOptimistic: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		realtime.KindReplace:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		realtime.KindCleared:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// TailCommand creates a CLI command that tails the daemon's local event
// socket and prints every state transition as it happens.
//
// Typical usage:
//
//	cartsync tail
//	cartsync tail --json | jq -r 'select(.domain=="cart")'
//
// The command auto-reconnects with a fixed delay while the daemon is down,
// unless --no-retry is set.
func TailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream state-change events from a running daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Daemon API address (overrides config listen_addr)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw NDJSON instead of styled lines",
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Exit on the first connection error instead of retrying",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			addr := c.String("addr")
			if addr == "" {
				cfg, err := config.LoadConfig(c.String("config"))
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				addr = cfg.ListenAddr
			}
			return tailEvents(ctx, addr, c.Bool("json"), c.Bool("no-retry"))
		},
	}
}

func tailEvents(ctx context.Context, addr string, rawJSON, noRetry bool) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/events"}
	titler := cases.Title(language.English)

	for {
		err := tailOnce(ctx, u.String(), rawJSON, titler)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "tail: %v\n", err)
			if noRetry {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func tailOnce(ctx context.Context, wsURL string, rawJSON bool, titler cases.Caser) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	// Close the connection when the context ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev realtime.StateEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		if rawJSON {
			raw, _ := json.Marshal(ev)
			fmt.Println(string(raw))
			continue
		}
		printEvent(ev, titler)
	}
}

func printEvent(ev realtime.StateEvent, titler cases.Caser) {
	kindStyle, ok := tailKindStyles[ev.Kind]
	if !ok {
		kindStyle = lipgloss.NewStyle()
	}
	fmt.Printf("%s %s %s %s\n",
		tailTimeStyle.Render(ev.At.Local().Format("15:04:05.000")),
		tailScopeStyle.Render(ev.Scope),
		titler.String(ev.Domain),
		kindStyle.Render(ev.Kind),
	)
}
