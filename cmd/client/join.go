package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/immxrtalbeast/meshcall/internal/client"
	"github.com/immxrtalbeast/meshcall/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	joinCmd.Flags().BoolVar(&flagNoMedia, "no-media", false, "join without camera and microphone")
}

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a room",
	Long: `Join a room and stay until stdin is closed, /leave is typed or the
process is interrupted. Every other line typed is sent as a chat message.

Examples:
  meshcall-client join
  meshcall-client join standup --server wss://call.example.com/ws
  meshcall-client join standup --no-media`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := config.DefaultRoom
		if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
			roomID = strings.TrimSpace(args[0])
		}
		return joinRoom(cmd.Context(), roomID)
	},
}

func joinRoom(parent context.Context, roomID string) error {
	cfg, err := config.LoadClient(config.ClientOptions{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		NoMedia:    flagNoMedia,
	})
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default().With(slog.String("room_id", roomID))

	signaling := client.NewSignalingClient(cfg.ServerURL, log)
	if err := signaling.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}

	var provider client.MediaProvider
	if !cfg.NoMedia {
		provider = client.SyntheticMediaProvider{}
	}

	console := client.NewConsole(os.Stdout)
	conf := client.NewConference(
		signaling,
		client.NewPionFactory(cfg.STUNServers),
		console,
		provider,
		console,
		client.DefaultManagerConfig(),
		log,
	)
	defer conf.Leave()

	if err := conf.Join(ctx, roomID); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- conf.Run(ctx) }()

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if errors.Is(err, client.ErrRoomFull) {
				return err
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(os.Stdout, "disconnected from server")
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/leave" {
				return nil
			}
			if err := conf.SendMessage(line); err != nil {
				return err
			}
		}
	}
}

// readLines forwards stdin lines until EOF.
func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}
