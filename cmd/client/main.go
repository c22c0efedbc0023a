package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer  string
	flagSTUN    string
	flagNoMedia bool
)

var rootCmd = &cobra.Command{
	Use:   "meshcall-client",
	Short: "Join a meshcall room from the terminal",
	Long: `meshcall joins a room on a meshcall server. The first four members of a
room send and receive video, everyone else takes part in the chat.

Configuration priority: flags, then MESHCALL_SERVER and STUN_SERVER, then defaults.`,
	SilenceUsage: true,
}

func main() {
	initLogger()

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "signaling server WebSocket URL")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "comma-separated STUN server URLs")
	rootCmd.AddCommand(joinCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger keeps the terminal quiet unless LOG_LEVEL asks for more.
func initLogger() {
	level := slog.LevelError
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "dev", "local":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
