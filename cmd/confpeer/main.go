package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/immxrtalbeast/confroom/internal/client"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
	"github.com/immxrtalbeast/confroom/lib/logger/slogpretty"
	"github.com/spf13/cobra"
)

var (
	flagServer  string
	flagToken   string
	flagName    string
	flagSTUN    []string
	flagGreet   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "confpeer <room-id>",
	Short: "Join a conference room as a headless peer",
	Long: `confpeer joins a room on a confroom server, negotiates a direct
connection with every other participant and prints what arrives on the
data channels.

Examples:
  confpeer standup --name bot
  confpeer standup --server wss://conf.example.org/api/rooms/ws --token $TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagServer, "server", "s", "ws://localhost:8080/api/rooms/ws", "signaling endpoint")
	rootCmd.Flags().StringVarP(&flagToken, "token", "t", os.Getenv("CONFROOM_TOKEN"), "access token, empty to join as a guest")
	rootCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name in the room")
	rootCmd.Flags().StringSliceVar(&flagSTUN, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN server URLs")
	rootCmd.Flags().StringVar(&flagGreet, "greet", "", "message sent to every peer once its data channel opens")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	_ = rootCmd.MarkFlagRequired("name")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func joinRoom(ctx context.Context, roomID string) error {
	log := newLogger(flagVerbose)

	conn, err := client.Dial(ctx, flagServer, flagToken, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	factory := client.NewPionFactory(flagSTUN, log)
	factory.OnMessage = func(remoteID string, data []byte) {
		fmt.Printf("[%s] %s\n", remoteID, data)
	}
	factory.OnOpen = func(remoteID string, send func([]byte) error) {
		log.Info("data channel open", slog.String("remote_id", remoteID))
		if flagGreet == "" {
			return
		}
		if err := send([]byte(flagGreet)); err != nil {
			log.Warn("greet failed", slog.String("remote_id", remoteID), sl.Err(err))
		}
	}

	orch := client.NewOrchestrator(factory, conn, log)
	defer orch.Close()

	if err := orch.Join(roomID, flagName); err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	err = conn.Run(ctx, orch)
	switch {
	case errors.Is(err, domain.ErrNameConflict):
		return fmt.Errorf("display name %q is taken in room %s", flagName, roomID)
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: level},
	}
	return slog.New(opts.NewPrettyHandler(os.Stderr))
}
