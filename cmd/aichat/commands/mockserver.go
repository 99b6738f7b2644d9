package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/internal/testutil"
)

var (
	mockPort  int
	mockDelay time.Duration
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local echo chat endpoint",
	Long: `Run a local streaming chat endpoint that echoes the last user message
back word by word. Useful as a target for 'aichat chat' and for frontend
development without a real model.`,
	RunE: runMockServer,
}

func init() {
	mockServerCmd.Flags().IntVarP(&mockPort, "port", "p", 8080, "Port to listen on")
	mockServerCmd.Flags().DurationVar(&mockDelay, "delay", 40*time.Millisecond, "Delay between streamed words")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", mockPort),
		Handler:     testutil.EchoHandler(mockDelay),
		ReadTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", mockPort).Msg("mock server listening")
		fmt.Printf("mock chat endpoint: http://localhost:%d/chat\n", mockPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
