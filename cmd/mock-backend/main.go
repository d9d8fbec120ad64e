package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"acta-go/internal/mockapi"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Local stand-in for the scheduling web app",
	Long: `Serves the /exec action endpoint, acta PDFs and the CSV exports with
a seeded demo agenda, for trying the acta client without the real backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		apiKey, _ := cmd.Flags().GetString("api-key")
		if apiKey == "" {
			apiKey = os.Getenv("ACTA_API_KEY")
		}
		if apiKey == "" {
			return errors.New("an API key is required (--api-key or ACTA_API_KEY)")
		}

		gin.SetMode(gin.ReleaseMode)
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		mock := mockapi.New(apiKey, mockapi.WithLogger(logger))
		mock.Seed(mockapi.SampleInspectors(), mockapi.SampleRows(time.Now()))

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mock.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			logger.Info("mock backend listening", "addr", srv.Addr, "exec", fmt.Sprintf("http://localhost:%d/exec", port))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().String("api-key", "", "API key clients must send (default $ACTA_API_KEY)")
}
