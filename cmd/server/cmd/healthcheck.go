package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/coachbook/server/internal/api/handlers"
	"github.com/spf13/cobra"
)

func newHealthcheckCommand() *cobra.Command {
	var (
		timeout time.Duration
		url     string
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a readiness check by calling the /readyz endpoint.

Used as the container HEALTHCHECK. It exits with code 0 when the server is
healthy (or degraded, unless --strict is set) and non-zero otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				url = fmt.Sprintf("http://localhost:%s/readyz", port)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			check, err := performHealthCheck(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			if check.Status == "healthy" || (!strict && check.Status == "degraded") {
				fmt.Fprintf(cmd.OutOrStdout(), "server status: %s\n", check.Status)
				return nil
			}
			return fmt.Errorf("unhealthy: status=%s", check.Status)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "readiness URL (default: http://localhost:{SERVER_PORT}/readyz)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat a degraded server as unhealthy")
	return cmd
}

// performHealthCheck fetches and decodes a readiness report. A 503 response
// still carries a report and is decoded.
func performHealthCheck(ctx context.Context, client *http.Client, url string) (handlers.HealthCheck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return handlers.HealthCheck{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return handlers.HealthCheck{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return handlers.HealthCheck{}, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return handlers.HealthCheck{}, fmt.Errorf("read health response: %w", err)
	}
	return handlers.DecodeHealth(body)
}
