package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/studiobridge/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge status",
	Long:  `Query the health endpoint of a running bridge and report its state.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type healthReport struct {
	Status     string  `json:"status"`
	Uptime     float64 `json:"uptime"`
	QueueSize  int     `json:"queueSize"`
	InstanceID string  `json:"instanceId"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/health", cfg.Studio.Host, cfg.Studio.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Status: stopped")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(cmd.OutOrStdout(), "Status: unhealthy (HTTP %d)\n", resp.StatusCode)
		return nil
	}

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "Instance: %s\n", report.InstanceID)
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(secondsToDuration(report.Uptime)))
	fmt.Fprintf(out, "Queued commands: %d\n", report.QueueSize)

	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
