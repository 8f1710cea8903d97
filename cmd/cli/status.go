package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/reviewd/internal/core"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [OWNER/REPO PR_NUMBER]",
	Short: "Check the health of a running reviewd server.",
	Long: `Checks the health of a running reviewd server. With OWNER/REPO and a pull
request number, also shows the latest review the server published for that
pull request.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the reviewd server")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("expected OWNER/REPO and PR_NUMBER, got only %q", args[0])
	}

	client := &http.Client{Timeout: 5 * time.Second}

	if err := checkHealth(cmd, client); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return showLatestReview(cmd, client, args[0], args[1])
}

func checkHealth(cmd *cobra.Command, client *http.Client) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		color.Red("reviewd server unreachable at %s", serverURL)
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		color.Red("reviewd server unhealthy: HTTP %d", resp.StatusCode)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	color.Green("reviewd server healthy at %s: %s", serverURL, string(body))
	return nil
}

// showLatestReview fetches the most recent review the server published for a
// pull request and prints a short summary of it.
func showLatestReview(cmd *cobra.Command, client *http.Client, repoArg, prArg string) error {
	owner, repo, found := strings.Cut(repoArg, "/")
	if !found || owner == "" || repo == "" {
		return fmt.Errorf("expected OWNER/REPO, got %q", repoArg)
	}
	prNumber, err := strconv.Atoi(prArg)
	if err != nil || prNumber <= 0 {
		return fmt.Errorf("invalid pull request number %q", prArg)
	}

	url := fmt.Sprintf("%s/api/v1/reviews/%s/%s/%d", serverURL, owner, repo, prNumber)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		color.Yellow("no review published yet for %s/%s#%d", owner, repo, prNumber)
		return nil
	default:
		return fmt.Errorf("unexpected status %d fetching latest review", resp.StatusCode)
	}

	var rec core.PublishedReview
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return fmt.Errorf("failed to decode review record: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(cmd.OutOrStdout(), "Latest review for %s#%d\n", rec.RepoFullName, rec.PRNumber)
	fmt.Fprintf(cmd.OutOrStdout(), "  published:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(cmd.OutOrStdout(), "  head:       %s\n", rec.HeadSHA)
	fmt.Fprintf(cmd.OutOrStdout(), "  comments:   %d\n", rec.CommentCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  summary:    %s\n", rec.Summary)
	return nil
}
