package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/llm"
	"github.com/sevigo/reviewd/internal/logger"
	"github.com/sevigo/reviewd/internal/policy"
	"github.com/sevigo/reviewd/internal/prcontext"
	"github.com/sevigo/reviewd/internal/publisher"
	"github.com/sevigo/reviewd/internal/storage"
)

var postReview bool

var reviewCmd = &cobra.Command{
	Use:   "review OWNER/REPO PR_NUMBER",
	Short: "Run a one-shot review of a pull request.",
	Long: `Runs the full review pipeline against a pull request using a personal
access token and renders the result locally. With --post the review is also
published to the pull request.`,
	Args: cobra.ExactArgs(2),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	reviewCmd.Flags().BoolVar(&postReview, "post", false, "Publish the review to the pull request")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	owner, repo, found := strings.Cut(args[0], "/")
	if !found || owner == "" || repo == "" {
		return fmt.Errorf("expected OWNER/REPO, got %q", args[0])
	}
	prNumber, err := strconv.Atoi(args[1])
	if err != nil || prNumber <= 0 {
		return fmt.Errorf("invalid pull request number %q", args[1])
	}

	token := viper.GetString("GITHUB_TOKEN")
	if token == "" {
		return errors.New("a GitHub token is required (use --github-token or REVIEWD_GITHUB_TOKEN)")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(parseLogLevel(logLevel), "text", cmd.ErrOrStderr())
	ghClient := github.NewPATClient(ctx, token, log)

	req, err := buildRequest(ctx, ghClient, owner, repo, prNumber)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	result, err := generateReview(ctx, cfg, ghClient, req, log)
	if err != nil {
		return err
	}

	if err := renderResult(cmd, result); err != nil {
		return err
	}

	if postReview {
		pub := publisher.NewPublisher(storage.NewMemoryStore(), log)
		if err := pub.Publish(ctx, ghClient, req, result); err != nil {
			return err
		}
		color.Green("Review posted to %s#%d", req.RepoFullName, req.PRNumber)
	}
	return nil
}

func buildRequest(ctx context.Context, ghClient github.Client, owner, repo string, prNumber int) (*core.ReviewRequest, error) {
	pr, err := ghClient.GetPullRequest(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", err)
	}
	return &core.ReviewRequest{
		ID:           uuid.NewString(),
		RepoOwner:    owner,
		RepoName:     repo,
		RepoFullName: owner + "/" + repo,
		PRNumber:     prNumber,
		PRTitle:      pr.GetTitle(),
		PRBody:       pr.GetBody(),
		Kind:         core.EventComment,
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseSHA:      pr.GetBase().GetSHA(),
		Sender:       pr.GetUser().GetLogin(),
	}, nil
}

// generateReview mirrors the server-side pipeline: context, model fallback,
// parse with one strict re-prompt, policy filter.
func generateReview(ctx context.Context, cfg *config.Config, ghClient github.Client, req *core.ReviewRequest, slogger *slog.Logger) (*core.ReviewResult, error) {
	backends, err := llm.NewBackends(cfg.Backends, slogger)
	if err != nil {
		return nil, err
	}
	models, err := llm.NewDispatcher(backends, slogger)
	if err != nil {
		return nil, err
	}
	prompts, err := llm.NewPromptManager()
	if err != nil {
		return nil, err
	}

	rc, err := prcontext.NewBuilder(ghClient, cfg.TokenBudget, slogger).Build(ctx, req)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.BuildReviewPrompt(llm.CodeReviewPrompt, req, rc)
	if err != nil {
		return nil, err
	}
	raw, _, err := models.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := llm.ParseReview(raw)
	if errors.Is(err, core.ErrMalformedOutput) {
		strict, perr := prompts.BuildReviewPrompt(llm.StrictReviewPrompt, req, rc)
		if perr != nil {
			return nil, perr
		}
		if raw, _, err = models.Generate(ctx, strict); err != nil {
			return nil, err
		}
		parsed, err = llm.ParseReview(raw)
	}
	if err != nil {
		return nil, err
	}

	return policy.NewEngine(slogger).Apply(cfg.Policy, req, parsed.Summary, parsed.Comments, rc)
}

func renderResult(cmd *cobra.Command, result *core.ReviewResult) error {
	var sb strings.Builder
	sb.WriteString("# Review Summary\n\n")
	sb.WriteString(result.Summary)
	if len(result.Comments) > 0 {
		sb.WriteString("\n\n# Suggestions\n")
		for _, c := range result.Comments {
			sb.WriteString(fmt.Sprintf("\n## %s:%d\n**%s** *%s*\n\n%s\n", c.Path, c.Line, c.Severity, c.Category, c.Body))
		}
	}

	out, err := glamour.Render(sb.String(), "dark")
	if err != nil {
		// Fall back to plain markdown if the terminal renderer fails.
		fmt.Fprintln(cmd.OutOrStdout(), sb.String())
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
