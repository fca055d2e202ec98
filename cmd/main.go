package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cexll/asana-action/internal/asana"
	"github.com/cexll/asana-action/internal/config"
	"github.com/cexll/asana-action/internal/dispatcher"
	"github.com/cexll/asana-action/internal/github"
	"github.com/cexll/asana-action/internal/modes"
	"github.com/cexll/asana-action/internal/taskref"
	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

var (
	loadDotEnv      = godotenv.Load
	newGitHubClient = github.NewClient
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "asana-action failed: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "asana-action",
		Short: "Sync pull request activity with Asana tasks",
		Long: `asana-action reads the pull request description from the GitHub event,
finds the Asana task links in it and performs the configured action
(assert-link, add-comment, remove-comment, move-section, complete-task).

Inputs are read from INPUT_* environment variables as set by the Actions runner.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			cmd.SetContext(withLogger(cmd.Context(), level))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.AddCommand(newExtractCmd())
	return root
}

func withLogger(ctx context.Context, level slog.Level) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return clog.WithLogger(ctx, clog.New(h))
}

type summary struct {
	Action  modes.Kind          `json:"action"`
	Count   int                 `json:"count"`
	Results []dispatcher.Result `json:"results"`
}

func run(ctx context.Context, out io.Writer) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		ctx = withLogger(ctx, slog.LevelDebug)
	}

	action, err := modes.FromConfig(cfg)
	if err != nil {
		return err
	}

	event, err := github.LoadContext(cfg.Repository, cfg.EventPath, cfg.SHA)
	if err != nil {
		return fmt.Errorf("failed to load event context: %w", err)
	}
	if !event.HasPullRequest() {
		clog.WarnContextf(ctx, "[Action] event has no pull_request; treating body as empty")
	}

	tasks, err := asana.NewClient(cfg.AsanaPAT, asana.WithBaseURL(cfg.AsanaBaseURL))
	if err != nil {
		return err
	}

	var opts []dispatcher.Option
	if action.Kind() == modes.KindAssertLink {
		reporter, err := newStatusReporter(ctx, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, dispatcher.WithStatusReporter(reporter, dispatcher.Commit{
			Owner: event.Repository.Owner,
			Repo:  event.Repository.Name,
			SHA:   event.HeadSHA,
		}))
	}

	clog.InfoContextf(ctx, "[Action] running %s for %s", action.Kind(), event.Repository.FullName)
	results, err := dispatcher.New(tasks, opts...).Perform(ctx, action, event.Body)
	if err != nil {
		return err
	}
	clog.InfoContextf(ctx, "[Action] %s finished with %d result(s)", action.Kind(), len(results))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary{Action: action.Kind(), Count: len(results), Results: results}); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return writeOutput(cfg.OutputPath, "count", fmt.Sprint(len(results)))
}

func newStatusReporter(ctx context.Context, cfg *config.Config) (*github.StatusReporter, error) {
	var auth github.AuthProvider
	if cfg.HasGitHubApp() {
		auth = &github.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
			APIURL:     cfg.APIURL,
		}
	}

	token, err := github.ResolveToken(ctx, cfg.GitHubToken, auth, cfg.Repository)
	if err != nil {
		return nil, err
	}
	client, err := newGitHubClient(ctx, token, cfg.APIURL)
	if err != nil {
		return nil, err
	}
	return github.NewStatusReporter(client), nil
}

// writeOutput appends name=value to the runner's GITHUB_OUTPUT file. No-op when path is empty.
func writeOutput(path, name, value string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%s=%s\n", name, value); err != nil {
		return fmt.Errorf("failed to write GITHUB_OUTPUT: %w", err)
	}
	return nil
}

func newExtractCmd() *cobra.Command {
	var (
		body   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the Asana task IDs referenced in a pull request body",
		Long: `Reads the body from --body, or from stdin when --body is not given,
and prints one task ID per line in order of appearance.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := body
			if !cmd.Flags().Changed("body") {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(taskref.Parse(text))
			}
			ids := taskref.Extract(text)
			if len(ids) == 0 {
				return nil
			}
			_, err := fmt.Fprintln(out, strings.Join(ids, "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "Pull request body to scan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print project and task IDs as JSON")
	return cmd
}
