package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covercash2/green/pkg/config"
	"github.com/covercash2/green/pkg/deploy"
	"github.com/covercash2/green/pkg/nix"
	"github.com/covercash2/green/pkg/types"
)

var (
	flakeConfig      string
	flakeFile        string
	flakeInput       string
	flakeLatest      bool
	flakeDryRun      bool
	flakeCommit      bool
	flakeRepo        string
	flakeBranch      string
	flakeAuthorName  string
	flakeAuthorEmail string
)

// revResolver resolves a branch head. Replaced in tests.
type revResolver interface {
	Resolve(ctx context.Context, repo, branch string) (string, error)
}

var newResolver = func(ctx context.Context, token string) revResolver {
	return deploy.NewCommitResolver(deploy.NewGitHubClient(ctx, token))
}

var flakeCmd = &cobra.Command{
	Use:   "flake",
	Short: "Inspect and update pinned flake inputs",
}

var flakeRevCmd = &cobra.Command{
	Use:   "rev",
	Short: "Print the rev pinned for a flake input",
	Args:  cobra.NoArgs,
	RunE:  runFlakeRev,
}

var flakeUpdateCmd = &cobra.Command{
	Use:   "update [rev]",
	Short: "Pin a new rev for a flake input",
	Long: `Pin a new rev for a flake input.

The rev is either given as an argument or, with --latest, resolved from the
head of the tracked branch through the GitHub API. The API token is
github.token from --config, overridden by GITHUB_TOKEN. The new rev must have
the same length as the pinned one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFlakeUpdate,
}

func init() {
	flakeCmd.PersistentFlags().StringVarP(&flakeFile, "file", "f", "flake.nix", "Path to flake.nix")
	flakeCmd.PersistentFlags().StringVar(&flakeInput, "input", nix.DefaultInput, "Flake input to read or update")

	flakeUpdateCmd.Flags().StringVar(&flakeConfig, "config", "", "Config file providing github.token for --latest")
	flakeUpdateCmd.Flags().BoolVar(&flakeLatest, "latest", false, "Resolve the rev from the head of --branch in --repo")
	flakeUpdateCmd.Flags().BoolVar(&flakeDryRun, "dry-run", false, "Print the change without writing the file")
	flakeUpdateCmd.Flags().BoolVar(&flakeCommit, "commit", false, "Commit the updated flake with git")
	flakeUpdateCmd.Flags().StringVar(&flakeRepo, "repo", "covercash2/ultron", "GitHub repository (owner/name) for --latest")
	flakeUpdateCmd.Flags().StringVar(&flakeBranch, "branch", "main", "Branch for --latest")
	flakeUpdateCmd.Flags().StringVar(&flakeAuthorName, "author-name", "green", "Commit author name")
	flakeUpdateCmd.Flags().StringVar(&flakeAuthorEmail, "author-email", "green@localhost", "Commit author email")

	flakeCmd.AddCommand(flakeRevCmd)
	flakeCmd.AddCommand(flakeUpdateCmd)
}

func runFlakeRev(cmd *cobra.Command, args []string) error {
	rev, err := deploy.Flake{Path: flakeFile, Input: flakeInput}.Rev()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rev)
	return nil
}

func runFlakeUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rev, err := targetRev(ctx, args)
	if err != nil {
		return err
	}

	flake := deploy.Flake{Path: flakeFile, Input: flakeInput}
	out := cmd.OutOrStdout()

	change, err := flake.Plan(rev)
	if err != nil {
		return err
	}
	if !change.Changed() {
		fmt.Fprintf(out, "%s already at %s\n", flakeInput, types.ShortRev(rev))
		return nil
	}
	if flakeDryRun {
		fmt.Fprintf(out, "%s: %s -> %s (dry run)\n", flakeInput, change.Previous, rev)
		return nil
	}

	previous, _, err := flake.Update(rev)
	if err != nil {
		return err
	}
	logger.Info("flake updated",
		zap.String("file", flakeFile),
		zap.String("input", flakeInput),
		zap.String("previous", previous),
		zap.String("rev", rev))
	fmt.Fprintf(out, "%s: %s -> %s\n", flakeInput, previous, rev)

	if !flakeCommit {
		return nil
	}
	d := &types.Deployment{Repo: flakeRepo, Ref: "refs/heads/" + flakeBranch, Rev: rev, PreviousRev: previous}
	hash, err := deploy.NewGitCommitter(flakeAuthorName, flakeAuthorEmail).Commit(ctx, flakeFile, deploy.CommitMessage(flakeInput, d))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "committed %s\n", types.ShortRev(hash))
	return nil
}

// targetRev returns the rev to pin from the argument or --latest.
func targetRev(ctx context.Context, args []string) (string, error) {
	switch {
	case flakeLatest && len(args) > 0:
		return "", errors.New("give either a rev or --latest, not both")
	case flakeLatest:
		token, err := githubToken()
		if err != nil {
			return "", err
		}
		rev, err := newResolver(ctx, token).Resolve(ctx, flakeRepo, flakeBranch)
		if err != nil {
			return "", err
		}
		logger.Debug("resolved branch head", zap.String("repo", flakeRepo), zap.String("branch", flakeBranch), zap.String("rev", rev))
		return rev, nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("a rev or --latest is required")
	}
}

// githubToken returns the configured GitHub API token. Without --config only
// the environment is consulted.
func githubToken() (string, error) {
	var (
		cfg *config.Config
		err error
	)
	if flakeConfig == "" {
		cfg, err = config.Parse(nil)
	} else {
		cfg, err = config.Load(flakeConfig)
	}
	if err != nil {
		return "", err
	}
	return cfg.GitHub.Token, nil
}
