package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/covercash2/green/pkg/config"
	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/types"
)

var (
	deploymentsConfig string
	deploymentsLimit  int
	deploymentsFormat string
	deploymentsColor  string
)

// styles holds color formatters for deployment output
type styles struct {
	heading  *color.Color
	id       *color.Color
	success  *color.Color
	failed   *color.Color
	skipped  *color.Color
	metadata *color.Color
}

// newStyles creates color formatters.
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold, color.FgHiWhite),
		id:       color.New(color.FgHiGreen),
		success:  color.New(color.Bold, color.FgGreen),
		failed:   color.New(color.Bold, color.FgRed),
		skipped:  color.New(color.FgYellow),
		metadata: color.New(color.FgHiBlue),
	}

	for _, c := range []*color.Color{s.heading, s.id, s.success, s.failed, s.skipped, s.metadata} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return s
}

func (s *styles) status(st types.DeploymentStatus) *color.Color {
	switch st {
	case types.DeploymentSuccess:
		return s.success
	case types.DeploymentFailed:
		return s.failed
	default:
		return s.skipped
	}
}

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "List recent deployments",
	Long:  "Read the deployment history from the configured store and print the most recent deployments",
	Args:  cobra.NoArgs,
	RunE:  runDeployments,
}

func init() {
	deploymentsCmd.Flags().StringVar(&deploymentsConfig, "config", config.DefaultPath, "Path to the config file")
	deploymentsCmd.Flags().IntVar(&deploymentsLimit, "limit", 10, "Number of deployments to show (0 for all)")
	deploymentsCmd.Flags().StringVar(&deploymentsFormat, "format", "human", "Output format: human, json")
	deploymentsCmd.Flags().StringVar(&deploymentsColor, "color", "auto", "Color output: auto, always, never")
}

func runDeployments(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(deploymentsConfig)
	if err != nil {
		return err
	}
	if cfg.Store.Path == ":memory:" {
		return fmt.Errorf("cannot list deployments from in-memory store")
	}

	s, err := store.New(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	deployments, err := s.ListDeployments(deploymentsLimit)
	if err != nil {
		return fmt.Errorf("retrieving deployments: %w", err)
	}

	out := cmd.OutOrStdout()
	switch deploymentsFormat {
	case "json":
		return outputDeploymentsJSON(out, deployments)
	case "human":
		return outputDeploymentsHuman(out, deployments, newStyles(colorEnabled(deploymentsColor)))
	default:
		return fmt.Errorf("unknown format: %s (valid: human, json)", deploymentsFormat)
	}
}

// colorEnabled decides whether to color output for the --color mode.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		// Check if stdout is a TTY and NO_COLOR is not set
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputDeploymentsJSON(out io.Writer, deployments []*types.Deployment) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(deployments)
}

func outputDeploymentsHuman(out io.Writer, deployments []*types.Deployment, s *styles) error {
	if len(deployments) == 0 {
		fmt.Fprintln(out, "No deployments recorded.")
		return nil
	}

	for i, d := range deployments {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s %s %s\n",
			s.heading.Sprintf("Deployment %d", i+1),
			s.id.Sprint(d.ID),
			s.status(d.Status).Sprint(string(d.Status)))
		fmt.Fprintf(out, "%s %s %s\n", s.metadata.Sprint("Repo:"), d.Repo, d.Ref)
		if d.PreviousRev != "" {
			fmt.Fprintf(out, "%s %s -> %s\n", s.metadata.Sprint("Rev:"), types.ShortRev(d.PreviousRev), types.ShortRev(d.Rev))
		} else {
			fmt.Fprintf(out, "%s %s\n", s.metadata.Sprint("Rev:"), types.ShortRev(d.Rev))
		}
		if d.FlakeCommit != "" {
			fmt.Fprintf(out, "%s %s\n", s.metadata.Sprint("Commit:"), types.ShortRev(d.FlakeCommit))
		}
		fmt.Fprintf(out, "%s %s\n", s.metadata.Sprint("Time:"), d.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		if d.Message != "" {
			fmt.Fprintf(out, "%s %s\n", s.metadata.Sprint("Message:"), d.Message)
		}
	}
	return nil
}
