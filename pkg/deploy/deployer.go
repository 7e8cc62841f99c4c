package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/types"
	"github.com/covercash2/green/pkg/webhook"
)

// Notifier delivers chat messages.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Committer records a changed flake in version control.
type Committer interface {
	Commit(ctx context.Context, path, message string) (string, error)
}

// Config selects the pushes that trigger a deployment.
type Config struct {
	Repo   string // owner/name of the tracked repository
	Branch string
	Flake  *Flake // nil disables flake updates
}

// Result describes how a delivery was handled.
type Result struct {
	// Duplicate is set when the delivery ID was already handled. Nothing
	// else is done for duplicates.
	Duplicate bool
	// Message is the notification that was sent.
	Message string
	// Deployment is set when the delivery triggered a deployment.
	Deployment *types.Deployment
}

// Deployer turns webhook deliveries into notifications and flake updates.
type Deployer struct {
	config    Config
	notifier  Notifier
	committer Committer
	store     store.Store
	seen      *webhook.DeliveryCache
	logger    *zap.Logger

	// mu serializes flake updates and commits.
	mu sync.Mutex
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithCommitter commits each flake update.
func WithCommitter(c Committer) Option {
	return func(d *Deployer) {
		d.committer = c
	}
}

// WithStore records deployments in s. Defaults to an in-memory store.
func WithStore(s store.Store) Option {
	return func(d *Deployer) {
		d.store = s
	}
}

// WithDeliveryCache uses c to detect redeliveries.
func WithDeliveryCache(c *webhook.DeliveryCache) Option {
	return func(d *Deployer) {
		d.seen = c
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Deployer) {
		d.logger = l
	}
}

// New creates a Deployer.
func New(cfg Config, notifier Notifier, opts ...Option) *Deployer {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	d := &Deployer{
		config:   cfg,
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = store.NewMemory()
	}
	if d.seen == nil {
		d.seen = webhook.NewDeliveryCache(webhook.DefaultCacheSize)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Store returns the deployment history.
func (d *Deployer) Store() store.Store {
	return d.store
}

// Handle processes a delivery: tracked pushes update the flake, then a
// notification describing the event and the deployment outcome is sent.
// A deployment failure is reported in the notification and recorded; only a
// failed notification is returned as an error, and the delivery is then not
// remembered so that a redelivery is handled again.
func (d *Deployer) Handle(ctx context.Context, delivery *webhook.Delivery) (*Result, error) {
	logger := d.logger.With(
		zap.String("delivery", delivery.ID),
		zap.String("event", delivery.Event),
	)

	if d.seen.MarkSeen(delivery.ID) {
		logger.Info("skipping redelivery")
		return &Result{Duplicate: true}, nil
	}

	result := &Result{Message: webhook.Format(delivery)}

	if push, ok := delivery.Push(); ok && d.tracks(push) {
		deployment := d.deploy(ctx, delivery.ID, push)
		if err := d.store.AddDeployment(deployment); err != nil {
			logger.Error("failed to record deployment", zap.Error(err))
		}
		result.Deployment = deployment
		result.Message += "\n\n" + StatusLine(deployment)
	}

	if err := d.notifier.Send(ctx, result.Message); err != nil {
		d.seen.Forget(delivery.ID)
		logger.Error("failed to send notification", zap.Error(err))
		return result, fmt.Errorf("sending notification: %w", err)
	}

	logger.Info("delivery handled")
	return result, nil
}

// tracks reports whether push should update the flake.
func (d *Deployer) tracks(push *github.PushEvent) bool {
	if d.config.Flake == nil || d.config.Repo == "" {
		return false
	}
	if push.GetDeleted() || push.GetAfter() == "" {
		return false
	}
	if !strings.EqualFold(push.GetRepo().GetFullName(), d.config.Repo) {
		return false
	}
	return push.GetRef() == "refs/heads/"+d.config.Branch
}

func (d *Deployer) deploy(ctx context.Context, deliveryID string, push *github.PushEvent) *types.Deployment {
	deployment := types.NewDeployment(push.GetRepo().GetFullName(), push.GetRef(), push.GetAfter())
	deployment.DeliveryID = deliveryID

	d.mu.Lock()
	defer d.mu.Unlock()

	logger := d.logger.With(
		zap.String("deployment", deployment.ID),
		zap.String("repo", deployment.Repo),
		zap.String("rev", deployment.Rev),
	)

	flake := d.config.Flake
	change, err := flake.Apply(deployment.Rev)
	if err != nil {
		logger.Error("flake update failed", zap.Error(err))
		deployment.Status = types.DeploymentFailed
		deployment.Message = err.Error()
		return deployment
	}
	previous := change.Previous
	deployment.PreviousRev = previous
	logger = logger.With(zap.Stringer("location", change.Location))

	if !change.Changed() {
		logger.Info("flake already up to date")
		deployment.Status = types.DeploymentSkipped
		deployment.Message = "rev already pinned"
		return deployment
	}

	deployment.Status = types.DeploymentSuccess
	deployment.Message = fmt.Sprintf("updated %s from %s to %s", flake.input(), types.ShortRev(previous), types.ShortRev(deployment.Rev))
	logger.Info("flake updated", zap.String("previous", previous))

	if d.committer != nil {
		hash, err := d.committer.Commit(ctx, flake.Path, CommitMessage(flake.input(), deployment))
		if err != nil {
			// The flake on disk is already updated; report the commit failure
			// without rolling back.
			logger.Error("flake commit failed", zap.Error(err))
			deployment.Status = types.DeploymentFailed
			deployment.Message += "; commit failed: " + err.Error()
			return deployment
		}
		deployment.FlakeCommit = hash
		logger.Info("flake committed", zap.String("commit", hash))
	}

	return deployment
}

// StatusLine summarizes a deployment for the chat notification.
func StatusLine(d *types.Deployment) string {
	switch d.Status {
	case types.DeploymentSuccess:
		line := fmt.Sprintf("deployed %s (was %s)", types.ShortRev(d.Rev), types.ShortRev(d.PreviousRev))
		if d.FlakeCommit != "" {
			line += ", flake commit " + types.ShortRev(d.FlakeCommit)
		}
		return line
	case types.DeploymentSkipped:
		return fmt.Sprintf("already deployed %s", types.ShortRev(d.Rev))
	default:
		return "deployment failed: " + d.Message
	}
}

// CommitMessage is the flake commit message for a deployment.
func CommitMessage(input string, d *types.Deployment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s -> %s\n\n", input, types.ShortRev(d.PreviousRev), types.ShortRev(d.Rev))
	fmt.Fprintf(&b, "repo: %s\nref: %s\nrev: %s\n", d.Repo, d.Ref, d.Rev)
	if d.DeliveryID != "" {
		fmt.Fprintf(&b, "delivery: %s\n", d.DeliveryID)
	}
	return b.String()
}
