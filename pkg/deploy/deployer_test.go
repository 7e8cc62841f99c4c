package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/types"
	"github.com/covercash2/green/pkg/webhook"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

type fakeCommitter struct {
	calls   []string
	message string
	hash    string
	err     error
}

func (c *fakeCommitter) Commit(_ context.Context, path, message string) (string, error) {
	c.calls = append(c.calls, path)
	c.message = message
	return c.hash, c.err
}

// lockedCommitter records whether two commits ever overlapped.
type lockedCommitter struct {
	mu       sync.Mutex
	active   int
	overlaps int
}

func (c *lockedCommitter) Commit(_ context.Context, _, _ string) (string, error) {
	c.mu.Lock()
	c.active++
	if c.active > 1 {
		c.overlaps++
	}
	c.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return "c0ffee", nil
}

func pushDelivery(id, repo, ref, after string) *webhook.Delivery {
	return &webhook.Delivery{
		ID:    id,
		Event: webhook.EventPush,
		Payload: &github.PushEvent{
			Ref:     github.String(ref),
			Before:  github.String(pinnedRev),
			After:   github.String(after),
			Compare: github.String("https://github.com/" + repo + "/compare/0875adf8d630...9f2c1e4b7a3d"),
			Repo:    &github.PushEventRepository{FullName: github.String(repo)},
			HeadCommit: &github.HeadCommit{
				ID:      github.String(after),
				Message: github.String("fix healthcheck"),
			},
		},
	}
}

func newTestDeployer(t *testing.T, notifier Notifier, opts ...Option) (*Deployer, Flake) {
	t.Helper()
	flake := Flake{Path: copyFlake(t, t.TempDir()), Input: "ultron"}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	d := New(Config{Repo: "covercash2/ultron", Branch: "main", Flake: &flake}, notifier, opts...)
	return d, flake
}

func TestDeployer_Ping(t *testing.T) {
	notifier := &fakeNotifier{}
	d, flake := newTestDeployer(t, notifier)

	result, err := d.Handle(context.Background(), &webhook.Delivery{
		ID:    "ping-1",
		Event: webhook.EventPing,
		Payload: &github.PingEvent{
			HookID: github.Int64(42),
			Hook:   &github.Hook{URL: github.String("https://api.github.com/hooks/42")},
		},
	})
	require.NoError(t, err)

	assert.Nil(t, result.Deployment)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "GitHub pinged green 42\nhttps://api.github.com/hooks/42", notifier.messages[0])

	rev, err := flake.Rev()
	require.NoError(t, err)
	assert.Equal(t, pinnedRev, rev)
}

func TestDeployer_TrackedPush(t *testing.T) {
	notifier := &fakeNotifier{}
	d, flake := newTestDeployer(t, notifier)

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev))
	require.NoError(t, err)
	require.NotNil(t, result.Deployment)

	dep := result.Deployment
	assert.Equal(t, types.DeploymentSuccess, dep.Status)
	assert.Equal(t, pinnedRev, dep.PreviousRev)
	assert.Equal(t, pushedRev, dep.Rev)
	assert.Equal(t, "d-1", dep.DeliveryID)
	assert.Equal(t, "updated ultron from 0875adf to 9f2c1e4", dep.Message)

	rev, err := flake.Rev()
	require.NoError(t, err)
	assert.Equal(t, pushedRev, rev)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "GitHub push\nrepo: covercash2/ultron branch: refs/heads/main")
	assert.Contains(t, notifier.messages[0], "\n\ndeployed 9f2c1e4 (was 0875adf)")

	stored, err := d.Store().GetDeployment(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DeploymentSuccess, stored.Status)
}

func TestDeployer_Redelivery(t *testing.T) {
	notifier := &fakeNotifier{}
	d, _ := newTestDeployer(t, notifier)
	delivery := pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev)

	_, err := d.Handle(context.Background(), delivery)
	require.NoError(t, err)

	result, err := d.Handle(context.Background(), delivery)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Len(t, notifier.messages, 1)

	all, err := d.Store().ListDeployments(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeployer_AlreadyPinned(t *testing.T) {
	notifier := &fakeNotifier{}
	committer := &fakeCommitter{hash: "c0ffee"}
	d, _ := newTestDeployer(t, notifier, WithCommitter(committer))

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pinnedRev))
	require.NoError(t, err)

	assert.Equal(t, types.DeploymentSkipped, result.Deployment.Status)
	assert.Empty(t, committer.calls)
	assert.Contains(t, notifier.messages[0], "already deployed 0875adf")
}

func TestDeployer_IgnoredPushes(t *testing.T) {
	tests := []struct {
		name     string
		delivery *webhook.Delivery
	}{
		{name: "other repo", delivery: pushDelivery("a", "covercash2/green", "refs/heads/main", pushedRev)},
		{name: "other branch", delivery: pushDelivery("b", "covercash2/ultron", "refs/heads/dev", pushedRev)},
		{name: "tag", delivery: pushDelivery("c", "covercash2/ultron", "refs/tags/main", pushedRev)},
		{
			name: "deleted branch",
			delivery: func() *webhook.Delivery {
				d := pushDelivery("d", "covercash2/ultron", "refs/heads/main", pushedRev)
				push, _ := d.Push()
				push.Deleted = github.Bool(true)
				return d
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			d, flake := newTestDeployer(t, notifier)

			result, err := d.Handle(context.Background(), tt.delivery)
			require.NoError(t, err)
			assert.Nil(t, result.Deployment)
			assert.Len(t, notifier.messages, 1)

			rev, err := flake.Rev()
			require.NoError(t, err)
			assert.Equal(t, pinnedRev, rev)
		})
	}
}

func TestDeployer_RepoMatchIgnoresCase(t *testing.T) {
	d, _ := newTestDeployer(t, &fakeNotifier{})

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "CoverCash2/Ultron", "refs/heads/main", pushedRev))
	require.NoError(t, err)
	require.NotNil(t, result.Deployment)
	assert.Equal(t, types.DeploymentSuccess, result.Deployment.Status)
}

func TestDeployer_NoFlakeConfigured(t *testing.T) {
	notifier := &fakeNotifier{}
	d := New(Config{Repo: "covercash2/ultron"}, notifier)

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev))
	require.NoError(t, err)
	assert.Nil(t, result.Deployment)
	assert.Len(t, notifier.messages, 1)
}

func TestDeployer_WithCommitter(t *testing.T) {
	committer := &fakeCommitter{hash: "c0ffee1234567890"}
	notifier := &fakeNotifier{}
	d, flake := newTestDeployer(t, notifier, WithCommitter(committer))

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev))
	require.NoError(t, err)

	assert.Equal(t, []string{flake.Path}, committer.calls)
	assert.Equal(t, "c0ffee1234567890", result.Deployment.FlakeCommit)
	assert.Contains(t, committer.message, "ultron: 0875adf -> 9f2c1e4\n\n")
	assert.Contains(t, committer.message, "delivery: d-1\n")
	assert.Contains(t, notifier.messages[0], ", flake commit c0ffee1")
}

func TestDeployer_CommitFailure(t *testing.T) {
	committer := &fakeCommitter{err: errors.New("index locked")}
	d, flake := newTestDeployer(t, &fakeNotifier{}, WithCommitter(committer))

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev))
	require.NoError(t, err)

	assert.Equal(t, types.DeploymentFailed, result.Deployment.Status)
	assert.Contains(t, result.Deployment.Message, "commit failed: index locked")

	rev, err := flake.Rev()
	require.NoError(t, err)
	assert.Equal(t, pushedRev, rev)
}

func TestDeployer_FlakeFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	d, _ := newTestDeployer(t, notifier)

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", "abc"))
	require.NoError(t, err)

	assert.Equal(t, types.DeploymentFailed, result.Deployment.Status)
	assert.Contains(t, notifier.messages[0], "deployment failed: ")

	latest, err := d.Store().LatestDeployment(types.DeploymentFailed)
	require.NoError(t, err)
	assert.Equal(t, result.Deployment.ID, latest.ID)
}

func TestDeployer_NotificationFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("ultron down")}
	st := store.NewMemory()
	d, _ := newTestDeployer(t, notifier, WithStore(st))

	result, err := d.Handle(context.Background(), pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ultron down")
	require.NotNil(t, result)

	all, err := st.ListDeployments(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeployer_RetryAfterNotificationFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("ultron down")}
	d, _ := newTestDeployer(t, notifier)
	delivery := pushDelivery("d-1", "covercash2/ultron", "refs/heads/main", pushedRev)

	_, err := d.Handle(context.Background(), delivery)
	require.Error(t, err)

	notifier.err = nil
	result, err := d.Handle(context.Background(), delivery)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	require.NotNil(t, result.Deployment)
	assert.Equal(t, types.DeploymentSkipped, result.Deployment.Status)
	assert.Len(t, notifier.messages, 2)

	result, err = d.Handle(context.Background(), delivery)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Len(t, notifier.messages, 2)
}

func TestDeployer_ConcurrentPushes(t *testing.T) {
	const otherRev = "1111111111111111111111111111111111111111"
	committer := &lockedCommitter{}
	d, flake := newTestDeployer(t, &fakeNotifier{}, WithCommitter(committer))

	revs := []string{pushedRev, otherRev}
	results := make([]*Result, len(revs))
	var wg sync.WaitGroup
	for i, rev := range revs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := d.Handle(context.Background(), pushDelivery(rev, "covercash2/ultron", "refs/heads/main", rev))
			assert.NoError(t, err)
			results[i] = result
		}()
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	first, second := results[0].Deployment, results[1].Deployment
	if first.PreviousRev != pinnedRev {
		first, second = second, first
	}
	assert.Equal(t, pinnedRev, first.PreviousRev)
	assert.Equal(t, first.Rev, second.PreviousRev)
	assert.Equal(t, types.DeploymentSuccess, first.Status)
	assert.Equal(t, types.DeploymentSuccess, second.Status)
	assert.Zero(t, committer.overlaps)

	rev, err := flake.Rev()
	require.NoError(t, err)
	assert.Equal(t, second.Rev, rev)
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "deployed 9f2c1e4 (was 0875adf)", StatusLine(&types.Deployment{
		Status: types.DeploymentSuccess, Rev: pushedRev, PreviousRev: pinnedRev,
	}))
	assert.Equal(t, "already deployed 0875adf", StatusLine(&types.Deployment{
		Status: types.DeploymentSkipped, Rev: pinnedRev,
	}))
	assert.Equal(t, "deployment failed: boom", StatusLine(&types.Deployment{
		Status: types.DeploymentFailed, Message: "boom",
	}))
}
