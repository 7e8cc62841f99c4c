package webhook

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/covercash2/green/pkg/types"
)

// Format renders a delivery as a chat message.
func Format(d *Delivery) string {
	switch p := d.Payload.(type) {
	case *github.PushEvent:
		return FormatPush(p)
	case *github.PingEvent:
		return FormatPing(p)
	default:
		return fmt.Sprintf("GitHub %s event", d.Event)
	}
}

// FormatPush summarizes a push: repo and branch, what happened to the
// branch, the HEAD commit and the list of pushed commits.
func FormatPush(push *github.PushEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GitHub push\nrepo: %s branch: %s", push.GetRepo().GetFullName(), push.GetRef())

	switch {
	case push.GetDeleted():
		b.WriteString("\n- branch deleted")
	case push.GetCreated():
		b.WriteString("\n- branch created")
	default:
		b.WriteString("\n- branch updated")
	}

	if push.GetForced() {
		b.WriteString("\n- **force was used**")
	}

	if head := push.GetHeadCommit(); head != nil {
		fmt.Fprintf(&b, "\n\nHEAD commit %s: %s", types.ShortRev(head.GetID()), firstLine(head.GetMessage()))
		fmt.Fprintf(&b, "\ncompare changes: %s", push.GetCompare())
	}

	if len(push.Commits) > 0 {
		fmt.Fprintf(&b, "\n\n### %d commit(s):", len(push.Commits))
	}
	for _, commit := range push.Commits {
		fmt.Fprintf(&b, "\n- %s: %s", types.ShortRev(commit.GetID()), firstLine(commit.GetMessage()))
	}

	return b.String()
}

// FormatPing acknowledges a ping from a newly configured hook.
func FormatPing(ping *github.PingEvent) string {
	return fmt.Sprintf("GitHub pinged green %d\n%s", ping.GetHookID(), ping.GetHook().GetURL())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
