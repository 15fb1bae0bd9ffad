package shared_test

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
)

func TestRenderNotification_TitleAndDetails(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{
			Key:     "savegames",
			Title:   "2 save(s) could not be read",
			Details: []string{"broken.ess", "empty.ess"},
		},
	})

	g.Expect(result).Should(ContainSubstring("2 save(s) could not be read"))
	g.Expect(result).Should(ContainSubstring("broken.ess"))
	g.Expect(result).Should(ContainSubstring("empty.ess"))
	g.Expect(result).ShouldNot(ContainSubstring("... and"))
}

func TestRenderNotification_Overflow(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	details := make([]string, 0, 8)
	for i := range 8 {
		details = append(details, fmt.Sprintf("save%d.ess", i))
	}

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{Title: "8 file(s) could not be copied", Details: details},
		Limit:        3,
	})

	g.Expect(result).Should(ContainSubstring("save2.ess"))
	g.Expect(result).ShouldNot(ContainSubstring("save3.ess"))
	g.Expect(result).Should(ContainSubstring("... and 5 more"))
}

func TestRenderNotification_DefaultLimit(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	details := make([]string, shared.NotificationDetailLimit+1)
	for i := range details {
		details[i] = "save.ess"
	}

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{Title: "failed", Details: details},
	})

	g.Expect(strings.Count(result, "save.ess")).Should(Equal(shared.NotificationDetailLimit))
	g.Expect(result).Should(ContainSubstring("... and 1 more"))
}

func TestRenderNotification_Suggestions(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	err := &fs.PathError{Op: "open", Path: "/saves/quicksave.ess", Err: fs.ErrPermission}

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{
			Title:   "1 file(s) could not be deleted",
			Details: []string{"quicksave.ess - " + err.Error()},
			Err:     err,
		},
	})

	g.Expect(result).Should(ContainSubstring("•"))
	g.Expect(result).Should(ContainSubstring("permissions"))
	g.Expect(result).ShouldNot(ContainSubstring("log file"))
}

func TestRenderNotification_ReportHint(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{Title: "savegames failed", AllowReport: true},
	})

	g.Expect(result).Should(ContainSubstring("log file"))
}

func TestRenderNotification_TruncatesDetails(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	result := shared.RenderNotification(shared.NotificationConfig{
		Notification: syncengine.Notification{Title: "failed", Details: []string{strings.Repeat("x", 50)}},
		MaxWidth:     10,
	})

	g.Expect(result).Should(ContainSubstring("xxxxxxxxx…"))
	g.Expect(result).ShouldNot(ContainSubstring(strings.Repeat("x", 11)))
}

func TestRenderNotifications(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(shared.RenderNotifications(nil, 40)).Should(BeEmpty())

	result := shared.RenderNotifications([]syncengine.Notification{
		{Title: "first failed"},
		{Title: "second failed"},
	}, 40)

	g.Expect(strings.Index(result, "first")).Should(BeNumerically("<", strings.Index(result, "second")))
}
