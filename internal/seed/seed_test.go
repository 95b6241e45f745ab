package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
	"github.com/manuel-Igtm/meeting-tool/internal/testfixtures"
)

const scenario = `
participants:
  - id: alice
    email: alice@example.com
    display_name: Alice
    business_hours: {}
  - id: bob
    email: bob@example.com
    display_name: Bob
    business_hours: {start: "09:00", end: "17:00"}
windows:
  - participant: bob
    date: "2024-03-16"
    start: "10:00"
    end: "12:00"
blocked_time:
  - participant: alice
    start: 2024-03-12T00:00:00+03:00
    end: 2024-03-13T00:00:00+03:00
    reason: vacation
    all_day: true
meetings:
  - organizer: alice
    title: Weekly sync
    start: 2024-03-11T10:00:00+03:00
    end: 2024-03-11T10:30:00+03:00
    participants: [bob]
    recurrence: {frequency: weekly, count: 4}
    responses: {bob: accepted}
  - organizer: bob
    title: Retro
    start: 2024-03-13T15:00:00+03:00
    end: 2024-03-13T16:00:00+03:00
    participants: [alice]
    status: cancelled
`

func newServices(t *testing.T) (*testfixtures.Services, Services) {
	t.Helper()
	all := testfixtures.NewServiceFactory().NewServices(nil)
	return all, Services{Participants: all.Participants, Availability: all.Availability, Meetings: all.Meetings}
}

func TestParseAndApply(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(scenario))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	all, svc := newServices(t)
	ctx := context.Background()

	sum, err := Apply(ctx, svc, doc)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if sum.Participants != 2 || sum.Windows != 11 || sum.BlockedTime != 1 || sum.Meetings != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	sync, err := all.Meetings.GetMeeting(ctx, sum.MeetingIDs[0])
	if err != nil {
		t.Fatalf("GetMeeting returned error: %v", err)
	}
	if sync.Responses["bob"] != scheduler.ResponseAccepted || sync.Recurrence.Count != 4 {
		t.Fatalf("unexpected seeded meeting %+v", sync)
	}
	retro, err := all.Meetings.GetMeeting(ctx, sum.MeetingIDs[1])
	if err != nil || retro.Status != scheduler.StatusCancelled {
		t.Fatalf("expected cancelled retro, got %+v (%v)", retro, err)
	}

	report, err := all.Scheduling.CheckConflicts(ctx, application.CheckConflictsParams{
		Start:          testfixtures.At(7, 10, 15),
		End:            testfixtures.At(7, 11, 0),
		ParticipantIDs: []string{"bob"},
	})
	if err != nil || !report.HasConflict {
		t.Fatalf("expected the second weekly occurrence to conflict, got %+v (%v)", report, err)
	}
}

func TestApplyReportsFailingEntry(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(`
meetings:
  - organizer: alice
    title: First
    start: 2024-03-11T10:00:00+03:00
    end: 2024-03-11T11:00:00+03:00
    participants: [bob]
  - organizer: carol
    title: Clash
    start: 2024-03-11T10:30:00+03:00
    end: 2024-03-11T11:30:00+03:00
    participants: [bob]
`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	_, svc := newServices(t)

	sum, err := Apply(context.Background(), svc, doc)
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "meetings[1]") {
		t.Fatalf("expected failing entry in error, got %q", err.Error())
	}
	if sum.Meetings != 1 {
		t.Fatalf("expected the first meeting to be kept, got %+v", sum)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	if _, err := Parse(strings.NewReader("rooms: []\n")); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	doc, err := Parse(strings.NewReader(""))
	if err != nil || len(doc.Meetings) != 0 {
		t.Fatalf("expected empty document, got %+v (%v)", doc, err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(scenario), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if len(doc.Participants) != 2 || doc.Participants[1].BusinessHours.Start != "09:00" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}
