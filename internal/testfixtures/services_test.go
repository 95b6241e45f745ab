package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
)

func TestServiceFactoryNewServices(t *testing.T) {
	factory := NewServiceFactory()
	services := factory.NewServices(nil)

	result, err := services.Meetings.CreateMeeting(context.Background(), application.MeetingInput{
		OrganizerID:    "alice",
		Title:          "Planning",
		Start:          At(0, 10, 0),
		End:            At(0, 11, 0),
		ParticipantIDs: []string{"bob"},
	})
	if err != nil {
		t.Fatalf("CreateMeeting returned error: %v", err)
	}

	if result.Meeting.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", result.Meeting.ID)
	}
	if !result.Meeting.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), result.Meeting.CreatedAt)
	}
	if services.Claims.Held() != 0 {
		t.Fatalf("expected claims to be released, %d held", services.Claims.Held())
	}

	_, err = services.Meetings.CreateMeeting(context.Background(), application.MeetingInput{
		OrganizerID:    "carol",
		Title:          "Overlap",
		Start:          At(0, 10, 30),
		End:            At(0, 11, 30),
		ParticipantIDs: []string{"bob"},
	})
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected conflict through the shared engine, got %v", err)
	}
}
