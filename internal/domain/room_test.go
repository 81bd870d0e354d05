package domain

import "testing"

func TestRoomSides(t *testing.T) {
	r := &Room{InitiatorID: "a", CounterpartID: "b"}
	r.Counterpart.UnreadCount = 2

	if !r.IsParticipant("a") || !r.IsParticipant("b") {
		t.Fatal("participants not recognized")
	}
	if r.IsParticipant("c") {
		t.Fatal("outsider recognized as participant")
	}

	if !r.IsInitiator("a") || r.IsInitiator("b") {
		t.Fatal("initiator detection broken")
	}

	if got := r.SideOf("b"); got == nil || got.UnreadCount != 2 {
		t.Fatalf("SideOf(b) = %+v", got)
	}
	if r.SideOf("c") != nil {
		t.Fatal("SideOf for outsider must be nil")
	}

	// SideOf отдаёт указатель на состояние, не копию
	r.SideOf("a").Viewing = true
	if !r.Initiator.Viewing {
		t.Fatal("SideOf must alias the room state")
	}

	if r.OtherID("a") != "b" || r.OtherID("b") != "a" {
		t.Fatal("OtherID broken")
	}
}
