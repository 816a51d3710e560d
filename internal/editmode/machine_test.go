package editmode

import (
	"errors"
	"testing"

	"hotelmap/internal/domain"
	"hotelmap/internal/floorstore"
	"hotelmap/internal/geometry"
)

var box = geometry.Rect{Left: 0, Top: 0, Width: 400, Height: 200}

func clickAt(x, y float64) Click {
	return Click{Pointer: geometry.Point{X: x, Y: y}, Container: box}
}

func hit(id string) Click {
	return Click{MarkerID: id, Container: box}
}

// setup returns a machine on floor 1 with markers at (25%,50%) and (75%,50%),
// rendered at pixels (100,100) and (300,100).
func setup(t *testing.T, confirm ConfirmFunc) (*Machine, *floorstore.Store, string, string) {
	t.Helper()
	s := floorstore.New()
	floorID, err := s.AddFloor("Lobby")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.AddMarker(floorID, domain.Position{X: 25, Y: 50}, "A", domain.IconBed)
	b, _ := s.AddMarker(floorID, domain.Position{X: 75, Y: 50}, "B", domain.IconDoor)
	m := New(s, confirm)
	if err := m.SelectFloor(floorID); err != nil {
		t.Fatal(err)
	}
	return m, s, a, b
}

func TestIdleIgnoresClicks(t *testing.T) {
	m, s, a, _ := setup(t, nil)
	before := s.Snapshot()
	out, err := m.Click(hit(a))
	if err != nil || out.Action != ActionNone {
		t.Fatalf("idle click = %+v, %v", out, err)
	}
	if st, _ := s.Stats(1); st.Markers != len(before.Floors["1"].Markers) {
		t.Error("idle click mutated the store")
	}
}

func TestAddMode_PlacementAndConfirm(t *testing.T) {
	m, s, _, _ := setup(t, nil)
	m.SetMode(ModeAdd)

	out, err := m.Click(clickAt(200, 100))
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionPlacementPending || out.Position == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Position.X != 50 || out.Position.Y != 50 {
		t.Errorf("pending at %+v, want 50,50", *out.Position)
	}

	if _, err := m.ConfirmMarker("  ", domain.IconBell); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if m.Pending() == nil {
		t.Fatal("failed confirmation must keep the placement")
	}

	out, err = m.ConfirmMarker("Front Desk", domain.IconBell)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionMarkerAdded || !out.Changed() {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if m.Mode() != ModeAdd || m.Pending() != nil {
		t.Errorf("after confirm: mode=%s pending=%v", m.Mode(), m.Pending())
	}
	if st, _ := s.Stats(1); st.Markers != 3 {
		t.Errorf("markers = %d, want 3", st.Markers)
	}
}

func TestAddMode_IgnoresMarkerClicksAndCancel(t *testing.T) {
	m, _, a, _ := setup(t, nil)
	m.SetMode(ModeAdd)

	if out, _ := m.Click(hit(a)); out.Action != ActionNone {
		t.Errorf("marker click in add mode = %s", out.Action)
	}

	m.Click(clickAt(10, 10))
	m.CancelMarker()
	if m.Pending() != nil {
		t.Error("cancel should clear the placement")
	}
	if _, err := m.ConfirmMarker("X", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("confirm without placement: %v", err)
	}
}

func TestAddMode_DegenerateContainer(t *testing.T) {
	m, _, _, _ := setup(t, nil)
	m.SetMode(ModeAdd)
	c := clickAt(10, 10)
	c.Container.Width = 0
	if _, err := m.Click(c); !errors.Is(err, domain.ErrGeometry) {
		t.Errorf("expected geometry error, got %v", err)
	}
	if m.Pending() != nil {
		t.Error("no placement expected")
	}
}

func TestDeleteMode_ConfirmAndDecline(t *testing.T) {
	answer := false
	var prompts []string
	m, s, a, _ := setup(t, func(p string) bool {
		prompts = append(prompts, p)
		return answer
	})
	m.SetMode(ModeDelete)

	out, err := m.Click(hit(a))
	if err != nil || out.Action != ActionDeleteDeclined {
		t.Fatalf("declined delete = %+v, %v", out, err)
	}
	if st, _ := s.Stats(1); st.Markers != 2 {
		t.Fatal("declined delete removed a marker")
	}

	answer = true
	// 20px from A's rendered position, inside the capture radius.
	out, err = m.Click(clickAt(120, 100))
	if err != nil || out.Action != ActionMarkerDeleted || out.MarkerID != a {
		t.Fatalf("delete = %+v, %v", out, err)
	}
	if len(prompts) != 2 || prompts[1] != `Delete marker "A"?` {
		t.Errorf("prompts = %q", prompts)
	}
}

func TestDeleteMode_EmptySpaceIsNoop(t *testing.T) {
	m, s, _, _ := setup(t, nil)
	m.SetMode(ModeDelete)
	out, err := m.Click(clickAt(200, 10))
	if err != nil || out.Action != ActionNone {
		t.Fatalf("empty click = %+v, %v", out, err)
	}
	if st, _ := s.Stats(1); st.Markers != 2 {
		t.Error("empty click deleted something")
	}
}

func TestNearestLookup_RadiusIsStrict(t *testing.T) {
	m, _, _, _ := setup(t, nil)
	m.SetMode(ModeConnect)
	// Exactly 30px from A.
	out, _ := m.Click(clickAt(130, 100))
	if out.Action != ActionNone {
		t.Errorf("click at the radius boundary resolved to %+v", out)
	}
	out, _ = m.Click(clickAt(129, 100))
	if out.Action != ActionFirstSelected {
		t.Errorf("click inside the radius = %+v", out)
	}
}

func TestConnectMode_Flow(t *testing.T) {
	m, s, a, b := setup(t, nil)
	m.SetMode(ModeConnect)

	if out, _ := m.Click(hit(a)); out.Action != ActionFirstSelected {
		t.Fatalf("first = %s", out.Action)
	}
	if m.Selected() != a {
		t.Fatalf("selected = %q", m.Selected())
	}
	out, err := m.Click(hit(b))
	if err != nil || out.Action != ActionConnected {
		t.Fatalf("second = %+v, %v", out, err)
	}
	if m.Selected() != "" {
		t.Error("selection must reset after applying")
	}

	m.Click(hit(b))
	out, _ = m.Click(hit(a))
	if out.Action != ActionAlreadyConnected || out.Changed() {
		t.Errorf("repeat connect = %+v", out)
	}
	if st, _ := s.Stats(1); st.Connections != 1 {
		t.Errorf("connections = %d", st.Connections)
	}
}

func TestConnectMode_SameMarkerTwiceDeselects(t *testing.T) {
	m, s, a, _ := setup(t, nil)
	m.SetMode(ModeConnect)
	m.Click(hit(a))
	out, _ := m.Click(hit(a))
	if out.Action != ActionSelectionCleared || m.Selected() != "" {
		t.Errorf("double click = %+v selected=%q", out, m.Selected())
	}
	if st, _ := s.Stats(1); st.Connections != 0 {
		t.Error("deselect created a connection")
	}
}

func TestDisconnectMode_Flow(t *testing.T) {
	m, s, a, b := setup(t, nil)
	s.Connect(1, a, b)
	m.SetMode(ModeDisconnect)

	m.Click(hit(b))
	out, _ := m.Click(hit(a))
	if out.Action != ActionDisconnected {
		t.Fatalf("disconnect = %s", out.Action)
	}
	m.Click(hit(a))
	out, _ = m.Click(hit(b))
	if out.Action != ActionNotConnected {
		t.Errorf("second disconnect = %s", out.Action)
	}
}

func TestModeChangeResetsSelection(t *testing.T) {
	m, _, a, _ := setup(t, nil)
	m.SetMode(ModeConnect)
	m.Click(hit(a))
	m.SetMode(ModeDisconnect)
	if m.Selected() != "" {
		t.Error("mode change must drop the pending endpoint")
	}

	m.SetMode(ModeAdd)
	m.Click(clickAt(50, 50))
	m.SetMode(ModeAdd)
	if m.Pending() != nil {
		t.Error("mode change must drop the pending placement")
	}
}

func TestSelectFloorReturnsToIdle(t *testing.T) {
	m, s, _, _ := setup(t, nil)
	second, _ := s.AddFloor("Second")
	m.SetMode(ModeDelete)
	if err := m.SelectFloor(second); err != nil {
		t.Fatal(err)
	}
	if m.Mode() != ModeIdle || m.FloorID() != second {
		t.Errorf("mode=%s floor=%d", m.Mode(), m.FloorID())
	}
	if err := m.SelectFloor(99); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeIdle, false},
		{"add", ModeAdd, false},
		{"disconnect", ModeDisconnect, false},
		{"paint", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}
