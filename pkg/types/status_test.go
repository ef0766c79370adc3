package types

import "testing"

func upNode(states ...SlotState) NodeStatus {
	slots := make([]SlotStatus, len(states))
	for i, st := range states {
		slots[i] = SlotStatus{Stereotype: Capabilities{"browserName": "firefox"}, State: st}
	}
	return NodeStatus{NodeID: "n1", Availability: AvailabilityUp, Slots: slots}
}

func TestNodeStatus_HasCapacity(t *testing.T) {
	if !upNode(SlotAvailable, SlotOccupied).HasCapacity() {
		t.Fatalf("node with a free slot should have capacity")
	}
	if upNode(SlotOccupied, SlotReserved).HasCapacity() {
		t.Fatalf("fully busy node should not have capacity")
	}
	down := upNode(SlotAvailable)
	down.Availability = AvailabilityDown
	if down.HasCapacity() {
		t.Fatalf("down node should never have capacity")
	}
	draining := upNode(SlotAvailable)
	draining.Availability = AvailabilityDraining
	if draining.HasCapacity() {
		t.Fatalf("draining node should not accept new work")
	}
}

func TestNodeStatus_LoadAndFreeMatching(t *testing.T) {
	ns := upNode(SlotAvailable, SlotReserved, SlotOccupied)
	if got := ns.Load(); got != 2 {
		t.Fatalf("Load() = %d, want 2", got)
	}
	if got := ns.FreeMatching(Capabilities{"browserName": "firefox"}); got != 1 {
		t.Fatalf("FreeMatching(firefox) = %d, want 1", got)
	}
	if got := ns.FreeMatching(Capabilities{"browserName": "chrome"}); got != 0 {
		t.Fatalf("FreeMatching(chrome) = %d, want 0", got)
	}
}
