package rooms

import (
	"testing"
)

func TestPairKey_OrderIndependent(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"u1", "u2", "u1_u2"},
		{"u2", "u1", "u1_u2"},
		{"bob", "alice", "alice_bob"},
		{"same", "same", "same_same"},
	}
	for _, tc := range cases {
		if got := PairKey(tc.a, tc.b); got != tc.want {
			t.Errorf("PairKey(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
		if PairKey(tc.a, tc.b) != PairKey(tc.b, tc.a) {
			t.Errorf("PairKey not symmetric for (%s, %s)", tc.a, tc.b)
		}
	}
}

func TestIndex_JoinMembers(t *testing.T) {
	i := NewIndex()

	room := PairKey("u1", "u2")
	i.Join(room, "c1")
	i.Join(room, "c2")
	i.Join(room, "c2") // joining twice is a no-op

	members := i.Members(room)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}

	if got := i.Members("unknown"); len(got) != 0 {
		t.Errorf("unknown room should have no members, got %v", got)
	}
}

func TestIndex_Evict(t *testing.T) {
	i := NewIndex()

	roomA := PairKey("u1", "u2")
	roomB := PairKey("u1", "u3")
	i.Join(roomA, "c1")
	i.Join(roomB, "c1")
	i.Join(roomA, "c2")

	i.Evict("c1")

	if got := i.Members(roomA); len(got) != 1 || got[0] != "c2" {
		t.Errorf("roomA members after evict = %v", got)
	}
	if got := i.Members(roomB); len(got) != 0 {
		t.Errorf("roomB should be empty after evict, got %v", got)
	}

	// Evicting an unknown connection is a no-op
	i.Evict("never-joined")
}
