package cluster

import "testing"

func TestCanTransition_AllowsSpecDefinedEdges(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateStarting, StateAlive, true},
		{StateAlive, StateDegraded, true},
		{StateDegraded, StateAlive, true},
		{StateAlive, StateStopping, true},
		{StateStopping, StateDead, true},
		{StateDead, StateStarting, true},
		{StateStarting, StateDegraded, false},
		{StateDead, StateAlive, false},
		{StateStopping, StateAlive, false},
	}

	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
