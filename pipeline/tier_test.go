package pipeline

import "testing"

func TestTierForCores(t *testing.T) {
	cases := []struct {
		cores int
		want  Tier
	}{
		{1, Low}, {4, Medium}, {8, High}, {12, Ultra}, {16, Ultra}, {6, Medium}, {11, High},
	}
	for _, c := range cases {
		if got := tierForCores(c.cores); got != c.want {
			t.Errorf("tierForCores(%d) = %v, want %v", c.cores, got, c.want)
		}
	}
}

func TestTierBoundsTable(t *testing.T) {
	b := Ultra.Bounds()
	if b.MinMs != 25000 || b.MaxMs != 30000 {
		t.Fatalf("unexpected Ultra bounds: %+v", b)
	}
	b = Low.Bounds()
	if b.MinMs != 12000 || b.MaxMs != 18000 {
		t.Fatalf("unexpected Low bounds: %+v", b)
	}
}
