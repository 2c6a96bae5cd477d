package bookmark

import "testing"

func TestParse_RoundTrip(t *testing.T) {
	q, id, ok := Parse(Name(3, 4711))
	if !ok || q != 3 || id != 4711 {
		t.Errorf("expected (3, 4711, true), got (%d, %d, %v)", q, id, ok)
	}
}

func TestParse_RejectsForeignNames(t *testing.T) {
	for _, name := range []string{
		"",
		"_GoBack",
		"WI_",
		"WI_1",
		"WI_1_",
		"WI__2",
		"WI_01_2",
		"WI_1_02",
		"WI_1_2_3",
		"WI_-1_2",
		"wi_1_2",
		"Heading1",
	} {
		if _, _, ok := Parse(name); ok {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestName_Injective(t *testing.T) {
	seen := make(map[string][2]int)
	for q := 0; q < 12; q++ {
		for id := 0; id < 120; id++ {
			n := Name(q, id)
			if prev, dup := seen[n]; dup {
				t.Fatalf("name %q produced by %v and (%d,%d)", n, prev, q, id)
			}
			seen[n] = [2]int{q, id}
		}
	}
}
