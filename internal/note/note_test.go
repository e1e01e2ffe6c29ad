package note

import "testing"

func TestNameNumberRoundTrip(t *testing.T) {
	cases := []struct {
		number uint8
		name   string
	}{
		{60, "C4"},
		{61, "Db4"},
		{69, "A4"},
		{72, "C5"},
		{0, "C-1"},
		{127, "G9"},
	}

	for _, c := range cases {
		if got := Name(c.number); got != c.name {
			t.Errorf("Name(%d) = %q, want %q", c.number, got, c.name)
		}
		num, ok := Number(c.name)
		if !ok {
			t.Errorf("Number(%q) did not parse", c.name)
			continue
		}
		if num != c.number {
			t.Errorf("Number(%q) = %d, want %d", c.name, num, c.number)
		}
	}
}

func TestNumberRejectsMalformedNames(t *testing.T) {
	for _, name := range []string{"", "H4", "C", "Db", "C99", "4C"} {
		if _, ok := Number(name); ok {
			t.Errorf("Number(%q) parsed, want rejection", name)
		}
	}
}

func TestDefaultDimmableNotesParse(t *testing.T) {
	nums := Numbers(DefaultDimmableNotes)
	if len(nums) != len(DefaultDimmableNotes) {
		t.Fatalf("expected all %d default dimmable notes to parse, got %d",
			len(DefaultDimmableNotes), len(nums))
	}
}
