package reviews

import "testing"

func TestCleanRating(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		in   *float64
		want *int
	}{
		{name: "missing stays missing", in: nil, want: nil},
		{name: "zero is valid", in: f(0), want: intPtr(0)},
		{name: "in range floors", in: f(7.8), want: intPtr(7)},
		{name: "above range clamps", in: f(11), want: intPtr(10)},
		{name: "below range clamps", in: f(-3), want: intPtr(0)},
		{name: "max stays max", in: f(10), want: intPtr(10)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := cleanRating(tc.in)
			switch {
			case got == nil && tc.want == nil:
			case got == nil || tc.want == nil:
				t.Fatalf("got %v, want %v", got, tc.want)
			case *got != *tc.want:
				t.Fatalf("got %d, want %d", *got, *tc.want)
			}
		})
	}
}

func intPtr(v int) *int {
	return &v
}
