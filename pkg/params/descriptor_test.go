package params

import (
	"testing"
)

func TestAll_CoversSpaceExactlyOnce(t *testing.T) {
	seen := make(map[Descriptor]int)
	for d := range All() {
		seen[d]++
	}

	if len(seen) != Count {
		t.Fatalf("distinct descriptors = %d, want %d", len(seen), Count)
	}
	if Count != 240 {
		t.Errorf("Count = %d, want 240", Count)
	}

	for dt := 1; dt <= 20; dt++ {
		for ct := 0; ct <= 3; ct++ {
			for pt := 1; pt <= 3; pt++ {
				d := Descriptor{DisplayType: dt, ControlType: ct, PBType: pt}
				if seen[d] != 1 {
					t.Errorf("descriptor %s seen %d times, want 1", d, seen[d])
				}
			}
		}
	}
}

func TestAll_Order(t *testing.T) {
	list := List()

	if list[0] != (Descriptor{DisplayType: 1, ControlType: 0, PBType: 1}) {
		t.Errorf("first = %v, want 1_0_1", list[0])
	}
	if list[1] != (Descriptor{DisplayType: 1, ControlType: 0, PBType: 2}) {
		t.Errorf("second = %v, want 1_0_2", list[1])
	}
	if list[3] != (Descriptor{DisplayType: 1, ControlType: 1, PBType: 1}) {
		t.Errorf("fourth = %v, want 1_1_1", list[3])
	}
	if last := list[len(list)-1]; last != (Descriptor{DisplayType: 20, ControlType: 3, PBType: 3}) {
		t.Errorf("last = %v, want 20_3_3", last)
	}
}

func TestAll_Restartable(t *testing.T) {
	seq := All()

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}

	if first != Count || second != Count {
		t.Errorf("counts = %d, %d, want %d both times", first, second, Count)
	}
}

func TestAll_EarlyBreak(t *testing.T) {
	n := 0
	for range All() {
		n++
		if n == 5 {
			break
		}
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
}

func TestDescriptor_Key(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want string
	}{
		{Descriptor{1, 0, 1}, "1_0_1"},
		{Descriptor{20, 3, 3}, "20_3_3"},
		{Descriptor{12, 2, 1}, "12_2_1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.d.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    Descriptor
		wantErr bool
	}{
		{name: "valid", key: "7_2_3", want: Descriptor{7, 2, 3}},
		{name: "two digit display", key: "20_0_1", want: Descriptor{20, 0, 1}},
		{name: "too few parts", key: "7_2", wantErr: true},
		{name: "too many parts", key: "7_2_3_4", wantErr: true},
		{name: "not a number", key: "a_2_3", wantErr: true},
		{name: "display out of range", key: "21_0_1", wantErr: true},
		{name: "pb out of range", key: "1_0_0", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseKey(%q) expected error, got %v", tt.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) unexpected error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestParseKey_RoundTrip(t *testing.T) {
	for d := range All() {
		got, err := ParseKey(d.Key())
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", d.Key(), err)
		}
		if got != d {
			t.Errorf("ParseKey(Key(%v)) = %v", d, got)
		}
	}
}
