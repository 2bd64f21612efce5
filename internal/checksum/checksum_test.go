package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Fatalf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Fatal("different inputs share a digest")
	}
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("kanban"))
	tests := []struct {
		tag  string
		want bool
	}{
		{"", true},
		{"*", true},
		{sum, true},
		{`"` + sum + `"`, true},
		{`W/"` + sum + `"`, true},
		{" " + sum + " ", true},
		{Sum([]byte("other")), false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := Matches(tt.tag, sum); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}
