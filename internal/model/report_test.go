package model

import "testing"

func TestMatchesSymbolOrName(t *testing.T) {
	cases := []struct {
		query, candidate string
		want            bool
	}{
		{"AAPL", "aapl", true},
		{"  Apple   Inc ", "apple inc", true},
		{"aapl", "AAPL Apple Inc", true},
		{"aapl", "Apple Inc (AAPL)", true},
		{"aapl", "Apple Inc [AAPL]", true},
		{"aapl", "Apple Inc AAPL", false},
		{"appl", "Apple Inc", false},
		{"apple inc", "Apple Inc (AAPL)", false},
		{"brk.b", "BRK.B Berkshire", true},
		{"", "AAPL", false},
		{"AAPL", "", false},
		{"1234", "1234 Holdings", false},
	}
	for _, tc := range cases {
		if got := MatchesSymbolOrName(tc.query, tc.candidate); got != tc.want {
			t.Errorf("MatchesSymbolOrName(%q, %q) = %v, want %v", tc.query, tc.candidate, got, tc.want)
		}
	}
}

func TestReportUpdateEmpty(t *testing.T) {
	if !(ReportUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}
	md := "# x"
	if (ReportUpdate{Markdown: &md}).Empty() {
		t.Error("update with markdown should not be empty")
	}
}
