package docs

import "testing"

func TestExtractBadges(t *testing.T) {
	content := "# Report\n" +
		"| Suite | Result |\n" +
		"| Backend Tests | **7/7 PASSING** |\n" +
		"| API | 3/5 FAILED |\n" +
		"**Playwright Tests: 31/36 PASSING**\n" +
		"Result: 12/12 passed\n" +
		"1: 2/3 PASSING\n" +
		"nothing here\n"

	got := extractBadges(content, "QA_REPORT.md")
	want := []Badge{
		{Label: "Backend Tests", Value: "7/7 PASSING", Status: StatusPassing, LineNumber: 3},
		{Label: "API", Value: "3/5 FAILED", Status: StatusFailing, LineNumber: 4},
		{Label: "Playwright Tests", Value: "31/36 PASSING", Status: StatusWarning, LineNumber: 5},
		{Label: "Result", Value: "12/12 PASSED", Status: StatusPassing, LineNumber: 6},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d badges, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		w.SourceFile = "QA_REPORT.md"
		if got[i] != w {
			t.Errorf("badge %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestBadgeStatus(t *testing.T) {
	tests := map[string]string{
		"7/7 PASSING":   StatusPassing,
		"6/7 PASSING":   StatusWarning,
		"0/3 FAILING":   StatusFailing,
		"2/2 WARNING":   StatusWarning,
		"10/10 PASSED":  StatusPassing,
		"something odd": StatusWarning,
	}
	for in, want := range tests {
		if got := badgeStatus(in); got != want {
			t.Errorf("badgeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
