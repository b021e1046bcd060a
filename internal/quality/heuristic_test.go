package quality

import "testing"

func TestScoreHeuristicCleanTranslation(t *testing.T) {
	score, issues := scoreHeuristic("Hello {name}!", "Hallo {name}!", nil)
	if score != 100 {
		t.Errorf("score = %d, want 100", score)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %+v, want none", issues)
	}
}

func TestScoreHeuristicEmptyTranslation(t *testing.T) {
	score, issues := scoreHeuristic("Hello", "", nil)
	if score != 0 {
		t.Errorf("score = %d, want 0", score)
	}
	if len(issues) != 1 || issues[0].Type != "empty_translation" || issues[0].Severity != SeverityError {
		t.Errorf("issues = %+v", issues)
	}
}

func TestScoreHeuristicInvalidICUIsIssueNotFailure(t *testing.T) {
	score, issues := scoreHeuristic("Hello {name}!", "Hallo {name", nil)
	if score >= 100 {
		t.Errorf("invalid ICU must be penalized, got %d", score)
	}
	found := false
	for _, issue := range issues {
		if issue.Type == "icu_syntax" && issue.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("expected icu_syntax issue, got %+v", issues)
	}
}

func TestScoreHeuristicPlaceholderParity(t *testing.T) {
	score, issues := scoreHeuristic("Hi {name}, {count} new", "Hallo, {count} neue, {extra}", nil)
	if score != 100-penaltyPlaceholderMissing-penaltyPlaceholderExtra {
		t.Errorf("score = %d", score)
	}
	types := map[string]bool{}
	for _, issue := range issues {
		types[issue.Type] = true
	}
	if !types["placeholder_missing"] || !types["placeholder_extra"] {
		t.Errorf("issues = %+v", issues)
	}
}

func TestScoreHeuristicLengthRatio(t *testing.T) {
	_, issues := scoreHeuristic("A reasonably long source sentence", "Kurz", nil)
	found := false
	for _, issue := range issues {
		if issue.Type == "length_ratio" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected length_ratio issue, got %+v", issues)
	}

	// Short sources are exempt from the ratio check.
	score, issues := scoreHeuristic("OK", "In Ordnung", nil)
	if score != 100 || len(issues) != 0 {
		t.Errorf("short source must not trip ratio check: %d %+v", score, issues)
	}
}

func TestScoreHeuristicTerminology(t *testing.T) {
	score, issues := scoreHeuristic("Open the Dashboard to continue", "Öffne die Übersicht um fortzufahren", []string{"Dashboard"})
	if score != 100-penaltyTerminology {
		t.Errorf("score = %d", score)
	}
	if len(issues) != 1 || issues[0].Type != "terminology" {
		t.Errorf("issues = %+v", issues)
	}

	score, _ = scoreHeuristic("Open the Dashboard to continue", "Öffne das Dashboard um fortzufahren", []string{"Dashboard"})
	if score != 100 {
		t.Errorf("carried-over term must not be penalized, got %d", score)
	}
}

// P2: heuristic scores always land in [0,100] even under stacked penalties.
func TestScoreHeuristicBounds(t *testing.T) {
	inputs := [][2]string{
		{"Hello {name}!", "Hallo {name}!"},
		{"Hi {a} {b} {c} {d} {e}", "totally unrelated and much much much much longer text without placeholders"},
		{"Hello", ""},
		{"{x, plural, other {#}}", "{{{"},
	}
	for _, in := range inputs {
		score, _ := scoreHeuristic(in[0], in[1], []string{"Hello", "Hi"})
		if score < 0 || score > 100 {
			t.Errorf("scoreHeuristic(%q, %q) = %d out of bounds", in[0], in[1], score)
		}
	}
}
