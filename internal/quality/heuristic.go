package quality

import (
	"fmt"
	"strings"
)

// Heuristic scoring: deterministic rule-based checks over the source/target
// pair. Starts at 100 and subtracts per finding; the result is clamped to
// [0,100]. Malformed ICU in the target is reported as an issue, never as a
// hard failure.

const (
	penaltyEmpty              = 100
	penaltyICUSyntax          = 40
	penaltyPlaceholderMissing = 25
	penaltyPlaceholderExtra   = 10
	penaltyLengthRatio        = 10
	penaltyTerminology        = 10
	penaltyWhitespace         = 5
)

const (
	lengthRatioMin = 0.5
	lengthRatioMax = 2.5
	// Very short strings produce meaningless ratios ("OK" → "In Ordnung").
	lengthRatioMinSourceLen = 6
)

func scoreHeuristic(sourceText, targetText string, terms []string) (int, []Issue) {
	if strings.TrimSpace(targetText) == "" && strings.TrimSpace(sourceText) != "" {
		return 0, []Issue{{
			Type:     "empty_translation",
			Severity: SeverityError,
			Message:  "translation value is empty",
		}}
	}

	score := 100
	var issues []Issue
	add := func(penalty int, issue Issue) {
		score -= penalty
		issues = append(issues, issue)
	}

	targetArgs, targetErr := ParseICUArguments(targetText)
	if targetErr != nil {
		add(penaltyICUSyntax, Issue{
			Type:     "icu_syntax",
			Severity: SeverityError,
			Message:  "target is not valid ICU: " + targetErr.Error(),
		})
	}

	sourceArgs, sourceErr := ParseICUArguments(sourceText)
	if sourceErr == nil && targetErr == nil {
		targetSet := make(map[string]struct{}, len(targetArgs))
		for _, arg := range targetArgs {
			targetSet[arg] = struct{}{}
		}
		sourceSet := make(map[string]struct{}, len(sourceArgs))
		for _, arg := range sourceArgs {
			sourceSet[arg] = struct{}{}
			if _, ok := targetSet[arg]; !ok {
				add(penaltyPlaceholderMissing, Issue{
					Type:     "placeholder_missing",
					Severity: SeverityError,
					Message:  fmt.Sprintf("placeholder {%s} from the source is missing", arg),
				})
			}
		}
		for _, arg := range targetArgs {
			if _, ok := sourceSet[arg]; !ok {
				add(penaltyPlaceholderExtra, Issue{
					Type:     "placeholder_extra",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("placeholder {%s} does not appear in the source", arg),
				})
			}
		}
	}

	srcLen := len([]rune(sourceText))
	tgtLen := len([]rune(targetText))
	if srcLen >= lengthRatioMinSourceLen {
		ratio := float64(tgtLen) / float64(srcLen)
		if ratio < lengthRatioMin || ratio > lengthRatioMax {
			add(penaltyLengthRatio, Issue{
				Type:     "length_ratio",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("target/source length ratio %.2f outside [%.1f, %.1f]", ratio, lengthRatioMin, lengthRatioMax),
			})
		}
	}

	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(sourceText, term) && !strings.Contains(targetText, term) {
			add(penaltyTerminology, Issue{
				Type:     "terminology",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("glossary term %q must carry over verbatim", term),
			})
		}
	}

	if whitespaceMismatch(sourceText, targetText) {
		add(penaltyWhitespace, Issue{
			Type:     "whitespace",
			Severity: SeverityInfo,
			Message:  "leading/trailing whitespace differs from the source",
		})
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}

func whitespaceMismatch(source, target string) bool {
	lead := func(s string) bool { return s != strings.TrimLeft(s, " \t\n") }
	trail := func(s string) bool { return s != strings.TrimRight(s, " \t\n") }
	return lead(source) != lead(target) || trail(source) != trail(target)
}
