package controllers

import (
	"strings"
)

// promptStudioSeparator splits an optimized prompt from its explanation.
// The prompt-studio system instruction tells the model to emit it between
// the two sections.
const promptStudioSeparator = "---EXPLANATION---"

// StripCodeFences drops code-fence delimiter lines (``` with or without a
// language tag) from the accumulated text. Applying it on every publish of a
// growing accumulator yields the same final text as applying it once to the
// complete string.
func StripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// SplitResult separates accumulated prompt-studio output into (result,
// explanation). Until the separator arrives everything is the result;
// re-splitting a growing string on a stable delimiter is monotonic, so
// calling this on every fragment is safe.
func SplitResult(s string) (string, string) {
	idx := strings.Index(s, promptStudioSeparator)
	if idx < 0 {
		return strings.TrimSpace(s), ""
	}
	result := strings.TrimSpace(s[:idx])
	explanation := strings.TrimSpace(s[idx+len(promptStudioSeparator):])
	return result, explanation
}
