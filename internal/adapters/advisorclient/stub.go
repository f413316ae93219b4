// Package advisorclient provides two implementations of the advisor.Client
// port: a deterministic StubClient for tests and local runs, and an
// HTTPClient for a generic completion-style HTTP provider. The language
// model backing the provider is out of scope; only the Complete(system,
// user) -> text contract is specified.
package advisorclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// StubClient is a deterministic rule-following advisor: it approves pairs
// whose prompt lines it can parse back out, mirroring what a cooperative
// real advisor would return for a well-formed prompt. It exists so the
// engine can run end to end without a live LLM provider.
type StubClient struct {
	// ApproveFraction is the fraction (0..1) of submitted pairs/lines the
	// stub approves, in order. Defaults to approving the first line only.
	ApproveFraction float64
}

// Complete implements advisor.Client. It scans the user message for lines
// containing a directional arrow ("->" or the unicode "→") of the form
// "id -> id" and echoes back a prefix of them as approved. A user message
// with no arrow lines that names both CONTINUE and ADJUST_ROUTE (the
// Adapter decision menu) gets a "DECISION: CONTINUE" reply instead; the
// system message is not scanned.
func (s *StubClient) Complete(ctx context.Context, system, user string) (string, error) {
	lines := splitLines(user)
	var arrowLines []string
	for _, l := range lines {
		if containsArrow(l) {
			arrowLines = append(arrowLines, l)
		}
	}

	if len(arrowLines) > 0 {
		frac := s.ApproveFraction
		if frac <= 0 {
			frac = 1.0 / float64(len(arrowLines))
		}
		n := int(float64(len(arrowLines))*frac + 0.5)
		if n < 1 {
			n = 1
		}
		if n > len(arrowLines) {
			n = len(arrowLines)
		}
		sort.Strings(arrowLines) // deterministic
		out := "APPROVED:\n"
		for _, l := range arrowLines[:n] {
			out += l + "\n"
		}
		return out, nil
	}

	if containsDecisionMenu(user) {
		return "DECISION: CONTINUE\nreasoning: no material disturbance detected", nil
	}

	return fmt.Sprintf("no structured response for system=%q", system), nil
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func containsArrow(s string) bool {
	return strings.Contains(s, "->") || strings.Contains(s, "→")
}

func containsDecisionMenu(s string) bool {
	return strings.Contains(s, "CONTINUE") && strings.Contains(s, "ADJUST_ROUTE")
}
