package rewrite

import (
	"context"
	"strings"
)

// StubClient returns deterministic rewrite results (for development/testing).
type StubClient struct{}

func (s *StubClient) Rewrite(_ context.Context, r Request) (string, error) {
	// Echo the content with normalized whitespace so repeated stub rewrites
	// surface the "no changes" path instead of churning revisions.
	lines := strings.Split(r.Content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
