// Package triage classifies a stalled agent by handing an external LLM CLI
// a tail of its recent log and lexically parsing a one-word verdict (spec
// §4.I). Any failure mode — missing logs, no CLI, timeout, non-zero exit —
// defaults to the safe verdict, extend.
package triage

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Verdict is the closed set of triage classifications (spec §4.I).
type Verdict string

const (
	VerdictRetry     Verdict = "retry"
	VerdictTerminate Verdict = "terminate"
	VerdictExtend    Verdict = "extend"
)

// Timeout bounds the triage subprocess (spec §4.I, §7 cancellation table).
const Timeout = 30 * time.Second

// TailLines is how much of the agent's most recent log is included in the
// triage prompt.
const TailLines = 50

// Classifier invokes the external LLM CLI and classifies its response.
type Classifier struct {
	command string
	args    []string
}

// New returns a Classifier that shells command with args, appending the
// composed prompt as a final argument.
func New(command string, args []string) *Classifier {
	return &Classifier{command: command, args: args}
}

// Request is the input to a triage classification.
type Request struct {
	AgentName    string
	LastActivity time.Time
	LogTail      string
}

// ComposePrompt builds the triage prompt from a request, per spec §4.I:
// agent name, last-activity timestamp, and the log tail.
func ComposePrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent %s has not shown activity since %s.\n", req.AgentName, req.LastActivity.UTC().Format(time.RFC3339))
	b.WriteString("Recent log output:\n")
	b.WriteString(req.LogTail)
	b.WriteString("\n\nRespond with exactly one word: retry, terminate, or extend.\n")
	return b.String()
}

// Classify runs the external CLI with Timeout and returns a verdict.
// Any error classifying defaults to extend, the safe option (spec §4.I).
func (c *Classifier) Classify(ctx context.Context, req Request) Verdict {
	if c == nil || c.command == "" {
		return VerdictExtend
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	prompt := ComposePrompt(req)
	args := append(append([]string{}, c.args...), prompt)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return VerdictExtend
	}

	return classifyLexically(stdout.String())
}

// ResolveConflict asks the external CLI to synthesize a resolution for one
// conflicted file's content, for the merge resolver's reimagine tier (spec
// §4.G tier 3). Satisfies internal/merge.Triager. Any failure — missing CLI,
// timeout, empty response — reports ok=false so the caller treats the file
// as unresolved and falls through to manual escalation.
func (c *Classifier) ResolveConflict(ctx context.Context, filePath, conflictedContent string) (string, bool) {
	if c == nil || c.command == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	prompt := composeResolvePrompt(filePath, conflictedContent)
	args := append(append([]string{}, c.args...), prompt)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}

	resolved := stdout.String()
	if strings.TrimSpace(resolved) == "" {
		return "", false
	}
	return resolved, true
}

// composeResolvePrompt builds the reimagine-tier prompt: the conflicted
// file's path and its raw conflict-marker content, asking for the full
// resolved file body with no markers or commentary.
func composeResolvePrompt(filePath, conflictedContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File %s has unresolved git merge conflict markers.\n", filePath)
	b.WriteString("Conflicted content:\n")
	b.WriteString(conflictedContent)
	b.WriteString("\n\nRespond with the complete resolved file content only, no conflict markers, no commentary.\n")
	return b.String()
}

// classifyLexically implements spec §4.I's purely lexical classification:
// "retry"/"recoverable" -> retry; "terminate"/"fatal"/"failed" -> terminate;
// otherwise extend.
func classifyLexically(response string) Verdict {
	lower := strings.ToLower(response)
	switch {
	case strings.Contains(lower, "retry"), strings.Contains(lower, "recoverable"):
		return VerdictRetry
	case strings.Contains(lower, "terminate"), strings.Contains(lower, "fatal"), strings.Contains(lower, "failed"):
		return VerdictTerminate
	default:
		return VerdictExtend
	}
}

// TailOf returns the last n lines of content, or the whole content if it
// has fewer than n lines.
func TailOf(content string, n int) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
