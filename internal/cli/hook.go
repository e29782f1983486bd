package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/overlay"
	"github.com/legio/legio/internal/store"
)

// The hook* constants are the closed set of lifecycle points the external
// agent runtime invokes `legio hook` at (spec §6 "Hook protocol").
const (
	hookSessionStart     = "SessionStart"
	hookUserPromptSubmit = "UserPromptSubmit"
	hookPreToolUse       = "PreToolUse"
	hookPostToolUse      = "PostToolUse"
	hookStop             = "Stop"
	hookPreCompact       = "PreCompact"
)

// hookPayload is the JSON the runtime writes to stdin. Fields beyond
// ToolName/ToolInput are read defensively; an unrecognized shape still
// yields an allow decision rather than an error (spec §7: hook commands
// must always exit 0 unless they explicitly block a tool).
type hookPayload struct {
	HookEvent     string          `json:"hook_event_name"`
	ToolName      string          `json:"tool_name"`
	ToolInput     json.RawMessage `json:"tool_input"`
	Progress      string          `json:"progress"`
	FilesModified []string        `json:"files_modified"`
	PendingWork   string          `json:"pending_work"`
}

type bashToolInput struct {
	Command string `json:"command"`
}

// hookDecision is written to stdout for the runtime to parse.
type hookDecision struct {
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

var hookCmd = &cobra.Command{
	Use:     "hook",
	GroupID: GroupOps,
	Short:   "Internal: invoked by the agent runtime at lifecycle hook points",
	Hidden:  true,
	RunE:    runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

// dangerousBashPatterns is the PreToolUse deny-list (spec §6 supplement):
// destructive filesystem wipes and git operations that would blow away the
// canonical branch's history.
var dangerousBashPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`git\s+push\s+.*--force`),
	regexp.MustCompile(`git\s+branch\s+-D\s+(main|master)\b`),
}

func runHook(cmd *cobra.Command, args []string) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		// Hook commands never fail the runtime; log to stderr and allow.
		fmt.Fprintln(os.Stderr, "legio hook: reading stdin:", err)
		return nil
	}

	var payload hookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		fmt.Fprintln(os.Stderr, "legio hook: parsing payload:", err)
		return nil
	}

	if payload.HookEvent == hookPreToolUse && payload.ToolName == "Bash" {
		var bash bashToolInput
		_ = json.Unmarshal(payload.ToolInput, &bash)
		if reason, blocked := blockedBashCommand(bash.Command); blocked {
			return json.NewEncoder(os.Stdout).Encode(hookDecision{Decision: "block", Reason: reason})
		}
	}

	if payload.HookEvent == hookPreCompact {
		if err := saveCompactionCheckpoint(payload); err != nil {
			// Checkpointing is best-effort: a failed save must not block
			// compaction from proceeding (spec §7).
			fmt.Fprintln(os.Stderr, "legio hook: saving checkpoint:", err)
		}
	}

	return nil
}

// saveCompactionCheckpoint writes the agent's in-flight progress so
// `legio prime --compact` can resume it after context compaction (spec
// §4.O). The agent is identified by the current working directory, which
// the runtime invokes hooks from inside: each agent's worktree lives at
// .legio/worktrees/{agentName}.
func saveCompactionCheckpoint(payload hookPayload) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	agentName, ok := agentNameFromWorktreeCwd(root, cwd)
	if !ok {
		return fmt.Errorf("could not determine agent from cwd %s", cwd)
	}

	branch := ""
	if sessions, err := store.OpenSessionStore(storeDirFor(root)); err == nil {
		defer sessions.Close()
		if sess, err := sessions.GetByName(context.Background(), agentName); err == nil {
			branch = sess.Branch
		}
	}

	return overlay.SaveCheckpoint(root, agentName, overlay.Checkpoint{
		Progress:      payload.Progress,
		FilesModified: payload.FilesModified,
		PendingWork:   payload.PendingWork,
		Branch:        branch,
	})
}

// agentNameFromWorktreeCwd extracts the agent name from a worktree path of
// the form {root}/.legio/worktrees/{agentName}[/...].
func agentNameFromWorktreeCwd(root, cwd string) (string, bool) {
	rel, err := filepath.Rel(filepath.Join(root, ".legio", "worktrees"), cwd)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 0 || parts[0] == "" || parts[0] == "." {
		return "", false
	}
	return parts[0], true
}

func blockedBashCommand(command string) (string, bool) {
	for _, p := range dangerousBashPatterns {
		if p.MatchString(command) {
			return fmt.Sprintf("command matches denied pattern: %s", p.String()), true
		}
	}
	return "", false
}
