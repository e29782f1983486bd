// Package overlay manages the per-agent on-disk material the lifecycle
// engine writes at spawn time (spec §4.O): the Markdown instruction file
// placed in an agent's worktree, its identity YAML, and an optional
// checkpoint used to resume after context compaction.
//
// The load/save-with-atomic-write shape generalizes the teacher's
// internal/agent.StateManager[T] (generic JSON state persisted under
// `.runtime/`) into two concrete, spec-shaped documents living under
// `.legio/agents/{name}/` instead: identity.yaml (YAML, since the spec
// names it explicitly) and checkpoint.json (JSON, matching the
// generic's original encoding).
package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/util"
)

// agentsDir is the directory under the project's .legio root holding
// every agent's identity/checkpoint material (spec §6 on-disk layout).
const agentsDir = ".legio/agents"

// OverlayFileName is the Markdown instruction file written into an
// agent's worktree root, narrowing its operating context for the
// external LLM binary to read on startup (spec §4.L "write the per-agent
// overlay... to the worktree's instruction file").
const OverlayFileName = "AGENTS.md"

// AgentDir returns the directory holding agentName's identity and
// checkpoint files under projectRoot.
func AgentDir(projectRoot, agentName string) string {
	return filepath.Join(projectRoot, agentsDir, agentName)
}

// Identity is an agent's persistent profile (spec §3 "Overlay &
// identity"): capability, accumulated expertise, and a short recent-task
// history, read back by future spawns of the same agent name.
type Identity struct {
	AgentName         string    `yaml:"agentName"`
	Capability        string    `yaml:"capability"`
	ExpertiseDomains  []string  `yaml:"expertiseDomains,omitempty"`
	RecentTasks       []string  `yaml:"recentTasks,omitempty"`
	SessionsCompleted int       `yaml:"sessionsCompleted"`
	UpdatedAt         time.Time `yaml:"updatedAt"`
}

// maxRecentTasks bounds the recent-task history kept in an identity file.
const maxRecentTasks = 10

// identityPath returns the identity.yaml path for agentName under
// projectRoot.
func identityPath(projectRoot, agentName string) string {
	return filepath.Join(AgentDir(projectRoot, agentName), "identity.yaml")
}

// LoadIdentity reads an agent's identity file. A missing file is not an
// error: it yields a fresh identity for capability, matching spec §7's
// "stores never throw on file missing" rule.
func LoadIdentity(projectRoot, agentName string, capability session.Capability) (Identity, error) {
	data, err := os.ReadFile(identityPath(projectRoot, agentName))
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{AgentName: agentName, Capability: string(capability)}, nil
		}
		return Identity{}, fmt.Errorf("reading identity for %s: %w", agentName, err)
	}
	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("parsing identity for %s: %w", agentName, err)
	}
	return id, nil
}

// SaveIdentity writes id to disk atomically, creating the agent
// directory if needed.
func SaveIdentity(projectRoot string, id Identity) error {
	dir := AgentDir(projectRoot, id.AgentName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating agent directory for %s: %w", id.AgentName, err)
	}
	id.UpdatedAt = time.Now()
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding identity for %s: %w", id.AgentName, err)
	}
	return util.AtomicWriteFile(identityPath(projectRoot, id.AgentName), data, 0644)
}

// RecordTaskCompletion appends taskID to an identity's recent-task
// history (bounded to maxRecentTasks, oldest dropped first) and
// increments its completed-session count. Called by the lifecycle
// engine when a session reaches a terminal state.
func (id Identity) RecordTaskCompletion(taskID string) Identity {
	id.SessionsCompleted++
	if taskID == "" {
		return id
	}
	id.RecentTasks = append(id.RecentTasks, taskID)
	if len(id.RecentTasks) > maxRecentTasks {
		id.RecentTasks = id.RecentTasks[len(id.RecentTasks)-maxRecentTasks:]
	}
	return id
}

// Checkpoint captures an agent's in-flight progress so a successor
// session (after context compaction) can resume (spec §4.O).
type Checkpoint struct {
	Progress      string    `json:"progress"`
	FilesModified []string  `json:"filesModified"`
	PendingWork   string    `json:"pendingWork"`
	Branch        string    `json:"branch"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func checkpointPath(projectRoot, agentName string) string {
	return filepath.Join(AgentDir(projectRoot, agentName), "checkpoint.json")
}

// LoadCheckpoint reads an agent's checkpoint, if any. A missing file
// yields a zero Checkpoint and no error.
func LoadCheckpoint(projectRoot, agentName string) (Checkpoint, bool, error) {
	data, err := os.ReadFile(checkpointPath(projectRoot, agentName))
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("reading checkpoint for %s: %w", agentName, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parsing checkpoint for %s: %w", agentName, err)
	}
	return cp, true, nil
}

// SaveCheckpoint writes cp to disk atomically.
func SaveCheckpoint(projectRoot, agentName string, cp Checkpoint) error {
	dir := AgentDir(projectRoot, agentName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating agent directory for %s: %w", agentName, err)
	}
	cp.UpdatedAt = time.Now()
	return util.AtomicWriteJSON(checkpointPath(projectRoot, agentName), cp)
}

// ClearCheckpoint removes a completed agent's checkpoint; a missing file
// is not an error.
func ClearCheckpoint(projectRoot, agentName string) error {
	err := os.Remove(checkpointPath(projectRoot, agentName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing checkpoint for %s: %w", agentName, err)
	}
	return nil
}

// Overlay is the per-spawn content written into an agent's worktree
// (spec §4.L "write the per-agent overlay (file scope, activation
// context, task id) to the worktree's instruction file").
type Overlay struct {
	AgentName         string
	Capability        session.Capability
	TaskID            string
	ParentAgentName   string
	Depth             int
	FileScope         []string // paths this agent exclusively owns
	ActivationContext string   // free-form task briefing
	CapabilityDoc     string   // capability instruction template, if any
}

// Render produces the Markdown written to OverlayFileName.
func (o Overlay) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Agent: %s\n\n", o.AgentName)
	fmt.Fprintf(&b, "- Capability: %s\n", o.Capability)
	fmt.Fprintf(&b, "- Task: %s\n", o.TaskID)
	if o.ParentAgentName != "" {
		fmt.Fprintf(&b, "- Parent: %s\n", o.ParentAgentName)
	}
	fmt.Fprintf(&b, "- Depth: %d\n\n", o.Depth)

	if o.CapabilityDoc != "" {
		b.WriteString("## Capability brief\n\n")
		b.WriteString(o.CapabilityDoc)
		b.WriteString("\n\n")
	}

	if len(o.FileScope) > 0 {
		b.WriteString("## File scope\n\n")
		b.WriteString("You have exclusive ownership of:\n\n")
		for _, f := range o.FileScope {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if o.ActivationContext != "" {
		b.WriteString("## Task briefing\n\n")
		b.WriteString(o.ActivationContext)
		b.WriteString("\n")
	}

	return b.String()
}

// Write renders o and writes it to worktreePath/OverlayFileName.
func Write(worktreePath string, o Overlay) error {
	return util.AtomicWriteFile(filepath.Join(worktreePath, OverlayFileName), []byte(o.Render()), 0644)
}

// agentDefsDir holds capability instruction templates (spec §6
// "agent-defs/*.md").
const agentDefsDir = ".legio/agent-defs"

// LoadCapabilityDoc reads the Markdown instruction template for
// capability under projectRoot. A missing template is not an error: it
// yields an empty brief, since not every capability needs one.
func LoadCapabilityDoc(projectRoot string, capability session.Capability) (string, error) {
	path := filepath.Join(projectRoot, agentDefsDir, string(capability)+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading capability doc for %s: %w", capability, err)
	}
	return string(data), nil
}
