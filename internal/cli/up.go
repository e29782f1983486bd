package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/autopilot"
	"github.com/legio/legio/internal/broadcast"
	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/lock"
	"github.com/legio/legio/internal/logtail"
	"github.com/legio/legio/internal/logx"
	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/merge"
	"github.com/legio/legio/internal/nudge"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/server"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/triage"
	"github.com/legio/legio/internal/watchdog"
	"github.com/legio/legio/internal/worktree"
)

// watchdogKillGrace is not project-configurable in config.yaml; it matches
// the escalation ladder's default. The ladder's top rung comes from the
// watchdog's max_escalation_rung setting.
const (
	watchdogKillGrace = 10 * time.Second
)

var (
	upPort   int
	upHost   string
	upNoOpen bool
	upForce  bool
)

var upCmd = &cobra.Command{
	Use:     "up",
	GroupID: GroupLifecycle,
	Short:   "Start the orchestrator: REST/WS server, broadcaster, autopilot",
	RunE:    runUp,
}

func init() {
	upCmd.Flags().IntVar(&upPort, "port", 0, "HTTP port, overriding config.yaml")
	upCmd.Flags().StringVar(&upHost, "host", "", "HTTP bind host, overriding config.yaml")
	upCmd.Flags().BoolVar(&upNoOpen, "no-open", false, "don't print a browser-open hint")
	upCmd.Flags().BoolVar(&upForce, "force", false, "start even if a lock from a previous run is present")
	rootCmd.AddCommand(upCmd)
}

// orchestratorLockDir holds the process-wide singleton lock guarding `up`,
// adapted from internal/lock's per-agent identity lock to guard the
// orchestrator process itself: one legio project, one live `up`.
func orchestratorLockDir(storeDir string) string {
	return filepath.Join(storeDir, "orchestrator")
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}
	if upPort != 0 {
		cfg.Server.Port = upPort
	}
	if upHost != "" {
		cfg.Server.Host = upHost
	}

	dir := storeDirFor(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	l := lock.New(orchestratorLockDir(dir))
	if upForce {
		_ = l.ForceRelease()
	}
	if err := l.Acquire(fmt.Sprintf("legio-up-%d", os.Getpid())); err != nil {
		return fmt.Errorf("another `legio up` appears to be running (use --force to override): %w", err)
	}
	defer l.Release()

	log, err := logx.New(logx.Options{Level: cfg.Logging.Level})
	if err != nil {
		return err
	}
	defer log.Sync()
	sugar := log.Sugar()

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		return err
	}
	defer mailStore.Close()

	queue, err := store.OpenMergeQueueStore(dir)
	if err != nil {
		return err
	}
	defer queue.Close()

	events, err := store.OpenEventStore(dir)
	if err != nil {
		return err
	}
	defer events.Close()

	tmux := process.New("tmux")

	var ap *autopilot.Autopilot
	if cfg.Autopilot.TickIntervalMs > 0 {
		triager := triage.New(cfg.Models.TriageCommand, cfg.Models.TriageArgs)
		notifier := newMailNotifier(mail.NewRouter(mailStore, sessions))
		resolver := merge.New(queue, root, triager, notifier)
		wt := worktree.New(root, "")
		ap = autopilot.New(mailStore, queue, sessions, resolver, wt, sugar, autopilot.Config{
			TickInterval:           cfg.AutopilotTickInterval(),
			AutoMerge:              cfg.Autopilot.AutoMerge,
			AutoCleanWorktree:      cfg.Autopilot.AutoCleanWorktree,
			CanonicalBranch:        cfg.Worktrees.CanonicalBranch,
			AssignmentStallTimeout: cfg.AssignmentStallTimeout(),
		})
	}

	wd := watchdog.New(watchdog.Config{
		Sessions:       sessions,
		Events:         events,
		Tmux:           tmux,
		Nudger:         nudge.New(tmux, events),
		Classifier:     triage.New(cfg.Models.TriageCommand, cfg.Models.TriageArgs),
		Router:         mail.NewRouter(mailStore, sessions),
		Logs:           logtail.New(root),
		Log:            sugar,
		StaleThreshold: cfg.StaleThreshold(),
		MaxRung:        cfg.Watchdog.MaxEscalationRung,
		KillGrace:      watchdogKillGrace,
	})

	hub := broadcast.New(sessions, mailStore, queue, ap, sugar, cfg.BroadcastInterval())

	publicDir := filepath.Join(root, "public")
	if _, err := os.Stat(publicDir); err != nil {
		publicDir = ""
	}
	srv := server.New(server.Config{StoreDir: dir, ProjectRoot: root, PublicDir: publicDir}, hub, ap, tmux, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go runWatchdogLoop(ctx, wd, cfg.WatchdogTickInterval())
	if ap != nil {
		ap.Start(ctx)
	}

	if err := writeOrchestratorTmuxFile(dir); err != nil {
		sugar.Errorw("writing orchestrator-tmux.json", "error", err)
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("legio orchestrator listening", "addr", addr)
		if !upNoOpen {
			fmt.Printf("legio up: http://%s\n", addr)
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	sugar.Infow("shutting down")
	if ap != nil {
		ap.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runWatchdogLoop(ctx context.Context, wd *watchdog.Watchdog, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wd.Tick(ctx)
		}
	}
}

// orchestratorTmuxInfo is the contents of orchestrator-tmux.json (spec §6
// on-disk layout): the orchestrator's own terminal session, if it is
// running inside one, and when it registered.
type orchestratorTmuxInfo struct {
	TmuxSession  string    `json:"tmuxSession"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func writeOrchestratorTmuxFile(storeDir string) error {
	data, err := json.Marshal(orchestratorTmuxInfo{
		TmuxSession:  os.Getenv("TMUX_PANE"),
		RegisteredAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(storeDir, "orchestrator-tmux.json"), data, 0644)
}
