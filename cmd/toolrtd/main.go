// toolrtd wires the Policy-Gated Tool Execution Runtime's components into
// one process: Path Sandbox, Approval Manager, Secrets Vault, Tool
// Catalogue, Dispatcher, Remote Device Registry/Router, Skill Runtime,
// Soul Engine, and Learning Store. The LLM client, prompt assembly, and
// interactive CLI/TUI are external collaborators (out of scope here, per
// the runtime's own boundary): this binary exposes tool dispatch as
// newline-delimited JSON over stdio and accepts remote device connections
// over a websocket listener, leaving whatever drives the stdio stream to
// a separate process.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"toolrt/internal/approval"
	"toolrt/internal/dispatcher"
	"toolrt/internal/learning"
	"toolrt/internal/logging"
	"toolrt/internal/remote"
	"toolrt/internal/sandbox"
	"toolrt/internal/secrets"
	"toolrt/internal/skills"
	"toolrt/internal/skillvm"
	"toolrt/internal/soul"
	"toolrt/internal/tools"
	"toolrt/internal/toolregistry"
)

func main() {
	logger := logging.Component("toolrtd")

	dataRoot := envOr("TOOLRT_DATA_DIR", filepath.Join(os.Getenv("HOME"), ".toolrt"))
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		logger.Fatal().Err(err).Str("data_root", dataRoot).Msg("cannot create data directory")
	}

	rt, err := build(dataRoot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble runtime")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	rt.soulEngine.Start(ctx)
	if rt.listener != nil {
		go func() {
			if err := rt.listener.Serve(); err != nil {
				logger.Warn().Err(err).Msg("remote listener stopped")
			}
		}()
	}

	serveStdio(ctx, rt.dispatcher, logger)

	logger.Info().Msg("stopping runtime")
	rt.soulEngine.Stop()
	if rt.listener != nil {
		_ = rt.listener.Close()
	}
	if rt.watcher != nil {
		_ = rt.watcher.Close()
	}
}

// runtime is every component serveStdio and the signal handler need a
// handle on.
type runtime struct {
	dispatcher *dispatcher.Dispatcher
	soulEngine *soul.Engine
	listener   *remote.Listener
	watcher    *soul.FileWatcher
}

func build(dataRoot string, logger zerolog.Logger) (*runtime, error) {
	home, _ := os.UserHomeDir()

	sbox, err := sandbox.New(sandbox.Config{
		AllowRoots:   []string{home, os.TempDir()},
		BlockedRoots: []string{filepath.Join(home, ".ssh"), filepath.Join(home, ".gnupg")},
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	vault := secrets.New(secrets.Config{
		EnvPrefix: "TOOLRT_SECRET_",
		FileDir:   filepath.Join(dataRoot, "secrets"),
	})
	_ = vault // resolved on demand by tools that need a named credential; no built-in tool currently requires one at startup.

	approvalMgr := approval.NewManager(
		approval.NewInteractiveApprover(2*time.Minute, true),
		approval.DefaultConfig(),
	)

	catalogue, err := toolregistry.NewRegistry(toolregistry.Config{
		WorkingDir:        home,
		Approver:          approvalMgr,
		Policy:            tools.DefaultToolPolicyConfig(),
		Logger:            logging.Component("toolregistry"),
		WebAllowedDomains: splitNonEmpty(os.Getenv("TOOLRT_WEB_ALLOWED_DOMAINS"), ","),
		WebRequestsPerMin: envInt("TOOLRT_WEB_REQUESTS_PER_MIN", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("toolregistry: %w", err)
	}

	devices := remote.NewRegistry()
	router := remote.NewRouter(devices)

	var listener *remote.Listener
	if addr := os.Getenv("TOOLRT_DEVICE_LISTEN_ADDR"); addr != "" {
		listener = remote.NewListener(addr, devices)
	}

	skillsRuntime, err := buildSkillRuntime()
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}

	store, err := learning.Open(filepath.Join(dataRoot, "learning"))
	if err != nil {
		return nil, fmt.Errorf("learning: %w", err)
	}
	promoter := learning.NewPromotionEngine(store, filepath.Join(dataRoot, "learning", "bootstrap"))
	observer := &learningObserver{store: store}

	disp, err := dispatcher.New(dispatcher.Config{
		Catalogue: catalogue,
		Devices:   devices,
		Router:    router,
		Skills:    skillsRuntime,
		Observer:  observer,
		Sandbox:   sbox,
		Logger:    logging.Component("dispatcher"),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	var watcher *soul.FileWatcher
	proactive := soul.NewProactiveRegistry()
	scheduler := soul.NewScheduler()
	if err := soul.RegisterBuiltinActions(proactive, soul.BuiltinActionsConfig{
		TempRoots:       []string{os.TempDir()},
		StateMarkerPath: filepath.Join(dataRoot, "soul", "last_sync"),
		PromoteCycle: func(ctx context.Context) error {
			_, err := promoter.RunPromotionCycle()
			return err
		},
	}); err != nil {
		return nil, fmt.Errorf("soul: register builtin actions: %w", err)
	}

	engine := soul.NewEngine(soul.Config{}, proactive, scheduler, watcher)

	return &runtime{dispatcher: disp, soulEngine: engine, listener: listener, watcher: watcher}, nil
}

func buildSkillRuntime() (*skills.Runtime, error) {
	root, err := skills.ResolveSkillsRoot()
	if err != nil {
		return nil, err
	}
	lib, err := skills.Load(root)
	if err != nil {
		return nil, err
	}

	runner, err := skills.NewScriptRunner(skillvm.Limits{}, nil, 128)
	if err != nil {
		return nil, err
	}
	return skills.NewRuntime(lib, nil, runner, nil), nil
}

// learningObserver records every failed tool call as a learning-store
// error entry, without the dispatcher importing the learning package
// directly.
type learningObserver struct {
	store *learning.Store
}

func (o *learningObserver) ObserveToolCall(call tools.ToolCall, result tools.ToolResult, dur time.Duration) {
	if result.Success {
		return
	}
	_, _ = o.store.RecordError(
		call.Name,
		fmt.Sprintf("%s call failed", call.Name),
		result.Message,
		learning.PriorityMedium,
		[]string{call.Name},
	)
}

// serveStdio reads newline-delimited ToolCall JSON from stdin and writes
// the corresponding ToolResult JSON, one per line, to stdout. It returns
// when stdin is closed or ctx is cancelled.
func serveStdio(ctx context.Context, disp *dispatcher.Dispatcher, logger zerolog.Logger) {
	reader := bufio.NewReader(os.Stdin)
	type wireCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			var wc wireCall
			if err := json.Unmarshal([]byte(line), &wc); err != nil {
				logger.Warn().Err(err).Msg("malformed tool call")
				continue
			}
			result := disp.Dispatch(ctx, tools.ToolCall{Name: wc.Name, Arguments: wc.Arguments})
			enc := json.NewEncoder(os.Stdout)
			if encErr := enc.Encode(result); encErr != nil {
				logger.Warn().Err(encErr).Msg("failed to encode tool result")
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn().Err(err).Msg("stdin read error")
			}
			return
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitNonEmpty splits v on sep and drops blank/whitespace-only segments,
// returning nil (not an empty slice) when nothing remains so callers'
// "empty means unconfigured" checks keep working.
func splitNonEmpty(v, sep string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
