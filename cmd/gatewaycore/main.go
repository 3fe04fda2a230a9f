// Command gatewaycore is a minimal demo host for the subagent orchestration
// core: it loads a backend config, runs one CLI backend invocation end to
// end (queue -> executor -> parser -> transcript), and can reserve a
// subagent slot against a durable registry and print the admission
// decision.
//
// Grounded on cmd/redeven-agent/main.go: subcommand dispatch
// via os.Args[1], flag.NewFlagSet per subcommand, and the
// newLogger(format, level) json/text slog setup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openclaw/subagent-core/internal/backend"
	"github.com/openclaw/subagent-core/internal/clirunner"
	"github.com/openclaw/subagent-core/internal/cliparse"
	"github.com/openclaw/subagent-core/internal/coretypes"
	"github.com/openclaw/subagent-core/internal/eventbus"
	"github.com/openclaw/subagent-core/internal/gatewayrpc"
	"github.com/openclaw/subagent-core/internal/interaction"
	"github.com/openclaw/subagent-core/internal/queue"
	"github.com/openclaw/subagent-core/internal/subagent"
	"github.com/openclaw/subagent-core/internal/transcript"
	"github.com/openclaw/subagent-core/internal/typing"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "spawn":
		spawnCmd(os.Args[2:])
	case "version":
		fmt.Printf("gatewaycore %s (%s)\n", Version, Commit)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `gatewaycore

Usage:
  gatewaycore run [flags]     Run one CLI backend invocation end to end.
  gatewaycore spawn [flags]   Reserve a subagent slot and print the decision.
  gatewaycore version

`)
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return slog.New(h), nil
}

func loadBackendConfig(path, aliasesPath string) (backend.Config, error) {
	var cfg backend.Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read backend config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse backend config: %w", err)
	}
	if err := backend.LoadAliasesYAML(&cfg, aliasesPath); err != nil {
		return cfg, fmt.Errorf("load backend aliases: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid backend config: %w", err)
	}
	return cfg, nil
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "backends.json", "Backend config path")
	aliasesPath := fs.String("aliases", "", "Optional YAML model-alias overlay path")
	provider := fs.String("provider", "", "Backend id to invoke")
	prompt := fs.String("prompt", "", "Prompt text")
	sessionKey := fs.String("session-key", "demo-session", "Session key")
	transcriptPath := fs.String("transcript", "transcript.jsonl", "Transcript file path")
	indexPath := fs.String("index", "", "Optional sqlite search index path (disabled if empty)")
	logFormat := fs.String("log-format", "json", "Log format: json|text")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	timeout := fs.Duration("timeout", 60*time.Second, "Run timeout")
	_ = fs.Parse(args)

	log, err := newLogger(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := loadBackendConfig(*cfgPath, *aliasesPath)
	if err != nil {
		log.Error("load backend config", "error", err)
		os.Exit(1)
	}

	resolver := backend.NewResolver(cfg)
	backendID, spec, err := resolver.Resolve(*provider)
	if err != nil {
		log.Error("resolve backend", "error", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	bus.Subscribe("sessionTranscriptUpdate", func(ev eventbus.Event) {
		log.Debug("transcript updated", "payload", ev.Payload)
	})

	q := queue.New()
	exec := clirunner.New(log)
	tw := transcript.New(log, bus)
	if *indexPath != "" {
		idx, err := transcript.OpenIndex(*indexPath)
		if err != nil {
			log.Error("open transcript index", "error", err)
			os.Exit(1)
		}
		defer idx.Close()
		tw.SetIndex(idx)
	}
	tw.EnsureHeader(*transcriptPath, *sessionKey, "")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	req := coretypes.RunRequest{
		SessionKey: *sessionKey,
		Prompt:     *prompt,
		RunID:      *sessionKey + "-run",
		TimeoutMs:  timeout.Milliseconds(),
	}

	resultCh := q.SubmitRun(ctx, backendID, spec, req, func(ctx context.Context) error {
		argv := clirunner.BuildArgv(spec, req, clirunner.BuildArgvOptions{IsFirstCallInSession: true, ModelID: backend.NormalizeModel(spec, req.Model)})
		res, err := exec.Run(ctx, clirunner.ExecInput{
			Argv:         argv,
			Cwd:          req.WorkspaceDir,
			StdinPayload: clirunner.BuildStdinPayload(spec, req),
			TimeoutMs:    req.TimeoutMs,
			Sandbox:      req.SandboxCtx,
			SandboxMode:  spec.SandboxMode,
		})
		if err != nil {
			return err
		}
		parsed, ok := cliparse.Parse(spec.Output, res.Stdout, spec.EffectiveSessionIdFields())
		if !ok || parsed == nil {
			log.Warn("parse failed, treating stdout as raw text")
			parsed = &coretypes.ParsedOutput{Text: res.Stdout}
		}
		tw.AppendRun(*transcriptPath, parsed.ToolUses, parsed.ToolResults, parsed.Text, parsed.Usage)
		fmt.Println(parsed.Text)
		return nil
	})

	if err := <-resultCh; err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func spawnCmd(args []string) {
	fs := flag.NewFlagSet("spawn", flag.ExitOnError)
	sessionKey := fs.String("session-key", "demo-session", "Requester session key")
	registryPath := fs.String("registry", "subagents.json", "Durable registry file path")
	logFormat := fs.String("log-format", "json", "Log format: json|text")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	_ = fs.Parse(args)

	log, err := newLogger(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bus := eventbus.New()
	bus.Subscribe(subagent.TopicSpawned, func(ev eventbus.Event) {
		log.Info("subagent spawned", "context", ev.Payload)
	})
	bus.Subscribe(subagent.TopicCompleted, func(ev eventbus.Event) {
		log.Info("subagent completed", "result", ev.Payload)
	})

	registry := subagent.NewRegistry(*registryPath, log)
	mgr := subagent.NewManager(registry, bus, log)
	if err := mgr.LoadFromRegistry(); err != nil {
		log.Error("load registry", "error", err)
		os.Exit(1)
	}

	res := mgr.ReserveSlot(context.Background(), *sessionKey)
	if !res.Allowed {
		fmt.Printf("denied: reason=%s suggestions=%v\n", res.Reason, res.Suggestions)
		return
	}
	fmt.Printf("reserved: reserveId=%s\n", res.ReserveID)

	interactions := interaction.New()
	defer interactions.Shutdown()

	typingCtl := typing.New(typing.Config{
		OnReplyStart: func() { log.Debug("typing: onReplyStart") },
	})
	typingCtl.EnsureStart()

	_ = gatewayrpc.SubagentToolSchemas()
}
