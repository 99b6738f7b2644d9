package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	ai "github.com/spiritledsoftware/ai"
	"github.com/spiritledsoftware/ai/internal/config"
	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/internal/tools"
)

var (
	chatEndpoint   string
	chatID         string
	chatProtocol   string
	chatRoundtrips int
	chatDir        string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Chat with a streaming endpoint",
	Long: `Chat with a streaming endpoint. With a message argument the reply is
printed once and the command exits; without one an interactive session
starts.

Examples:
  aichat chat "What is the capital of France?"
  aichat chat --endpoint http://localhost:8080/chat
  aichat chat --max-roundtrips 3`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatEndpoint, "endpoint", "e", "", "Chat API endpoint URL")
	chatCmd.Flags().StringVar(&chatID, "chat-id", "", "Conversation id")
	chatCmd.Flags().StringVar(&chatProtocol, "protocol", "", "Stream protocol (data|text)")
	chatCmd.Flags().IntVar(&chatRoundtrips, "max-roundtrips", -1, "Max automatic tool roundtrips")
	chatCmd.Flags().StringVar(&chatDir, "directory", "", "Working directory")
}

func runChat(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(chatDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	applyChatFlags(cfg)
	if cfg.Endpoint == "" {
		return fmt.Errorf("no endpoint configured; pass --endpoint or set AICHAT_ENDPOINT")
	}
	if cfg.Log.Level != "" && !cmd.Flags().Changed("log-level") {
		logging.Init(logging.Config{Level: logging.ParseLevel(cfg.Log.Level), Pretty: cfg.Log.Pretty})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, cleanup, err := buildRegistry(ctx, cfg, workDir)
	if err != nil {
		return err
	}
	defer cleanup()

	session := ai.NewChat(sessionOptions(cfg, registry))
	defer session.Close()

	printer := newStreamPrinter(os.Stdout)
	unsubscribe := session.SubscribeAll(printer.observe)
	defer unsubscribe()

	if len(args) > 0 {
		return send(ctx, session, printer, strings.Join(args, " "))
	}
	return repl(ctx, session, printer)
}

func applyChatFlags(cfg *config.Config) {
	if chatEndpoint != "" {
		cfg.Endpoint = chatEndpoint
	}
	if chatID != "" {
		cfg.ChatID = chatID
	}
	if chatProtocol != "" {
		cfg.Protocol = chatProtocol
	}
	if chatRoundtrips >= 0 {
		cfg.MaxToolRoundtrips = chatRoundtrips
	}
}

// buildRegistry assembles the tool registry from config: built-in tools
// unless disabled, plus every configured MCP server.
func buildRegistry(ctx context.Context, cfg *config.Config, workDir string) (*tools.Registry, func(), error) {
	registry := tools.NewRegistry()

	enabled := func(id string) bool {
		if cfg.Tools == nil {
			return true
		}
		v, ok := cfg.Tools[id]
		return !ok || v
	}
	if enabled("webfetch") {
		registry.Register(tools.NewWebFetch(nil))
	}
	if enabled("glob") {
		root := cfg.WorkDir
		if root == "" {
			root = workDir
		}
		registry.Register(tools.NewGlob(root))
	}
	if enabled("time") {
		registry.Register(tools.NewTime())
	}

	var servers []*tools.MCPServer
	cleanup := func() {
		for _, s := range servers {
			if err := s.Close(); err != nil {
				logging.Warn().Err(err).Msg("mcp server shutdown")
			}
		}
	}

	for name, mcpCfg := range cfg.MCP {
		srv, err := tools.ConnectMCP(ctx, tools.MCPConfig{
			Command:       mcpCfg.Command,
			Args:          mcpCfg.Args,
			Env:           mcpCfg.Env,
			ClientName:    "aichat",
			ClientVersion: Version,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		servers = append(servers, srv)
		srv.RegisterAll(registry)
	}

	return registry, cleanup, nil
}

func sessionOptions(cfg *config.Config, registry *tools.Registry) ai.Options {
	opts := ai.Options{
		Endpoint:               cfg.Endpoint,
		ChatID:                 cfg.ChatID,
		Headers:                cfg.Headers,
		Body:                   cfg.Body,
		SendExtraMessageFields: cfg.SendExtraMessageFields,
		MaxToolRoundtrips:      cfg.MaxToolRoundtrips,
		OnToolCall:             registry.Handler(context.Background()),
	}
	if cfg.Protocol == "text" {
		opts.Protocol = ai.ProtocolText
	}
	if cfg.PersistHistory {
		opts.Store = ai.NewFileStore(config.GetPaths().HistoryPath())
	}
	return opts
}

func send(ctx context.Context, session *ai.Chat, printer *streamPrinter, message string) error {
	printer.reset()
	err := session.Append(ctx, ai.Message{Role: ai.RoleUser, Content: message})
	printer.finishTurn()
	return err
}

func repl(ctx context.Context, session *ai.Chat, printer *streamPrinter) error {
	fmt.Println("aichat interactive session. Type /quit to exit, /reload to regenerate.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case line == "/reload":
			printer.reset()
			if err := session.Reload(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			printer.finishTurn()
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(os.Stderr, "unknown command:", line)
		default:
			if err := send(ctx, session, printer, line); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}
