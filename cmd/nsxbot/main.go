package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	chatbot "github.com/neuralmind-ai/nsx-chatbot"
	"github.com/neuralmind-ai/nsx-chatbot/api"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

var (
	// Global flags
	configPath string
	userID     string
	chatbotID  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nsxbot",
	Short: "Retrieval-grounded chatbot over NSX document indexes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, or MCP over stdio with --mcp",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the memory and settings of a user",
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "cli", "user id")
	rootCmd.PersistentFlags().StringVar(&chatbotID, "chatbot", "nsxbot", "chatbot instance id")

	serveCmd.Flags().String("addr", "", "listen address, overrides server.http_addr")
	serveCmd.Flags().Bool("mcp", false, "serve MCP over stdio instead of HTTP")

	askCmd.Flags().StringP("index", "i", "", "domain index (default: the user's last index)")
	askCmd.Flags().Bool("debug", false, "print the reasoning trace")
	askCmd.Flags().Bool("bm25", false, "lexical search only")
	askCmd.Flags().Bool("no-memory", false, "ignore conversation memory")
	askCmd.Flags().Bool("no-faq", false, "skip the FAQ")
	askCmd.Flags().Bool("sense", false, "answer lookups with the multi-document QA service")
	askCmd.Flags().BoolP("verbose", "v", false, "log every reasoning step")

	rootCmd.AddCommand(serveCmd, askCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := chatbot.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Errorf("close engine: %v", err)
		}
	}()

	if useMCP, _ := cmd.Flags().GetBool("mcp"); useMCP {
		return server.ServeStdio(chatbot.NewMCPServer("nsxbot", engine))
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.HTTPAddr
	}
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(engine, cfg.Server.MetricsPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := chatbot.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	index, _ := cmd.Flags().GetString("index")
	if index == "" {
		if index, err = engine.LastIndex(ctx, userID, chatbotID); err != nil {
			return err
		}
	}
	if index == "" {
		return errors.New("no index: pass --index")
	}

	greetings, err := engine.Greeting(ctx, userID, chatbotID, index)
	if err != nil {
		return err
	}
	for _, g := range greetings {
		fmt.Fprintln(cmd.OutOrStdout(), g)
	}

	flag := func(name string) bool { v, _ := cmd.Flags().GetBool(name); return v }
	reply, err := engine.Answer(ctx, chatbot.AnswerRequest{
		UserID:    userID,
		ChatbotID: chatbotID,
		Index:     index,
		Message:   strings.Join(args, " "),
		Options: chatbot.Options{
			Verbose:       flag("verbose"),
			ReturnDebug:   flag("debug"),
			BM25Only:      flag("bm25"),
			DisableMemory: flag("no-memory"),
			DisableFAQ:    flag("no-faq"),
			UseSense:      flag("sense"),
		},
	})
	if reply != nil {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	}
	return err
}

func runReset(cmd *cobra.Command, _ []string) error {
	engine, err := chatbot.NewFromConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Reset(cmd.Context(), userID, chatbotID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Memória apagada.")
	return nil
}
