package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"museflow/internal/cli"
	"museflow/internal/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	server := os.Getenv("MUSEFLOW_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	tokenPath := os.Getenv("MUSEFLOW_TOKEN_FILE")
	if tokenPath == "" {
		p, err := cli.DefaultTokenPath()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		tokenPath = p
	}
	tokens := cli.FileTokenStore{Path: tokenPath}

	// MUSEFLOW_TOKEN overrides the saved token.
	token := os.Getenv("MUSEFLOW_TOKEN")
	if token == "" {
		t, err := tokens.Load()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = t
	}

	logger := zap.NewNop()
	if os.Getenv("MUSEFLOW_DEBUG") != "" {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		defer logger.Sync()
	}

	app := &cli.App{
		Client:      client.New(server, client.WithToken(token)),
		Tokens:      tokens,
		In:          os.Stdin,
		Log:         logger,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
