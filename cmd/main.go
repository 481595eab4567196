package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	cfgPkg "github.com/xhad/docchat/pkg/config"
	"github.com/xhad/docchat/server"
)

const usage = `Usage: docchat [serve|chat] [flags] [files...]

Commands:
  serve   start the HTTP and WebSocket server (default)
  chat    index local PDFs or URLs and chat in the terminal
`

// flags shared by every command
type options struct {
	configPath string
	ollamaURL  string
	model      string
	port       int
	stream     bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	command, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, args)
	case "chat":
		err = runChat(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func registerFlags(fset *flag.FlagSet) *options {
	var opts options
	fset.StringVar(&opts.configPath, "config", "", "Path to config file")
	fset.StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama server URL")
	fset.StringVar(&opts.model, "model", "", "LLM model to use")
	fset.IntVar(&opts.port, "port", 0, "HTTP port to listen on")
	fset.BoolVar(&opts.stream, "stream", true, "Enable streaming responses")
	return &opts
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(opts *options) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.ollamaURL != "" {
		if cfg.LLM.Provider == "ollama" {
			cfg.LLM.BaseURL = opts.ollamaURL
		}
		if cfg.Embedder.Provider == "ollama" {
			cfg.Embedder.BaseURL = opts.ollamaURL
		}
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

func runServe(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("serve", flag.ExitOnError)
	opts := registerFlags(fset)
	fset.Parse(args)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Streaming:      opts.stream,
	}, a.service, a.users)

	return srv.ListenAndServe(ctx)
}
