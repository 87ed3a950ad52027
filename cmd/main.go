package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/soilreport/internal/types"
	"github.com/xhad/soilreport/pkg/analyzer"
	"github.com/xhad/soilreport/pkg/catalog"
	cfgPkg "github.com/xhad/soilreport/pkg/config"
	"github.com/xhad/soilreport/pkg/extractor"
	"github.com/xhad/soilreport/pkg/llm"
	"github.com/xhad/soilreport/pkg/store"
	"github.com/xhad/soilreport/server"
)

type options struct {
	ConfigPath string
	EnvPath    string
	File       string
	Serve      bool
	Debug      bool
}

func main() {
	opts := parseFlags()
	setupLogging(opts.Debug)

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("soilreport failed")
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&opts.EnvPath, "env", ".env", "Path to .env file")
	flag.StringVar(&opts.File, "file", "", "Soil report PDF to analyze")
	flag.BoolVar(&opts.Serve, "serve", false, "Run the HTTP server instead of the terminal loop")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	return opts
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func run(opts options) error {
	if err := cfgPkg.LoadEnvFile(opts.EnvPath); err != nil {
		return err
	}

	cfg, err := cfgPkg.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load product catalog: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:             cfg.LLM.Provider,
		Model:                cfg.LLM.Model,
		BaseURL:              cfg.LLM.BaseURL,
		APIKey:               cfg.LLM.APIKey,
		MaxTokens:            cfg.LLM.MaxTokens,
		SummaryTemperature:   cfg.LLM.SummaryTemperature,
		AnswerTemperature:    cfg.LLM.AnswerTemperature,
		RecommendTemperature: cfg.LLM.RecommendTemperature,
		Timeout:              cfg.LLM.Timeout,
		RateLimit:            cfg.LLM.RateLimit,
	}, products)
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	pdfExtractor := extractor.NewWithConfig(extractor.Config{
		ColumnGap:    cfg.Extractor.ColumnGap,
		MinTableRows: cfg.Extractor.MinTableRows,
	})

	service := analyzer.New(pdfExtractor, chatEngine, sessions)

	log.Debug().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Int("products", products.Len()).
		Msg("Initialized")

	if opts.Serve {
		srv := server.New(server.Config{
			MaxUploadMB: cfg.Server.MaxUploadMB,
			Streaming:   cfg.UI.Streaming,
			Theme:       cfg.UI.Theme,
			SessionTTL:  cfg.Server.SessionTTL,
		}, service)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}

	return interactive(ctx, service, opts.File, cfg.UI.Streaming)
}

func newSessionStore(ctx context.Context, cfg *cfgPkg.Config) (types.SessionStore, error) {
	if cfg.Database.URL == "" {
		return store.NewMemoryStore(cfg.Server.SessionTTL), nil
	}

	sessions, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		TTL:        cfg.Server.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %v", err)
	}
	return sessions, nil
}

// interactive runs the terminal loop: free text is a question, "recommend"
// asks for products, "load <path>" analyzes another report and "exit" quits.
func interactive(ctx context.Context, service *analyzer.Service, file string, streaming bool) error {
	sessionID := uuid.NewString()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	load := func(path string) {
		data, err := os.ReadFile(path)
		if err != nil {
			color.Red("Error reading %s: %v\n", path, err)
			return
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			color.Red("Only .pdf files are accepted.\n")
			return
		}

		spinner := getSpinner("Processing soil report...")
		summary, err := service.Upload(ctx, sessionID, filepath.Base(path), data)
		spinner.Finish()
		if err != nil {
			printError(err)
			return
		}
		color.Green("\nSoil Report Summary\n")
		fmt.Println(summary)
	}

	if file != "" {
		load(file)
	}

	color.Cyan("\nAsk about your soil report. Commands: recommend, load <path>, exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case strings.EqualFold(input, "exit"):
			return nil
		case strings.HasPrefix(strings.ToLower(input), "load "):
			load(strings.TrimSpace(input[len("load "):]))
			continue
		}

		spinner := getSpinner("Generating response...")
		var stream types.StreamFunc
		started := false
		if streaming {
			stream = func(chunk string) {
				if !started {
					spinner.Finish()
					assistantPrompt("Assistant: ")
					started = true
				}
				assistantPrompt("%s", chunk)
			}
		}

		var reply string
		var err error
		if strings.EqualFold(input, "recommend") {
			reply, err = service.Recommend(ctx, sessionID, stream)
		} else {
			reply, err = service.Ask(ctx, sessionID, input, stream)
		}
		spinner.Finish()

		if err != nil {
			if started {
				fmt.Println()
			}
			printError(err)
			continue
		}
		if started {
			fmt.Println()
			continue
		}
		assistantPrompt("Assistant: %s\n", reply)
	}

	return scanner.Err()
}

func printError(err error) {
	switch analyzer.KindOf(err) {
	case analyzer.KindInput, analyzer.KindNoReport:
		color.Yellow("%s\n", err.Error())
	default:
		color.Red("%s\n", err.Error())
	}
}
