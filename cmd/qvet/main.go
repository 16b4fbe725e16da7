package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/conorfennell/qvet/internal/api"
	"github.com/conorfennell/qvet/internal/bank"
	"github.com/conorfennell/qvet/internal/config"
	"github.com/conorfennell/qvet/internal/journal"
	"github.com/conorfennell/qvet/internal/logging"
	"github.com/conorfennell/qvet/internal/resilience"
	"github.com/conorfennell/qvet/internal/review"
	"github.com/conorfennell/qvet/internal/search"
	"github.com/conorfennell/qvet/internal/web"
)

func main() {
	// 1. Define and parse command-line flags. Flag names double as
	// config keys, so --api.base_url overrides api.base_url.
	flags := pflag.NewFlagSet("qvet", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Path to a YAML config file")
	authorID := flags.Int("author-id", 0, "Author ID to attribute imported questions to")
	flags.String("listen", "", "Address for the console HTTP server")
	flags.String("api.base_url", "", "Base URL of the question store API")
	flags.String("journal.path", "", "Path to the local journal database")
	flags.String("bank.cache_dir", "", "Directory for cached question bank clones")
	flags.String("log.level", "", "Log level: debug, info, warn or error")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qvet [flags] [serve | import <source> | journal <reviewer-id>]\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	// 2. Load layered configuration: file, then environment, then flags.
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qvet: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level)

	// 3. Wire the shared store client.
	exec := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		BreakerEnabled: cfg.Retry.BreakerEnabled,
	})
	client := api.New(cfg.API.BaseURL, cfg.API.Timeout, exec)

	command := "serve"
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}

	switch command {
	case "serve":
		err = runServe(cfg, client)
	case "import":
		if flags.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "qvet import: a source directory or git URL is required")
			os.Exit(2)
		}
		err = runImport(cfg, client, flags.Arg(1), *authorID)
	case "journal":
		if flags.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "qvet journal: a reviewer ID is required")
			os.Exit(2)
		}
		err = runJournal(cfg, flags.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "qvet: unknown command %q\n", command)
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func runServe(cfg config.Config, client *api.Client) error {
	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	searcher := search.NewSearcher(client, client)
	engine := review.NewEngine(client, db)
	server := web.NewServer(searcher, engine, client)

	slog.Info("console listening", "addr", cfg.Listen, "store", cfg.API.BaseURL)
	return http.ListenAndServe(cfg.Listen, server)
}

func runImport(cfg config.Config, client *api.Client, source string, authorID int) error {
	if authorID == 0 {
		return fmt.Errorf("--author-id is required for import")
	}
	importer := bank.NewImporter(client, authorID)
	report, err := importer.ImportSource(context.Background(), source, cfg.Bank.CacheDir)
	if err != nil {
		return err
	}

	fmt.Printf("Parsed %d questions: %d created, %d duplicates, %d invalid, %d failed.\n",
		report.Parsed, report.Created, report.Duplicates, report.Invalid, report.Failed)
	if len(report.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range report.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}

func runJournal(cfg config.Config, reviewerArg string) error {
	reviewerID, err := strconv.Atoi(reviewerArg)
	if err != nil {
		return fmt.Errorf("invalid reviewer ID %q", reviewerArg)
	}
	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	entries, err := db.Recent(context.Background(), reviewerID, 50)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No journal entries for this reviewer.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-8s  question %d  %s\n",
			e.Modified.Format("2006-01-02 15:04"), e.Action, e.QuestionID, e.Question)
	}
	return nil
}
