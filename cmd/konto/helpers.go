package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/engine"
	"github.com/kontoworks/konto/internal/feed"
	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/learn"
	"github.com/kontoworks/konto/internal/notify"
	"github.com/kontoworks/konto/internal/oracle"
	"github.com/kontoworks/konto/internal/service"
	"github.com/kontoworks/konto/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// expandPath expands ~ and environment variables in a file path.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/konto/konto.db"
	}

	// Expand tilde and environment variables
	dbPath = expandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requireUser returns the user every data command operates on. There is no
// session concept; the user comes from the --user flag or the config file.
func requireUser() (string, error) {
	user := strings.TrimSpace(viper.GetString("user"))
	if user == "" {
		return "", common.NewUserError("a user is required; pass --user or set 'user' in the config", nil)
	}
	return user, nil
}

// ownIdentity builds the user's own-company identifiers from config. All
// fields are optional; with none set, self-transfer detection is off.
func ownIdentity() *identity.Own {
	return identity.New(
		viper.GetString("identity.vat_id"),
		viper.GetStringSlice("identity.ibans"),
		viper.GetStringSlice("identity.email_domains"),
	)
}

// app bundles the components every command wires the same way. The bare
// storage goes to the matcher and the learner; the feed-wrapped store goes
// to everything writing on the user's behalf, so those writes trigger the
// usual reactions without the engines re-triggering themselves.
type app struct {
	db      service.Storage
	store   service.Storage
	bus     *feed.Bus
	matcher *engine.Matcher
	logger  *slog.Logger
}

func newApp(ctx context.Context, progress func(processed int)) (*app, error) {
	db, err := initStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger := slog.Default()
	matcher := engine.NewMatcher(db, ownIdentity(), engine.Options{
		Progress:           progress,
		AutoApplyThreshold: viper.GetInt("matching.auto_apply_threshold"),
	}, logger)

	bus := feed.NewBus()
	bus.Subscribe(feed.CollectionTransactions, feed.Rematch(matcher))
	bus.Subscribe(feed.CollectionPartners, feed.PartnerBackfill(matcher))

	return &app{
		db:      db,
		store:   feed.WrapStorage(db, bus, logger),
		bus:     bus,
		matcher: matcher,
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close storage", "error", err)
	}
}

// oracleConfig reads the oracle settings. An unset provider falls back to
// the offline mock, which proposes nothing and keeps stored patterns as
// they are.
func oracleConfig() oracle.Config {
	provider := viper.GetString("oracle.provider")
	if provider == "" {
		provider = "mock"
	}
	return oracle.Config{
		Provider:       provider,
		APIKey:         viper.GetString("oracle.api_key"),
		Model:          viper.GetString("oracle.model"),
		ClaudeCodePath: viper.GetString("oracle.claude_code_path"),
		RateLimit:      viper.GetInt("oracle.rate_limit"),
		Temperature:    viper.GetFloat64("oracle.temperature"),
		MaxTokens:      viper.GetInt("oracle.max_tokens"),
	}
}

// learnWorkflow builds the oracle-backed learning workflow. The caller owns
// the returned oracle client and must close it.
func (a *app) learnWorkflow() (*learn.Workflow, oracle.Client, error) {
	client, err := oracle.NewClient(oracleConfig(), a.logger)
	if err != nil {
		return nil, nil, err
	}

	workflow, err := learn.NewWorkflow(a.db, client, notify.NewLogNotifier(a.logger), learn.Options{
		Verify:        viper.GetBool("oracle.verify"),
		ScanCap:       viper.GetInt("learning.scan_cap"),
		AutoThreshold: viper.GetInt("matching.auto_apply_threshold"),
	}, a.logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return workflow, client, nil
}

// learnQueue builds the debounced learning queue and registers it for
// confirmation events, so assignments confirmed through this process
// enqueue their partner.
func (a *app) learnQueue() (*learn.Queue, oracle.Client, error) {
	workflow, client, err := a.learnWorkflow()
	if err != nil {
		return nil, nil, err
	}
	queue := learn.NewQueue(a.db, workflow, viper.GetDuration("learning.debounce"), a.logger)
	a.bus.Subscribe(feed.CollectionTransactions, feed.ConfirmationLearning(queue))
	return queue, client, nil
}

// newScanBar returns a spinner-style progress bar for corpus scans, where
// the row count is not known up front. It writes to stderr so tabular
// output on stdout stays clean.
func newScanBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", description)),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func printMatchStats(stats service.MatchStats) {
	fmt.Println("\n📊 Matching complete")                      //nolint:forbidigo // User-facing output
	fmt.Printf("   Scanned:      %d\n", stats.Scanned)       //nolint:forbidigo // User-facing output
	fmt.Printf("   Auto-applied: %d\n", stats.AutoApplied)   //nolint:forbidigo // User-facing output
	fmt.Printf("   Suggested:    %d\n", stats.Suggested)     //nolint:forbidigo // User-facing output
}

func printLearnStats(stats service.LearnStats) {
	fmt.Println("\n🧠 Learning complete")                              //nolint:forbidigo // User-facing output
	fmt.Printf("   Partners processed: %d\n", stats.PartnersProcessed) //nolint:forbidigo // User-facing output
	fmt.Printf("   Patterns proposed:  %d\n", stats.PatternsProposed)  //nolint:forbidigo // User-facing output
	fmt.Printf("   Patterns kept:      %d\n", stats.PatternsKept)      //nolint:forbidigo // User-facing output
	fmt.Printf("   Unassigned:         %d\n", stats.Unassigned)        //nolint:forbidigo // User-facing output
	if stats.Failures > 0 {
		fmt.Printf("   Failures:           %d\n", stats.Failures) //nolint:forbidigo // User-facing output
	}
}

// formatMinor renders a minor-unit amount for display, e.g. -4299 EUR as
// "-42.99 EUR".
func formatMinor(minor int64, currency string) string {
	amount := decimal.New(minor, -2).StringFixed(2)
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}
