package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/autonoma/autonoma/internal/api"
	"github.com/autonoma/autonoma/internal/genai"
	"github.com/autonoma/autonoma/internal/lockfile"
	"github.com/autonoma/autonoma/internal/notify"
	"github.com/autonoma/autonoma/internal/store"
	"github.com/autonoma/autonoma/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Autonoma state data
	DefaultStateDir = "/var/lib/autonoma"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "autonoma.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Hold the state directory lock for file-based storage so two instances
	// never share one SQLite database.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	notifyOpts := buildNotifyOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping Autonoma with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "notify", len(notifyOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, notifyOpts, apiOpts); err != nil {
		slog.Error("Autonoma failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Autonoma exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	EscalationPhone string
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	apiAddr         *string
	twilioSID       *string
	twilioToken     *string
	twilioFrom      *string
	escalationPhone *string
}

// initializeLogger sets up structured logging; AUTONOMA_DEBUG raises the level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("AUTONOMA_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("AUTONOMA_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		EscalationPhone: os.Getenv("ESCALATION_PHONE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AUTONOMA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("AUTONOMA_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AUTONOMA_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"ESCALATION_PHONE_SET", config.EscalationPhone != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for Autonoma data (overrides $AUTONOMA_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN, a PostgreSQL URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		twilioSID:       flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID for escalation SMS (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:     flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token for escalation SMS (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:      flag.String("twilio-from-number", config.TwilioFrom, "Twilio sender number for escalation SMS (overrides $TWILIO_FROM_NUMBER)"),
		escalationPhone: flag.String("escalation-phone", config.EscalationPhone, "phone number escalation alerts are sent to (overrides $ESCALATION_PHONE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"twilioSIDSet", *flags.twilioSID != "",
		"escalationPhoneSet", *flags.escalationPhone != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		// Check if it's a PostgreSQL DSN using the shared detection function
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildNotifyOptions constructs escalation notifier configuration options
func buildNotifyOptions(flags Flags) []notify.Option {
	var notifyOpts []notify.Option
	if *flags.twilioSID != "" {
		notifyOpts = append(notifyOpts, notify.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		notifyOpts = append(notifyOpts, notify.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		notifyOpts = append(notifyOpts, notify.WithFromNumber(*flags.twilioFrom))
	}
	return notifyOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.escalationPhone != "" {
		apiOpts = append(apiOpts, api.WithEscalationRecipient(*flags.escalationPhone))
	}
	return apiOpts
}
