package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rosterd/rosterd/internal/config"
	"github.com/rosterd/rosterd/internal/database"
	"github.com/rosterd/rosterd/internal/logging"
	"github.com/rosterd/rosterd/internal/maintenance"
	"github.com/rosterd/rosterd/internal/security"
	"github.com/rosterd/rosterd/internal/users"
	"github.com/rosterd/rosterd/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	port          int
	bind          string
	allowSubnet   string
	dbPath        string
	maxNameLength int
	initDB        bool
	debug         bool
	verbosity     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rosterd",
		Short: "Rosterd - User registry server",
		Long:  `Rosterd is a small HTTP service for registering users and looking them up by id or name, backed by SQLite.`,
		RunE:  run,
	}

	// Flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./rosterd.db", "SQLite database path (or set DATABASE_PATH env var)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 8000, "HTTP server port (or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")
	rootCmd.Flags().IntVar(&maxNameLength, "max-name-length", users.DefaultMaxNameLength, "Maximum accepted user name length in characters (or set MAX_NAME_LENGTH env var)")
	rootCmd.Flags().BoolVar(&initDB, "init-db", true, "Initialize the database schema on start (or set INIT_DB_ON_START env var)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Keep serving when schema initialization fails (or set DEBUG env var)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	// Migrate command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Initialize the database schema and exit",
		Long:  `Initialize the database schema and exit. Run this once before starting several server processes against the same database file.`,
		RunE:  runMigrate,
	})

	// Set-password command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "set-password <name>",
		Short: "Set a user's password, read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetPassword,
	})

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rosterd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Environment fallbacks; an explicitly set flag wins
	if !cmd.Flags().Changed("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
				return fmt.Errorf("invalid PORT environment variable %q: %w", envPort, err)
			}
		}
	}
	resolveDBPath(cmd)
	if !cmd.Flags().Changed("max-name-length") {
		if env := os.Getenv("MAX_NAME_LENGTH"); env != "" {
			v, err := strconv.Atoi(env)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid MAX_NAME_LENGTH environment variable %q", env)
			}
			maxNameLength = v
		}
	}
	if !cmd.Flags().Changed("init-db") {
		if env := os.Getenv("INIT_DB_ON_START"); env != "" {
			initDB = parseBoolEnv(env)
		}
	}
	if !cmd.Flags().Changed("debug") {
		if env := os.Getenv("DEBUG"); env != "" {
			debug = parseBoolEnv(env)
		}
	}

	if maxNameLength <= 0 {
		return fmt.Errorf("--max-name-length must be positive")
	}

	// Validate bind address if provided
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	// Validate and parse allow-subnet if provided
	var allowedNet *net.IPNet
	if allowSubnet != "" {
		_, parsedNet, err := net.ParseCIDR(allowSubnet)
		if err != nil {
			return fmt.Errorf("invalid allow-subnet CIDR: %s", allowSubnet)
		}
		allowedNet = parsedNet
	}

	level := resolveLogLevel(verbosity)
	setupLogging(level)

	// Warn if binding to all interfaces without an allow list
	if (bind == "" || bind == "0.0.0.0" || bind == "::") && allowSubnet == "" {
		log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
	}

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("allow_subnet", allowSubnet).
		Str("database", dbPath).
		Bool("debug", debug).
		Msg("Starting Rosterd")

	// Initialize database
	db, err := database.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if initDB {
		if err := db.Migrate(); err != nil {
			if debug {
				log.Error().Err(err).Msg("Failed to run database migrations; continuing in debug mode")
			} else {
				log.Fatal().Err(err).Msg("Failed to run database migrations")
			}
		} else if err := db.InitializeDefaults(); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize default settings")
		}
	} else {
		log.Info().Msg("Skipping schema initialization (disabled)")
	}

	// Upgrade logging to console + rotating file next to the database.
	// With no -v flag and no LOG_LEVEL env, the persisted log.level wins.
	loader := config.NewLoader(db)
	if verbosity == 0 && os.Getenv("LOG_LEVEL") == "" {
		level = loader.String("log.level", level)
	}
	logging.Apply(level, loader, logging.FilePathForDB(db.Path()))

	svc := users.NewService(db, maxNameLength)

	if count, err := db.CountUsers(); err != nil {
		log.Warn().Err(err).Msg("Failed to count users")
	} else {
		log.Info().Int("users", count).Int("max_name_length", svc.MaxNameLength()).Msg("User registry ready")
	}

	scheduler := maintenance.NewScheduler(db, loader)
	scheduler.Start()
	defer scheduler.Stop()

	server := web.NewServer(db, svc, port, bind, allowedNet)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Rosterd stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	resolveDBPath(cmd)
	setupLogging(resolveLogLevel(0))

	db, err := database.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	if err := db.InitializeDefaults(); err != nil {
		return err
	}

	log.Info().Str("database", dbPath).Msg("Schema initialized")
	return nil
}

func runSetPassword(cmd *cobra.Command, args []string) error {
	resolveDBPath(cmd)
	setupLogging(resolveLogLevel(0))

	db, err := database.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	user, err := db.GetUserByName(args[0])
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found", args[0])
	}

	fmt.Print("Password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.SetUserPassword(user.ID, hash); err != nil {
		return err
	}

	fmt.Printf("Password updated for %s\n", user.Name)
	return nil
}

// resolveDBPath applies the DATABASE_PATH fallback for any command that
// touches the store
func resolveDBPath(cmd *cobra.Command) {
	if !cmd.Flags().Changed("db") {
		if envDB := os.Getenv("DATABASE_PATH"); envDB != "" {
			dbPath = envDB
		}
	}
}

// resolveLogLevel maps -v counts to levels, falling back to LOG_LEVEL
func resolveLogLevel(verbosity int) string {
	switch {
	case verbosity >= 2:
		return "trace"
	case verbosity == 1:
		return "debug"
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return strings.ToLower(env)
	}
	return "info"
}

func parseBoolEnv(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func setupLogging(level string) {
	// Pretty console output
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
