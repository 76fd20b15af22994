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

	"homestock/internal/config"
	"homestock/internal/database"
	"homestock/internal/logging"
	"homestock/internal/metrics"
	"homestock/internal/repository"
	"homestock/internal/service"
)

const actor = "homestock-admin"

func main() {
	// Define subcommands
	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	purgeCmd := flag.NewFlagSet("purge-invites", flag.ExitOnError)

	seedFamily := seedCmd.String("family", "", "Family name (required)")
	seedDays := seedCmd.Int("days", 30, "Days until the invite code expires (1-30)")

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	purgeOlderThan := purgeCmd.Duration("older-than", 0, "Minimum age of spent codes to delete (default: server.invite_purge_age)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Bring the schema up to date before touching any table
	if err := db.Migrate(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}

	switch os.Args[1] {
	case "seed":
		_ = seedCmd.Parse(os.Args[2:])
		if strings.TrimSpace(*seedFamily) == "" {
			fmt.Println("Error: -family flag is required")
			seedCmd.PrintDefaults()
			os.Exit(1)
		}
		handleSeed(ctx, db, strings.TrimSpace(*seedFamily), *seedDays)

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		handleExport(ctx, service.NewBackupService(db), *exportOutput)

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, service.NewBackupService(db), *importInput, *importClear)

	case "purge-invites":
		_ = purgeCmd.Parse(os.Args[2:])
		olderThan := *purgeOlderThan
		if olderThan <= 0 {
			olderThan = cfg.Server.InvitePurgeAge
		}
		handlePurge(ctx, db, olderThan)

	default:
		printUsage()
		os.Exit(1)
	}
}

// handleSeed creates a family with no members and prints the code its first user
// joins with. That user becomes the family's admin.
func handleSeed(ctx context.Context, db *database.DB, familyName string, days int) {
	if days < 1 || days > 30 {
		logging.Fatal().Int("days", days).Msg("-days must be between 1 and 30")
	}

	families := service.NewFamilyService(repository.NewFamilyRepository(db), repository.NewUserRepository(db))
	invites := service.NewInviteService(repository.NewInvitationRepository(db), repository.NewFamilyRepository(db), nil)

	family, err := families.CreateFamily(ctx, familyName, actor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create family")
	}
	invite, err := invites.CreateForFamily(ctx, family.ID, actor, days)
	if err != nil {
		logging.Fatal().Err(err).Str("family_id", family.ID).Msg("Failed to create invite code")
	}

	logging.Info().Str("family_id", family.ID).Str("family", family.Name).Msg("Family created")
	fmt.Printf("Invite code: %s (expires %s)\n", invite.Code, invite.ExpiresAt.Format(time.RFC1123))
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Fatal().Err(err).Str("dir", dir).Msg("Failed to create output directory")
		}
	}

	logging.Info().Str("output", outputPath).Msg("Exporting database")
	if err := backupService.Export(ctx, outputPath); err != nil {
		logging.Fatal().Err(err).Msg("Export failed")
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Export file missing")
	}
	logging.Info().Str("size", fmt.Sprintf("%.2f MB", float64(fileInfo.Size())/1024/1024)).Msg("Export complete")
}

func handleImport(ctx context.Context, backupService *service.BackupService, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		logging.Fatal().Str("input", inputPath).Msg("Input file does not exist")
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		confirmation, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(confirmation) != "yes" {
			logging.Info().Msg("Import cancelled")
			return
		}
	}

	logging.Info().Str("input", inputPath).Bool("clear", clearData).Msg("Importing database")
	if err := backupService.Import(ctx, inputPath, clearData); err != nil {
		logging.Fatal().Err(err).Msg("Import failed")
	}
	logging.Info().Msg("Import complete")
}

func handlePurge(ctx context.Context, db *database.DB, olderThan time.Duration) {
	invites := service.NewInviteService(repository.NewInvitationRepository(db), repository.NewFamilyRepository(db), nil)
	purged, err := invites.Purge(ctx, olderThan)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invite purge failed")
	}
	metrics.InvitesPurged.Add(float64(purged))
	logging.Info().Int64("purged", purged).Dur("older_than", olderThan).Msg("Purged spent invite codes")
}

func printUsage() {
	fmt.Println("Homestock maintenance tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  homestock-admin seed -family NAME [-days 30]")
	fmt.Println("  homestock-admin export [-output FILE]")
	fmt.Println("  homestock-admin import -input FILE [-clear]")
	fmt.Println("  homestock-admin purge-invites [-older-than 720h]")
	fmt.Println()
	fmt.Println("Configuration is read from the environment, .env and $" + config.ConfigPathEnvVar + ".")
}
