package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marrowai-server/internal/blobstore"
	"marrowai-server/internal/cache"
	"marrowai-server/internal/chat"
	"marrowai-server/internal/config"
	"marrowai-server/internal/directory"
	"marrowai-server/internal/gemini"
	"marrowai-server/internal/handlers"
	"marrowai-server/internal/ingest"
	"marrowai-server/internal/insights"
	"marrowai-server/internal/logger"
	"marrowai-server/internal/models"
	"marrowai-server/internal/pdftext"
	"marrowai-server/internal/risk"
	"marrowai-server/internal/routes"
	"marrowai-server/internal/store"
)

const serviceName = "marrowai-server"

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "marrowai",
		Short:         "MarrowAI aplastic anemia tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load if present")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scoreCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadEnv loads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("Database migrated", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func scoreCmd() *cobra.Command {
	var wbc, rbc, hemoglobin, platelets float64
	cmd := &cobra.Command{
		Use:   "score [symptom...]",
		Short: "Compute a risk assessment from symptom tags and optional lab values",
		RunE: func(cmd *cobra.Command, args []string) error {
			scorer := risk.NewScorer(func(tag string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: unrecognised symptom %q scored as other\n", tag)
			})

			// Only flags given on the command line count as measured.
			flags := cmd.Flags()
			measured := func(name string, v float64) *float64 {
				if !flags.Changed(name) {
					return nil
				}
				return lo.ToPtr(v)
			}
			labs := &models.BloodCount{
				WBC:        measured("wbc", wbc),
				RBC:        measured("rbc", rbc),
				Hemoglobin: measured("hemoglobin", hemoglobin),
				Platelets:  measured("platelets", platelets),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scorer.Assess(args, labs))
		},
	}
	cmd.Flags().Float64Var(&wbc, "wbc", 0, "white blood cells (×10³/μL)")
	cmd.Flags().Float64Var(&rbc, "rbc", 0, "red blood cells (×10⁶/μL)")
	cmd.Flags().Float64Var(&hemoglobin, "hemoglobin", 0, "hemoglobin (g/dL)")
	cmd.Flags().Float64Var(&platelets, "platelets", 0, "platelets (×10³/μL)")
	return cmd
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	return models.OpenDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.IsDev(),
	})
}

func runServer(ctx context.Context, migrate bool) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if migrate {
		if err := models.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	st := store.New(db)

	doctors, err := directory.Load()
	if err != nil {
		return err
	}

	var blobs blobstore.Store = blobstore.Nop{}
	if cfg.Storage.S3Bucket != "" {
		s3Store, err := blobstore.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		if err != nil {
			return err
		}
		blobs = s3Store
		log.Info("Raw report storage enabled", zap.String("bucket", cfg.Storage.S3Bucket))
	}

	var dashboard cache.Dashboard = cache.Nop{}
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable at startup; dashboard cache errors will be logged", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		dashboard = cache.NewRedisDashboard(client, cfg.Redis.TTL, log)
	}

	reportModel := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout, log)
	analyzer := insights.NewAnalyzer(reportModel, log)

	var responder chat.Responder = chat.KeywordResponder{}
	if cfg.ChatMode == config.ChatModeLLM {
		chatModel := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.ChatModel, cfg.Gemini.Timeout, log)
		responder = chat.NewLLMResponder(chatModel)
	}

	flow := ingest.NewFlow(pdftext.New(), analyzer, st, blobs, log)

	router := routes.NewRouter(cfg, log, routes.Handlers{
		Auth:      handlers.NewAuthHandler(st, cfg, log),
		Symptoms:  handlers.NewSymptomHandler(log),
		Chat:      handlers.NewChatHandler(responder, log),
		Doctors:   handlers.NewDoctorHandler(doctors),
		Reports:   handlers.NewReportHandler(flow, st, analyzer, blobs, dashboard, cfg.Upload.MaxBytes, log),
		Entries:   handlers.NewHealthEntryHandler(st, dashboard, log),
		Dashboard: handlers.NewDashboardHandler(st, dashboard, log),
		Health:    handlers.NewHealthHandler(st, log),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		// uploads wait on extraction and one model call
		WriteTimeout: cfg.Gemini.Timeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", server.Addr), zap.String("chat_mode", cfg.ChatMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-stop.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
