package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/mindengage-quiz/internal/api/http"
	"github.com/mind-engage/mindengage-quiz/internal/auth"
	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("gateway stopped", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	accounts := identity.NewStore(dbh, log, cfg.BcryptCost)
	courses := catalog.NewStore(dbh, log)
	quizzes := authoring.NewStore(dbh, log, courses)
	ledger := enrollment.NewLedger(dbh, log, cfg.EnrollmentAllowDuplicates)
	engine := quiz.NewEngine(dbh, log, ledger)

	if err := bootstrapTeacher(ctx, cfg, accounts, log); err != nil {
		return err
	}

	// --- Auth (revocations shared through redis when configured) ---
	var revoker auth.Revoker = auth.NewMemoryRevoker()
	ready := dbh.PingContext
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		revoker = auth.NewRedisRevoker(rdb)
		ready = func(ctx context.Context) error {
			if err := dbh.PingContext(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
	}
	if cfg.Mode == config.ModeProd && cfg.AuthHMACSecret == "dev-secret-change-me" {
		return errors.New("AUTH_HMAC_SECRET must be set in prod mode")
	}
	authSvc := auth.NewService(cfg.AuthHMACSecret, cfg.AuthTokenTTL, revoker)

	// --- Router ---
	h := api.NewRouter(api.Deps{
		Log:           log,
		Auth:          authSvc,
		Accounts:      accounts,
		Courses:       courses,
		Authoring:     quizzes,
		Ledger:        ledger,
		Engine:        engine,
		CORSOrigins:   cfg.CORSOrigins,
		EnableMetrics: cfg.EnableMetrics,
		Ready:         ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// bootstrapTeacher creates the configured teacher account on first start.
// Registration only ever creates students, so this is how a deployment gets
// its first teacher.
func bootstrapTeacher(ctx context.Context, cfg config.Config, accounts *identity.Store, log *logger.Logger) error {
	if cfg.BootstrapTeacherUser == "" {
		return nil
	}
	acc, created, err := accounts.Ensure(ctx, identity.NewAccount{
		Username:        cfg.BootstrapTeacherUser,
		Password:        cfg.BootstrapTeacherPassword,
		ConfirmPassword: cfg.BootstrapTeacherPassword,
	}, rbac.RoleTeacher)
	if err != nil {
		return fmt.Errorf("bootstrap teacher: %w", err)
	}
	if created {
		log.Info("bootstrap teacher created", "account_id", acc.ID, "username", acc.Username)
	} else if acc.Role != rbac.RoleTeacher {
		log.Warn("bootstrap user exists without teacher role", "username", acc.Username, "role", acc.Role)
	}
	return nil
}
