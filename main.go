package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"socialapi/auth"
	"socialapi/config"
	"socialapi/database"
	"socialapi/handlers"
	"socialapi/models"
	"socialapi/routes"
	"socialapi/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("exiting")
	}
}

func run() error {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	reconcile := pflag.Bool("reconcile", false, "repair follow and comment references, then exit")
	addUsers := pflag.StringArray("add-user", nil, "create a user from \"name,email,password\" (repeatable); exits afterwards unless STORE_BACKEND=memory")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.close(log)

	seeds := append(append([]string{}, cfg.SeedUsers...), *addUsers...)
	if err := seedUsers(ctx, backend.users, seeds, log); err != nil {
		return err
	}

	switch {
	case *reconcile:
		if backend.db == nil {
			return errors.New("--reconcile requires STORE_BACKEND=mongo")
		}
		report, err := backend.db.Reconciler(log).Run(ctx)
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		log.WithFields(logrus.Fields{
			"followersAdded":      report.FollowersAdded,
			"followersRemoved":    report.FollowersRemoved,
			"danglingFollowRefs":  report.DanglingFollowRefs,
			"commentsAttached":    report.CommentsAttached,
			"commentsDeleted":     report.CommentsDeleted,
			"danglingCommentRefs": report.DanglingCommentRefs,
		}).Info("reconciliation finished")
		return nil
	case len(*addUsers) > 0 && backend.db != nil:
		// Users written to MongoDB outlive the process; the memory
		// backend keeps serving so the seeded users stay reachable.
		return nil
	default:
		return serve(ctx, cfg, backend, log)
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

type backend struct {
	users    store.UserDirectory
	posts    store.PostStore
	comments store.CommentStore
	db       *database.Database
}

func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory store; data is lost on exit")
		mem := store.NewMemory()
		return &backend{users: mem, posts: mem, comments: mem}, nil
	}

	log.Info("connecting to MongoDB")
	var db *database.Database
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		db, err = database.Connect(ctx, database.Options{
			URI:          cfg.MongoURI,
			Name:         cfg.MongoDatabase,
			Transactions: cfg.Transactions,
		})
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("MongoDB connection attempt failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, err
	}
	log.WithField("transactions", cfg.Transactions).Info("MongoDB connected")

	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Disconnect(context.Background())
		return nil, err
	}

	return &backend{
		users:    db.Users(),
		posts:    db.Posts(),
		comments: db.Comments(),
		db:       db,
	}, nil
}

func (b *backend) close(log logrus.FieldLogger) {
	if b.db == nil {
		return
	}
	if err := b.db.Disconnect(context.Background()); err != nil {
		log.WithError(err).Error("MongoDB disconnect failed")
		return
	}
	log.Info("disconnected from MongoDB")
}

// seedUsers creates users out of band; the API has no signup route.
// Entries whose email is already registered are skipped, so a restart
// with the same SEED_USERS is harmless.
func seedUsers(ctx context.Context, users store.UserDirectory, entries []string, log logrus.FieldLogger) error {
	for _, entry := range entries {
		user, err := parseUserEntry(entry)
		if err != nil {
			return err
		}
		err = users.CreateUser(ctx, user)
		if errors.Is(err, store.ErrEmailTaken) {
			log.WithField("email", user.Email).Info("user already exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("create user %s: %w", user.Email, err)
		}
		log.WithField("email", user.Email).Info("user created")
	}
	return nil
}

// parseUserEntry reads "name,email,password"; the password may contain commas.
func parseUserEntry(entry string) (*models.User, error) {
	parts := strings.SplitN(entry, ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("user entry %q: want \"name,email,password\"", entry)
	}
	name, email, password := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), parts[2]
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("user entry %q: name, email and password are required", entry)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &models.User{Name: name, Email: email, PasswordHash: string(hash)}, nil
}

func newRouter(cfg *config.Config, b *backend, log *logrus.Logger) *gin.Engine {
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	handler := handlers.New(handlers.Options{
		Users:    b.users,
		Posts:    b.posts,
		Comments: b.comments,
		Tokens:   tokens,
		Log:      log,
		Timeout:  cfg.RequestTimeout,
	})
	return routes.SetupRouter(routes.Config{
		Handler:     handler,
		Verifier:    tokens,
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
	})
}

func serve(ctx context.Context, cfg *config.Config, b *backend, log *logrus.Logger) error {
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, b, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server stopped")
	return nil
}
