package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "taskbuddy/docs"
	"taskbuddy/internal/config"
	"taskbuddy/internal/handlers"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/routes"
	"taskbuddy/internal/services"
	"taskbuddy/internal/timeparse"
	"taskbuddy/internal/utils"
)

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	DB     *sql.DB

	Times     *services.TimeService
	Tasks     services.TaskService
	Users     services.UserService
	Reminders *services.ReminderService
	Intents   *services.IntentService
	SMS       *services.SMSService
}

// New opens the database and wires every service. Close releases the pool.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// === Repos ===
	taskRepo := repositories.NewTaskRepository(db)
	userRepo := repositories.NewUserRepository(db)
	verifRepo := repositories.NewUserVerificationRepository(db)

	// === Clients ===
	twilio := utils.NewTwilioClientWithOptions(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
		cfg.Twilio.BaseURL,
		cfg.Twilio.DryRun,
	)
	nlu := utils.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout)

	// === Services ===
	times := services.NewTimeService(timeparse.New(cfg.Resolver.PMBelowHour), cfg.Resolver.DefaultZone)
	tasks := services.NewTaskService(taskRepo, userRepo, times)
	users := services.NewUserService(userRepo)

	return &App{
		Config:    cfg,
		DB:        db,
		Times:     times,
		Tasks:     tasks,
		Users:     users,
		Reminders: services.NewReminderService(tasks, twilio, alerts(cfg), cfg.Scheduler.DeliveryTimeout),
		Intents:   services.NewIntentService(tasks, users, nlu),
		SMS:       services.NewSMSService(verifRepo, userRepo, twilio, cfg.Verification.CodeTTL),
	}, nil
}

func alerts(cfg *config.Config) services.AlertService {
	var out services.MultiAlerts
	if cfg.Email.Enabled() {
		out = append(out, services.NewEmailAlertService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			cfg.Email.AlertTo,
		))
	}
	if cfg.Telegram.Enabled() {
		out = append(out, services.NewTelegramAlerts(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID, cfg.Telegram.APIBase))
	}
	if len(out) == 0 {
		log.Printf("[app] operator alerts go to the log only")
		return services.NopAlerts{}
	}
	return out
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	cfg := a.Config

	webhookToken := ""
	if cfg.Twilio.ValidateWebhook {
		webhookToken = cfg.Twilio.AuthToken
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return routes.SetupRoutes(
		router,
		routes.AuthOptions{JWTSecret: []byte(cfg.Auth.JWTSecret), Required: cfg.Auth.Required},
		handlers.NewTaskHandler(a.Tasks),
		handlers.NewUserHandler(a.Users),
		handlers.NewTimeHandler(a.Times),
		handlers.NewVerifyHandler(a.SMS),
		handlers.NewIntegrationsHandler(a.Intents, webhookToken, cfg.Twilio.WebhookURL),
	)
}

// Serve runs the HTTP server and, when enabled, the reminder scheduler until
// ctx is cancelled, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	var sched *services.SchedulerService
	if cfg.Scheduler.Enabled {
		sched = services.NewSchedulerService(log.Default())
		if _, err := sched.ScheduleSweep(ctx, a.Reminders, cfg.Scheduler.Interval, cfg.Scheduler.SweepTimeout); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
		sched.Start()
		log.Printf("[app] reminder sweep every %s", cfg.Scheduler.Interval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[app] shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	log.Printf("[app] stopped")
	return serveErr
}

// Run loads the config at path and serves until SIGINT or SIGTERM.
func Run(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("[app] close db: %v", err)
		}
	}()
	return a.Serve(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
