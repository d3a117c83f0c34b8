package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ad/go-telegram-funnel/internal/catalog"
	"github.com/ad/go-telegram-funnel/internal/db"
	"github.com/ad/go-telegram-funnel/internal/handlers"
	"github.com/ad/go-telegram-funnel/internal/services"
	"github.com/ad/go-telegram-funnel/internal/store"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "github.com/joho/godotenv/autoload"
	_ "modernc.org/sqlite"
)

func main() {
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}

	var adminID int64
	if adminIDStr := os.Getenv("ADMIN_ID"); adminIDStr != "" {
		var err error
		adminID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			log.Fatalf("Invalid ADMIN_ID: %v", err)
		}
	}

	stepsPath := os.Getenv("STEPS_PATH")
	if stepsPath == "" {
		stepsPath = "steps.json"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "funnel.db"
	}

	cat, err := catalog.Load(stepsPath)
	if err != nil {
		log.Fatalf("Failed to load step catalog: %v", err)
	}
	log.Printf("Loaded %d steps from %s", cat.Len(), stepsPath)

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.InitSchema(sqlDB); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	queue := db.NewQueue(sqlDB)
	defer queue.Close()

	userRepo := db.NewUserRepository(queue)
	settingsRepo := db.NewSettingsRepository(queue)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress, err := buildProgressCache(ctx, queue)
	if err != nil {
		log.Fatalf("Failed to hydrate progress store: %v", err)
	}

	emitter := services.NewEmitter(buildSink(sqlDB, queue))
	defer emitter.Close(5 * time.Second)

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(botToken, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Retry getMe with shorter timeout
	var botInfo *tgmodels.User
	for i := 0; i < 3; i++ {
		log.Printf("Attempting to connect to Telegram API (attempt %d/3)...", i+1)
		getMeCtx, getMeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			log.Printf("Successfully connected to Telegram API as @%s", botInfo.Username)
			break
		}
		log.Printf("Failed to get bot info (attempt %d/3): %v", i+1, err)
		if i < 2 {
			log.Printf("Retrying in 2 seconds...")
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Failed to get bot info after 3 attempts: %v", err)
	}

	texts, err := settingsRepo.GetTexts()
	if err != nil {
		log.Printf("Failed to load funnel texts, using defaults: %v", err)
		texts = nil
	}

	errorManager := services.NewErrorManager(b, adminID)
	msgManager := services.NewMessageManager(b, errorManager)
	engine := services.NewEngine(cat, progress, msgManager, emitter, texts)
	handler := handlers.NewBotHandler(b, adminID, errorManager, engine, userRepo)

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, handler.HandleUpdate, logMiddleware)

	log.Printf("Bot started. Admin ID: %d, DB: %s", adminID, dbPath)

	b.Start(ctx)
}

// buildProgressCache picks the progress backend: Redis when REDIS_ADDR is
// set, the SQLite repository otherwise. Either way the engine talks to a
// write-through cache hydrated here.
func buildProgressCache(ctx context.Context, queue *db.Queue) (*store.Cache, error) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		return store.NewCache(db.NewProgressRepository(queue))
	}

	redisDB := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		redisDB = n
	}

	redisStore := store.NewRedisStore(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)
	if err := redisStore.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis at %s: %w", redisAddr, err)
	}
	log.Printf("Using Redis progress store at %s", redisAddr)
	return store.NewCache(redisStore)
}

// buildSink initializes the analytics sink, degrading to a no-op sink when
// disabled or unavailable. The funnel runs the same either way.
func buildSink(sqlDB *sql.DB, queue *db.Queue) services.Sink {
	if os.Getenv("SINK_DISABLED") != "" {
		log.Printf("Analytics sink disabled")
		return services.NoopSink{}
	}

	if err := db.InitSinkSchema(sqlDB); err != nil {
		log.Printf("Failed to initialize analytics sink, continuing without: %v", err)
		return services.NoopSink{}
	}

	return db.NewSinkRepository(queue)
}

func formatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

func logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		if update.Message != nil && update.Message.From != nil {
			log.Printf("[MSG] from=%s text=%q", formatUser(*update.Message.From), update.Message.Text)
		}
		if update.CallbackQuery != nil {
			log.Printf("[CALLBACK] from=%s data=%q", formatUser(update.CallbackQuery.From), update.CallbackQuery.Data)
		}
		next(ctx, b, update)
	}
}
