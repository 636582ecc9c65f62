package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/dukerupert/nudge/internal/handler"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/push"
	"github.com/dukerupert/nudge/internal/reminder"
	"github.com/dukerupert/nudge/internal/store"
	ws "github.com/dukerupert/nudge/internal/websocket"
)

// EventFired is broadcast when the dispatcher delivers a reminder.
const EventFired = "reminder_fired"

// Options wires the reminder platform and HTTP surface.
type Options struct {
	Platform model.Platform
	Device   reminder.Device
	// Prompter answers the local platform's permission prompt. Nil leaves
	// an undetermined permission undetermined.
	Prompter reminder.Prompter
	Title    string
	Now      func() time.Time

	Push       push.Config
	Dispatcher push.DispatcherConfig

	OriginPatterns []string
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
	// TrustedProxies are peers whose X-Forwarded-For is used for rate
	// limiting. Empty keys every request by its remote address.
	TrustedProxies []netip.Prefix
	TokenHash      string
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	live        *reminder.LiveBackend
	reminders   *reminder.Service
	dispatcher  *push.Dispatcher
	pushService *push.Service
	pushStore   *store.PushStore
	reminderH   *handler.ReminderHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	settingsStore := store.NewSettingsStore(db)
	queueStore := store.NewQueueStore(db)
	channelStore := store.NewChannelStore(db)
	pushSt := store.NewPushStore(db)
	schedules := store.NewScheduleStore(settingsStore)

	var backend reminder.Backend = reminder.NullBackend{}
	var live *reminder.LiveBackend
	if opts.Platform != model.PlatformNone {
		live = reminder.NewLiveBackend(queueStore, channelStore, settingsStore, opts.Prompter, opts.Now)
		backend = live
	}

	reminders := reminder.NewService(backend, schedules, reminder.Config{
		Platform: opts.Platform,
		Device:   opts.Device,
		Now:      opts.Now,
		Title:    opts.Title,
		OnEvent: func(e reminder.Event) {
			hub.Broadcast(ws.NewMessage(e.Type, e.HabitID, e.IDs, nil))
		},
	}, logger.With("component", "reminder"))

	// Push notification service is optional; the dispatcher still fires
	// desktop notifications without it.
	var sender push.Sender
	var pushH *handler.PushHandler
	pushSvc := push.NewService(opts.Push)
	if pushSvc != nil {
		sender = pushSvc
		pushH = handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler"))
	}

	dispatchCfg := opts.Dispatcher
	if dispatchCfg.Now == nil {
		dispatchCfg.Now = opts.Now
	}
	dispatchCfg.OnFire = func(rec model.NotificationRecord, delivered int) {
		hub.Broadcast(ws.NewMessage(EventFired, rec.Content.Data.HabitID, []string{rec.ID}, map[string]any{
			"delivered": delivered,
			"title":     rec.Content.Title,
		}))
	}
	dispatcher := push.NewDispatcher(sender, queueStore, pushSt, dispatchCfg, logger.With("component", "dispatcher"))

	var rl *middleware.RateLimiter
	if opts.RateLimit > 0 {
		rl = middleware.NewRateLimiter(opts.RateLimit, time.Minute).TrustProxies(opts.TrustedProxies)
	}

	return &Server{
		db:          db,
		hub:         hub,
		live:        live,
		reminders:   reminders,
		dispatcher:  dispatcher,
		pushService: pushSvc,
		pushStore:   pushSt,
		reminderH:   handler.NewReminderHandler(reminders, logger.With("component", "reminder_handler")),
		pushH:       pushH,
		rateLimiter: rl,
		opts:        opts,
		logger:      logger,
	}
}

// Reminders returns the reminder service.
func (s *Server) Reminders() *reminder.Service {
	return s.reminders
}

// Dispatcher returns the reminder dispatcher.
func (s *Server) Dispatcher() *push.Dispatcher {
	return s.dispatcher
}

// LiveBackend returns the local platform, or nil when the platform is none.
func (s *Server) LiveBackend() *reminder.LiveBackend {
	return s.live
}

// PushService returns the web push service, or nil when VAPID keys are unset.
func (s *Server) PushService() *push.Service {
	return s.pushService
}

// PushStore returns the push store for delivery history.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// RateLimiter returns the rate limiter for cleanup tasks, or nil when
// limiting is disabled.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Start reconciles stale platform records and starts the dispatcher.
func (s *Server) Start(ctx context.Context) {
	report, err := s.reminders.CleanupOrphans(ctx)
	if err != nil {
		s.logger.Warn("startup orphan cleanup incomplete", "error", err, "cancelled", report.Cancelled)
	} else if report.Orphans > 0 {
		s.logger.Info("startup orphan cleanup", "orphans", report.Orphans, "cancelled", report.Cancelled)
	}
	s.dispatcher.Start(ctx)
}

// Stop stops the dispatcher.
func (s *Server) Stop() {
	s.dispatcher.Stop()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	authMiddleware := middleware.RequireToken(s.opts.TokenHash)
	var api http.Handler = authMiddleware(apiMux)
	if s.rateLimiter != nil {
		api = s.rateLimiter.Middleware(api)
	}
	outerMux.Handle("/api/", api)

	outerMux.Handle("GET /ws", authMiddleware(
		ws.HandleWebSocket(s.hub, s.opts.OriginPatterns, s.logger.With("component", "websocket")),
	))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"platform": s.opts.Platform,
		"push":     s.pushService != nil,
		"clients":  s.hub.ClientCount(),
	})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Habit reminder routes
	mux.HandleFunc("POST /api/habits/{id}/reminders", s.reminderH.Schedule)
	mux.HandleFunc("PUT /api/habits/{id}/reminders", s.reminderH.Update)
	mux.HandleFunc("GET /api/habits/{id}/reminders", s.reminderH.Get)
	mux.HandleFunc("DELETE /api/habits/{id}/reminders", s.reminderH.Cancel)
	mux.HandleFunc("POST /api/habits/{id}/complete", s.reminderH.Complete)

	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("POST /api/reminders/cleanup", s.reminderH.Cleanup)
	mux.HandleFunc("POST /api/permission", s.reminderH.Permission)

	// Push notification routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/deliveries", s.pushH.Deliveries)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}
}
