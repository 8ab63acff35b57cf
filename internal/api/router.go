package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/shramba/internal/events"
	"github.com/erazemk/shramba/internal/recipes"
	"github.com/erazemk/shramba/internal/reminder"
)

// Deps are the collaborators the API needs. Only DB and JWTSecret are
// required.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Recipes   recipes.Finder
	Scheduler *reminder.Scheduler
	Mailer    TestMailer
	Events    *events.Emitter
	Providers Providers

	// Now overrides the clock used to derive today's date.
	Now func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	itemsHandler := &ItemsHandler{DB: d.DB, Finder: d.Recipes, Events: d.Events, Now: d.Now}
	remindersHandler := &RemindersHandler{DB: d.DB, Scheduler: d.Scheduler, Mailer: d.Mailer, Now: d.Now}
	metaHandler := &MetaHandler{DB: d.DB, Providers: d.Providers, Scheduler: d.Scheduler}

	authMW := AuthMiddleware(d.JWTSecret)

	// Public.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", metaHandler.Health)
	mux.HandleFunc("GET /api/categories", metaHandler.Categories)

	// Items, scoped to the token's owner.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("POST /api/items/{id}/open", authMW(http.HandlerFunc(itemsHandler.Open)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("GET /api/items/{id}/recipes", authMW(http.HandlerFunc(itemsHandler.Recipes)))

	// Reminders.
	mux.Handle("GET /api/reminders", authMW(http.HandlerFunc(remindersHandler.Feed)))
	mux.Handle("POST /api/reminders/run", authMW(http.HandlerFunc(remindersHandler.Run)))
	mux.Handle("POST /api/reminders/test-email", authMW(http.HandlerFunc(remindersHandler.TestEmail)))

	return mux
}
