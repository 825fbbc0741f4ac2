package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/auth"
	"timeclock.org/internal/config"
	"timeclock.org/internal/httpapi"
	"timeclock.org/internal/obs"
	"timeclock.org/internal/store/pg"
	"timeclock.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(os.Getenv("TIMECLOCK_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AuthSecret != "" {
		// The token layer reads the secret from the environment once.
		_ = os.Setenv("TIMECLOCK_AUTH_SECRET", cfg.AuthSecret)
	}

	var (
		db        *sql.DB
		svc       attendance.Service
		directory auth.Directory
		tasks     attendance.TaskSource
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		svc = store
		directory = pg.NewDirectory(db)
		tasks = pg.NewTasks(db)
	} else {
		log.Println("TIMECLOCK_PG_DSN not set, using in-memory store")
		svc = attendance.NewInMemory()
		directory = seedDemoDirectory()
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, directory, tasks, stream.New(), httpapi.Options{
		TokenTTL:     cfg.TokenTTL,
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
		MaxBodyBytes: cfg.MaxBodySize,
		IdleWindow:   cfg.PresenceIdleWindow,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE responses are long-lived
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting timeclock-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// seedDemoDirectory mirrors the demo seed data so the in-memory mode is
// usable out of the box.
func seedDemoDirectory() *auth.InMemoryDirectory {
	dir := auth.NewInMemoryDirectory()
	dir.AddUser(auth.User{
		ID:             "user-admin",
		OrganizationID: "org-demo",
		Username:       "admin",
		Email:          "admin@example.com",
		Role:           auth.RoleAdmin,
		Active:         true,
	})
	dir.AddUser(auth.User{
		ID:             "user-alice",
		OrganizationID: "org-demo",
		Username:       "alice",
		Email:          "alice@example.com",
		Role:           auth.RoleEmployee,
		Active:         true,
	})
	dir.AddUser(auth.User{
		ID:             "user-bob",
		OrganizationID: "org-demo",
		Username:       "bob",
		Email:          "bob@example.com",
		Role:           auth.RoleEmployee,
		Active:         true,
	})
	return dir
}
