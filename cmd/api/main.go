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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"taskdeck.org/internal/auth"
	"taskdeck.org/internal/comments"
	"taskdeck.org/internal/httpapi"
	"taskdeck.org/internal/notify"
	"taskdeck.org/internal/obs"
	"taskdeck.org/internal/perm"
	"taskdeck.org/internal/roster"
	"taskdeck.org/internal/tasks"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TASKDECK_COMMIT"))

	dsn := os.Getenv("TASKDECK_PG_DSN")
	if dsn == "" {
		log.Fatal("missing TASKDECK_PG_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	authStore := auth.NewPGStore(db)
	authSvc := auth.NewService(authStore)
	permSvc := perm.NewService(perm.NewPGStore(db))
	notifySvc := notify.NewService(notify.NewPGStore(db))
	taskSvc := tasks.NewService(tasks.NewPGStore(db))
	commentSvc := comments.NewService(comments.NewPGStore(db), authStore, notifySvc, taskSvc)
	rosterSvc := roster.NewService(authSvc)

	api := httpapi.New(httpapi.Config{
		Ready:         httpapi.ReadyProbe{DB: db},
		Version:       version,
		Auth:          authSvc,
		Users:         authStore,
		Perm:          permSvc,
		Tasks:         taskSvc,
		Comments:      commentSvc,
		Notifications: notifySvc,
		Roster:        rosterSvc,
	})

	addr := os.Getenv("TASKDECK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskdeck-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
