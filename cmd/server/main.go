package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/eventbus"
	"github.com/matthewbaird/caseforms/internal/server"
	"github.com/matthewbaird/caseforms/internal/store"
)

func main() {
	log.SetPrefix("caseforms ")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := openStore(ctx)
	defer st.Close()

	bus := eventbus.New(256)
	rec := event.NewLogRecorder(st)
	rec.SetPublisher(bus)

	warn, _ := strconv.ParseBool(os.Getenv("CASEFORMS_WARN_UNDEFINED"))
	sessions := authoring.NewManager(st, store.ErrNotFound, authoring.WithPublisher(rec))

	bus.Subscribe("log", eventbus.NewLogConsumer(nil))
	bus.Subscribe("reload", eventbus.NewReloadConsumer(sessions.Reload))
	bus.Start(ctx)
	defer bus.Stop()

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	if err := server.Run(ctx, server.Config{
		Port:          port,
		Store:         st,
		Sessions:      sessions,
		Recorder:      rec,
		WarnUndefined: warn,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func openStore(ctx context.Context) store.Store {
	if os.Getenv("CASEFORMS_STORE") == "memory" {
		log.Println("using in-memory store")
		return store.NewMemory()
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "file:caseforms.db?_pragma=foreign_keys(1)"
	}
	st, err := store.OpenSQLite(ctx, dsn)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	log.Println("database migrated successfully")
	return st
}
