// recap-sim is a scripted stand-in for the recap analysis backend. It
// replays a scenario (built-in or loaded from YAML) as the SSE analysis
// stream and mirrors every emitted record to a websocket monitor feed,
// so the client stack can be developed and tested without a real
// analysis service.
//
// Usage:
//
//	recap-sim                         # built-in happy-path scenario on :8787
//	recap-sim -scenario flaky.yaml    # scripted failures/disconnects
//	recap-sim -token secret           # enforce bearer authentication
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenvid/recap/internal/sim"
)

func main() {
	var (
		addr         = flag.String("addr", ":8787", "listen address")
		scenarioPath = flag.String("scenario", "", "scenario YAML file (default: built-in happy path)")
		token        = flag.String("token", "", "require this bearer token on the stream endpoint")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	scenario := sim.DefaultScenario()
	if *scenarioPath != "" {
		var err error
		scenario, err = sim.LoadScenario(*scenarioPath)
		if err != nil {
			log.Error("failed to load scenario", "error", err)
			os.Exit(1)
		}
	}

	opts := []sim.Option{sim.WithLogger(log)}
	if *token != "" {
		opts = append(opts, sim.WithToken(*token))
	}
	server := sim.NewServer(scenario, opts...)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("simulator listening", "addr", *addr, "scenario", scenario.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
