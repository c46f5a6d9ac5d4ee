// Command thesync loads the thesis-management collections into a local
// mirror, optionally applies one flag toggle, and prints what it holds.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/5-logic/the-sync-frontend-sub001/config"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/health"
	"github.com/5-logic/the-sync-frontend-sub001/mirror"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/thesync/config.toml)")
	force := flag.Bool("force", false, "ignore cached collections and fetch everything")
	clearCache := flag.Bool("clear-cache", false, "clear every cache before fetching")
	toggleFlag := flag.String("toggle", "", "apply one toggle, e.g. lecturers/l1:isActive=false")
	serve := flag.Bool("serve", false, "keep serving health and metrics on [health] addr until interrupted")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := options{force: *force, clearCache: *clearCache, serve: *serve}
	if *toggleFlag != "" {
		req, err := parseToggle(*toggleFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "thesync: %v\n", err)
			return 2
		}
		opts.toggle = &req
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thesync: %v\n", err)
		return 1
	}

	if err := execute(ctx, cfg, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "thesync: %v\n", err)
		return 1
	}
	return 0
}

type options struct {
	force      bool
	clearCache bool
	serve      bool
	toggle     *toggleRequest
}

func execute(ctx context.Context, cfg config.Config, opts options, out io.Writer) error {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger()

	m, err := mirror.New(ctx, cfg, mirror.WithObserver(obs))
	if err != nil {
		return err
	}
	defer m.Close()

	if opts.clearCache {
		m.ClearCaches(ctx)
	}
	if err := m.FetchAll(ctx, opts.force); err != nil {
		logger.Warn(ctx, "some collections failed to load", observe.F("error", err))
	}

	if t := opts.toggle; t != nil {
		var accepted bool
		switch t.entity {
		case domain.Lecturers:
			accepted = m.Lecturers.Toggle(ctx, t.id, t.field, t.value)
		case domain.Theses:
			accepted = m.Theses.Toggle(ctx, t.id, t.field, t.value)
		}
		m.Wait()
		if !accepted {
			logger.Warn(ctx, "toggle was not applied",
				observe.F("entity", t.entity), observe.F("id", t.id), observe.F("field", t.field))
		}
	}

	if err := writeSummary(ctx, m, out); err != nil {
		return err
	}

	if opts.serve {
		return serveHealth(ctx, cfg.Health.Addr, m.Health(), logger)
	}
	return nil
}

type summary struct {
	Collections map[string]int `json:"collections"`
	Caches      []cacheSummary `json:"caches"`
	Health      health.Report  `json:"health"`
}

type cacheSummary struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
}

func writeSummary(ctx context.Context, m *mirror.Mirror, out io.Writer) error {
	s := summary{
		Collections: map[string]int{
			domain.Lecturers:  len(m.Lecturers.Store.Items()),
			domain.Theses:     len(m.Theses.Store.Items()),
			domain.Milestones: len(m.Milestones.Items()),
			domain.Groups:     len(m.Groups.Items()),
		},
		Health: health.NewReport(ctx, m.Health()),
	}
	for _, st := range m.CacheStats() {
		s.Caches = append(s.Caches, cacheSummary{
			Name:      st.Name,
			Count:     st.Count,
			Hits:      st.Hits,
			Misses:    st.Misses,
			Evictions: st.Evictions,
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func serveHealth(ctx context.Context, addr string, agg *health.Aggregator, logger observe.Logger) error {
	if addr == "" {
		return errors.New("serve: [health] addr is not configured")
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info(ctx, "serving health", observe.F("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
