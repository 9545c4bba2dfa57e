package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clawdia/internal/research"
	"clawdia/internal/version"
	"clawdia/pkg/progress"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research daemon for the desktop shell",
	Long: `Start the research daemon. The desktop shell connects to /events for
progress streaming and posts prompts to /research.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, dd, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Port = port
	}

	a, err := buildApp(cfg, dd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/events", a.broadcaster)
	mux.HandleFunc("/research", a.handleResearch(ctx))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: server shutdown: %v", err)
		}
	}()

	log.Printf("Starting Clawdia research core %s on port %d", version.Full(), cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Research core stopped gracefully")
	return nil
}

// handleHealth reports service health and cache stats.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetStats()
	if err != nil {
		log.Printf("WARNING: cache stats: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"version":     version.Info(),
		"page_cache":  stats,
		"search":      a.engine.Stats(),
		"subscribers": a.broadcaster.SubscriberCount(),
		"browser":     a.pool.Available(),
	})
}

// researchRequest is the POST /research body.
type researchRequest struct {
	Prompt   string   `json:"prompt"`
	Criteria []string `json:"criteria,omitempty"`
}

// handleResearch runs one full research execution synchronously and
// returns the summary. Progress streams to /events subscribers while the
// request is in flight.
func (a *app) handleResearch(serverCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
			return
		}
		if req.Prompt == "" {
			http.Error(w, "prompt is required", http.StatusBadRequest)
			return
		}

		spec := a.planSpec(req)
		executor := research.NewExecutor(a.pool, a.store, a.broadcaster)

		// The execution outlives neither the request nor the server.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-serverCtx.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		summary := executor.Execute(ctx, spec)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}

// planSpec classifies and plans a request, honoring caller-supplied
// criteria over the planner's derived ones.
func (a *app) planSpec(req researchRequest) research.TaskSpec {
	classification := a.router.Classify(req.Prompt)
	spec := a.planner.Plan(req.Prompt, classification)
	if len(req.Criteria) > 0 {
		spec.SuccessCriteria = req.Criteria
	}
	return spec
}

// consoleSink logs progress events for CLI one-shot runs.
func consoleSink() progress.Sink {
	return progress.SinkFunc(func(ev progress.Event) {
		log.Printf("[%s] %s", ev.Phase, ev.Message)
	})
}
