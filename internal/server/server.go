// Package server provides HTTP server initialization and lifecycle management
// for the rollcall resolution API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/engine"
	"github.com/scrypster/rollcall/pkg/types"
	"github.com/scrypster/rollcall/web/handlers"
)

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub for wiring review task broadcasts.
func Start(ctx context.Context, cfg *config.Config, eng *engine.Engine) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	// Review dashboards connect from the configured host
	wsOrigins := []string{
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		fmt.Sprintf("localhost:%d", cfg.Server.Port),
	}
	wsHub := handlers.NewWebSocketHub(wsOrigins)
	go wsHub.Run()

	// Push newly created review tasks to connected dashboards
	eng.OnTaskCreated(func(task *types.ReviewTask) {
		wsHub.Broadcast(handlers.TaskEvent{Type: "task_created", Task: task})
	})

	rateLimiter := handlers.NewRateLimiter(cfg.Security.RateLimitPerSec, cfg.Security.RateLimitBurst)

	apiHandlers := handlers.NewAPIHandlers(eng, cfg)

	// API routes (bearer auth when a token is configured)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/mentions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiHandlers.ResolveMention(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/identities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.ListIdentities(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/identities/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.GetIdentity(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/merge/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiHandlers.PreviewMerge(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/merge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiHandlers.Merge(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.ListTasks(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/tasks/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiHandlers.ResolveTask(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.GetStats(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint, no auth required, used by monitoring
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
