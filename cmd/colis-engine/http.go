package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/ColisBox/config"
	"github.com/BearBump/ColisBox/internal/registry"
	"github.com/BearBump/ColisBox/internal/services/engine"
)

type engineHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	engine   *engine.Engine
	registry *registry.Registry
	provider providerClient
	cfg      *config.Config
}

type addPackageRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	FriendlyName   string `json:"friendly_name,omitempty"`
}

func runEngineHTTPServer(ctx context.Context, opts engineHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(opts.engine.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Секреты наружу не отдаём, только операционные настройки.
		out := map[string]any{
			"apiVersion":            opts.cfg.Provider.APIVersion,
			"storageBackend":        opts.cfg.Storage.Backend,
			"mailboxConfigured":     opts.cfg.Mailbox.Server != "",
			"mailboxDedicated":      opts.cfg.Mailbox.Dedicated,
			"updateIntervalMinutes": opts.cfg.Engine.UpdateIntervalMinutes,
			"emailIntervalMinutes":  opts.cfg.Engine.EmailIntervalMinutes,
			"archiveAfterDays":      opts.cfg.Engine.ArchiveAfterDays,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/packages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(opts.registry.Snapshot())
	})

	r.Post("/packages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req addPackageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackingNumber == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"tracking_number is required"}`))
			return
		}
		if opts.engine.AddPackage(r.Context(), req.TrackingNumber, req.Carrier, req.FriendlyName) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"added":true}`))
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"added":false}`))
	})

	r.Delete("/packages/{number}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		number := chi.URLParam(r, "number")
		if opts.engine.RemovePackage(r.Context(), number) {
			_, _ = w.Write([]byte(`{"removed":true}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"removed":false}`))
	})

	r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		opts.engine.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Post("/archive-delivered", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		count := opts.engine.ArchiveDelivered(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]int{"archived": count})
	})

	r.Get("/quota", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q, err := opts.provider.GetQuota(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	})

	// Swagger с no-cache и cachebuster-ом, чтобы браузер не залипал на старой схеме.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
