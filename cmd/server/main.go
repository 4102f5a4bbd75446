// Package main is the entry point for the smbshare-mcp server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/auth"
	"github.com/jamesprial/smbshare-mcp/internal/config"
	"github.com/jamesprial/smbshare-mcp/internal/jobs"
	"github.com/jamesprial/smbshare-mcp/internal/mounts"
	"github.com/jamesprial/smbshare-mcp/internal/printing"
	"github.com/jamesprial/smbshare-mcp/internal/process"
	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/jamesprial/smbshare-mcp/internal/smb"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/jamesprial/smbshare-mcp/internal/view"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultConfigPath = "/etc/smbshare-mcp/config.yaml"
	pruneInterval     = time.Hour
)

func main() {
	cfg := loadConfig()
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	tokenBefore := cfg.Server.AuthToken
	token, err := config.EnsureAuthToken(cfg)
	if err != nil {
		log.Printf("warning: could not generate auth token: %v; running without authentication", err)
	} else if tokenBefore == "" {
		log.Printf("generated auth token (set %sAUTH_TOKEN to persist): %s", config.EnvPrefix, token)
	}

	// Open audit log writer if enabled.
	var auditLogger *safety.AuditLogger
	if cfg.Audit.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.LogPath), 0o750); err != nil {
			log.Printf("warning: could not create audit log directory: %v", err)
		}
		f, err := os.OpenFile(cfg.Audit.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Printf("warning: could not open audit log %q: %v; audit logging disabled", cfg.Audit.LogPath, err)
		} else {
			auditLogger = safety.NewAuditLogger(f)
			defer f.Close()
		}
	}

	// Build safety components.
	shareFilter := safety.NewFilter(cfg.Safety.Shares.Allowlist, cfg.Safety.Shares.Denylist)
	printerFilter := safety.NewFilter(cfg.Safety.Printers.Allowlist, cfg.Safety.Printers.Denylist)

	var destructive []string
	destructive = append(destructive, jobs.DestructiveTools...)
	destructive = append(destructive, shares.DestructiveTools...)
	destructive = append(destructive, printing.DestructiveTools...)
	confirm := safety.NewConfirmationTracker(destructive)

	// Metrics.
	var (
		promRegistry *prometheus.Registry
		procMetrics  process.Metrics
	)
	if cfg.Metrics.Enabled {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		procMetrics = process.NewPrometheusMetrics(promRegistry)
	}

	// Command layer and managers.
	registry := jobs.NewRegistry(process.ExecSpawner{}, procMetrics)
	client := smb.NewClient(registry, smb.Binaries{
		Smbclient: cfg.Commands.Smbclient,
		MountCifs: cfg.Commands.MountCifs,
		Umount:    cfg.Commands.Umount,
	})
	shareMgr := shares.NewSMBShareManager(client, mounts.NewTable(cfg.Paths.Proc), cfg.Paths.MountRoot, smb.MountOptions{
		Version:  cfg.Mount.Version,
		UID:      cfg.Mount.UID,
		GID:      cfg.Mount.GID,
		FileMode: cfg.Mount.FileMode,
		DirMode:  cfg.Mount.DirMode,
		ReadOnly: cfg.Mount.ReadOnly,
		Extra:    cfg.Mount.Extra,
	})

	if cfg.Paths.QueueDir != "" {
		if err := os.MkdirAll(cfg.Paths.QueueDir, 0o750); err != nil {
			log.Fatalf("failed to create queue directory: %v", err)
		}
	}
	queue, err := printing.OpenQueue(cfg.Paths.QueueDir)
	if err != nil {
		log.Fatalf("failed to open print queue: %v", err)
	}
	printMgr, err := printing.NewManager(queue, client)
	if err != nil {
		log.Fatalf("failed to start print manager: %v", err)
	}

	icons, err := view.LoadIcons(cfg.Paths.IconDir)
	if err != nil {
		log.Printf("warning: %v; using built-in icons", err)
		icons = view.DefaultIcons()
	}

	// Build MCP server.
	mcpServer := server.NewMCPServer(
		"smbshare-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	// Register all tools.
	var registrations []tools.Registration
	registrations = append(registrations, shares.ShareTools(shareMgr, shareFilter, confirm, auditLogger)...)
	registrations = append(registrations, view.ViewTools(shareMgr, icons, shareFilter, auditLogger)...)
	registrations = append(registrations, printing.PrintTools(printMgr, printerFilter, confirm, auditLogger)...)
	registrations = append(registrations, jobs.JobTools(registry, confirm, auditLogger)...)

	names := tools.RegisterAll(mcpServer, registrations)
	log.Printf("registered %d tools", len(names))

	// Build Streamable HTTP server and wrap with auth middleware.
	mux := http.NewServeMux()
	mux.Handle("/", server.NewStreamableHTTPServer(mcpServer))
	if promRegistry != nil {
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	authMiddleware := auth.NewAuthMiddleware(cfg.Server.AuthToken)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           authMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	go prunePrintQueue(pruneCtx, printMgr, cfg.Print.Retention)

	// Graceful shutdown on SIGINT / SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("smbshare-mcp listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	stopPrune()

	// Printing first so aborted prints settle as cancelled in the queue.
	printMgr.Close()
	registry.AbortAll()
	if err := queue.Close(); err != nil {
		log.Printf("print queue close error: %v", err)
	}
	log.Println("server stopped")
}

// prunePrintQueue drops finished print entries older than retention until
// ctx ends. A zero retention keeps everything.
func prunePrintQueue(ctx context.Context, mgr *printing.Manager, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := mgr.Prune(retention)
		if err != nil {
			log.Printf("print queue prune error: %v", err)
		} else if n > 0 {
			log.Printf("pruned %d finished print jobs", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// loadConfig attempts to read the config file from the path specified by
// SMBSHARE_MCP_CONFIG_PATH or the default path. If the file cannot be read,
// DefaultConfig is returned.
func loadConfig() *config.Config {
	path := os.Getenv(config.EnvPrefix + "CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Printf("could not load config from %q (%v), using defaults", path, err)
		return config.DefaultConfig()
	}

	log.Printf("loaded config from %q", path)
	return cfg
}
