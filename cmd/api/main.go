package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/storeops-io/storeops/internal/httpapi"
	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/obs"
	"github.com/storeops-io/storeops/internal/store/pg"
	"github.com/storeops-io/storeops/internal/tenantdb"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

// tenantTables is the gateway allow-list. A table added to the schema is not
// tenant-scoped until it appears here.
var tenantTables = []string{"tasks", "audits", "campaigns"}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("STOREOPS_PG_DSN")
	if dsn == "" {
		log.Fatal("missing STOREOPS_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	// Token secrets are mandatory; the process refuses to start without them
	// rather than ever signing with a blank key.
	tokens, err := identity.NewTokenService(identity.TokenConfig{
		AccessSecret:  os.Getenv("STOREOPS_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("STOREOPS_REFRESH_SECRET"),
		RefreshTTL:    envDuration("STOREOPS_REFRESH_TTL"),
	})
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	authSvc, err := identity.NewService(store, store, store, tokens)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	registry, err := identity.NewRegistry(store, store)
	if err != nil {
		log.Fatalf("role registry: %v", err)
	}
	gateway := tenantdb.New(store.DB(), tenantTables...)

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api := httpapi.New(httpapi.Config{
		ReadyProbe: probe,
		Version:    version,
		Auth:       authSvc,
		Registry:   registry,
		Platform:   store,
		Gateway:    gateway,
	})

	addr := os.Getenv("STOREOPS_ADDR")
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

	var grpcSrv *grpc.Server
	if grpcAddr := os.Getenv("STOREOPS_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCHealthServer(probe).Register(grpcSrv)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		log.Printf("gRPC health on %s", grpcAddr)
	}

	log.Printf("Starting storeops-api %s on %s", version, srv.Addr)

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
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	log.Println("Stopped")
}

// envDuration parses an env var holding seconds or a Go duration; zero means
// use the default.
func envDuration(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}
