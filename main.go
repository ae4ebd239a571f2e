package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"Acta/internal/auth"
	"Acta/internal/calc/report"
	"Acta/internal/calc/table"
	"Acta/internal/config"
	"Acta/internal/logging"
	"Acta/internal/lookup"
	"Acta/internal/metrics"
	"Acta/internal/repo"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var wg sync.WaitGroup

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func HandleList(mux *mux.Router, cfg config.Config, store repo.Repository, m *metrics.Metrics, log *zap.Logger) {
	authEnv := &auth.Authenv{JWTkey: []byte(cfg.TokenKey), Repo: store, Log: log, Secure: cfg.TLS()}
	lookupH := &lookup.Handler{Repo: store, Log: log}
	reportH := &report.Handler{
		Gen: &report.Generator{
			Dir:     cfg.ReportsDir,
			Table:   table.Options{Instrument: cfg.Lab.Instrument, Caption: cfg.Lab.Caption},
			Log:     log,
			Metrics: m,
			Store:   store,
		},
		Log: log,
	}

	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.Lab.RateLimit.PerSecond), cfg.Lab.RateLimit.Burst)

	mux.Handle("/metrics", m.Handler()).Methods("GET")

	api := mux.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)

	api.HandleFunc("/login", authEnv.AuthHandler).Methods("POST")
	api.HandleFunc("/register", authEnv.RegisterHandler).Methods("POST")
	api.HandleFunc("/protocols", reportH.Protocols).Methods("GET")

	secureApi := api.PathPrefix("/user").Subrouter()
	secureApi.Use(authEnv.AuthMiddleware)

	secureApi.HandleFunc("/reports", reportH.Generate).Methods("POST")
	secureApi.HandleFunc("/reports/{protocol}/table", reportH.Table).Methods("POST")
	secureApi.HandleFunc("/reports/{id}/{format}", reportH.Download).Methods("GET")

	secureApi.HandleFunc("/clients", lookupH.GetClients).Methods("GET")
	secureApi.HandleFunc("/clients", lookupH.AddClient).Methods("POST")
	secureApi.HandleFunc("/concrete-classes", lookupH.GetConcreteClasses).Methods("GET")
	secureApi.HandleFunc("/concrete-classes", lookupH.AddConcreteClass).Methods("POST")
}

func main() {
	cfg, err := config.Load(".env", "acta.yaml")
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store repo.Repository
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, accounts and report log are kept in memory")
		store = repo.NewMemory()
	} else {
		db, err := repo.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		store = repo.NewPostgres(db)
	}

	mux := mux.NewRouter()
	HandleList(mux, cfg, store, metrics.New(), log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting server", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		var err error
		if cfg.TLS() {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, closing active connections")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	wg.Wait()
	log.Info("server stopped")
}
