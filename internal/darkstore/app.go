package darkstore

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/suevga/suvega-darkstore-sub001/internal/api"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/auth"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/config"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/data/db"
	"github.com/suevga/suvega-darkstore-sub001/internal/data/stores"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
	"github.com/suevga/suvega-darkstore-sub001/internal/store/jsonfile"
)

// App is the central entry point for all darkstore operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Config   *config.Config
	Registry *Registry
	Metrics  *metrics.Metrics
}

// NewApp rehydrates the registry from storage.
func NewApp(cfg *config.Config, storage kv.KV) *App {
	return &App{
		Config:   cfg,
		Registry: NewRegistry(storage),
		Metrics:  metrics.New(),
	}
}

// OpenStorage opens the backend selected by cfg.Storage.Driver. The returned
// closer releases it and is never nil.
func OpenStorage(cfg *config.Config) (kv.KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), noop, nil
	case config.DriverJSONFile:
		return jsonfile.NewKV(cfg.StateDir()), noop, nil
	case config.DriverSQLite, "":
		database, err := db.Open(cfg.DataDir, db.DefaultOpenOptions())
		if err != nil && stores.IsCorruptionError(err) {
			log.Warn().Err(err).Str("data_dir", cfg.DataDir).Msg("database corrupt, moving it aside")
			if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
				return nil, noop, errors.Join(err, rerr)
			}
			database, err = db.Open(cfg.DataDir, db.DefaultOpenOptions())
		}
		if err != nil {
			return nil, noop, fmt.Errorf("open database: %w", err)
		}
		return stores.NewKVStore(database), database.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Session resolves the operator session from the configured token and
// binds the registry to its dark store. Cached orders, notifications and
// riders of another dark store are dropped.
func (a *App) Session() (auth.Session, error) {
	sess, err := auth.FromToken(a.Config.Session.Token, a.Config.Session.DarkStoreID)
	if err != nil {
		return auth.Session{}, err
	}

	if previous, switched := a.Registry.Claim(sess.DarkStoreID); switched {
		log.Info().
			Str("previous", previous).
			Str("dark_store_id", sess.DarkStoreID).
			Msg("dark store changed, cleared cached session data")
	}
	return sess, nil
}

// Client creates a REST client authenticated as sess.
func (a *App) Client(sess auth.Session) (*api.Client, error) {
	return api.New(a.Config.API.BaseURL, sess.Token, a.Config.API.Timeout)
}

// Service resolves the session and returns a Service for its dark store.
func (a *App) Service(opts ...ServiceOption) (*Service, auth.Session, error) {
	sess, err := a.Session()
	if err != nil {
		return nil, auth.Session{}, fmt.Errorf("resolve session: %w", err)
	}

	client, err := a.Client(sess)
	if err != nil {
		return nil, auth.Session{}, err
	}

	opts = append([]ServiceOption{WithMetrics(a.Metrics)}, opts...)
	return NewService(a.Registry, client, sess.DarkStoreID, opts...), sess, nil
}
