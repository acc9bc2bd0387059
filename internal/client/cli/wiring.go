package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/secretvault/internal/client/adapters/local"
	"github.com/dmitrijs2005/secretvault/internal/client/adapters/remote"
	"github.com/dmitrijs2005/secretvault/internal/client/config"
	"github.com/dmitrijs2005/secretvault/internal/client/docstore"
	"github.com/dmitrijs2005/secretvault/internal/client/identity"
	"github.com/dmitrijs2005/secretvault/internal/client/kv"
	"github.com/dmitrijs2005/secretvault/internal/client/objectstore"
	"github.com/dmitrijs2005/secretvault/internal/client/session"
	"github.com/dmitrijs2005/secretvault/internal/client/validation"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

const redisKeyPrefix = "secretvault:"

// closer releases a backend opened during wiring.
type closer func(ctx context.Context) error

// backends is everything NewApp opens.
type backends struct {
	kv       kv.Store
	docs     docstore.Store
	objects  objectstore.Store
	accounts identity.Accounts
	closers  []closer
}

func (b *backends) close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// openBackends opens the drivers selected by cfg. On error everything
// already opened is closed again.
func openBackends(ctx context.Context, cfg *config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.close(ctx)
		}
	}()

	if b.kv, err = openKV(ctx, cfg, b); err != nil {
		return nil, err
	}

	var pg *sql.DB
	postgres := func() (*sql.DB, error) {
		if pg != nil {
			return pg, nil
		}
		db, err := docstore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		pg = db
		return db, nil
	}

	switch cfg.DocstoreDriver {
	case docstore.DriverMongo:
		client, err := docstore.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)
		b.docs = docstore.NewMongoStore(client.Database(cfg.MongoDatabase))
	case docstore.DriverPostgres:
		db, err := postgres()
		if err != nil {
			return nil, err
		}
		b.docs = docstore.NewPostgresStore(db)
	default:
		b.docs = docstore.NewMemoryStore()
	}

	switch cfg.ObjectstoreDriver {
	case objectstore.DriverS3:
		b.objects, err = objectstore.NewS3Store(ctx, objectstore.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicURLs:    cfg.S3PublicURLs,
			PublicBaseURL: cfg.S3PublicBaseURL,
			PresignTTL:    cfg.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
	default:
		b.objects = objectstore.NewMemoryStore(cfg.S3Bucket)
	}

	switch cfg.IdentityDriver {
	case identity.DriverPostgres:
		db, err := postgres()
		if err != nil {
			return nil, err
		}
		b.accounts = identity.NewPostgresAccounts(db)
	default:
		b.accounts = identity.NewMemoryAccounts()
	}

	return b, nil
}

func openKV(ctx context.Context, cfg *config.Config, b *backends) (kv.Store, error) {
	switch cfg.KVDriver {
	case kv.DriverSQLite:
		db, err := kv.OpenSQLite(ctx, cfg.KVDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		return kv.NewSQLiteStore(db), nil
	case kv.DriverRedis:
		rdb, err := kv.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return rdb.Close() })
		return kv.NewRedisStore(rdb, redisKeyPrefix), nil
	default:
		return kv.NewMemoryStore(), nil
	}
}

// sessionSecret returns the configured token key, or a random one that
// only lasts for this process.
func sessionSecret(ctx context.Context, cfg *config.Config, log logging.Logger) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}
	secret := common.GenerateRandByteArray(32)
	if secret == nil {
		return nil, errors.New("generate session secret")
	}
	log.Warn(ctx, "secret_key not set, sessions will not survive a restart")
	return secret, nil
}

func newManager(ctx context.Context, cfg *config.Config, b *backends, log logging.Logger, observe func(remote.PhaseEvent)) (*session.Manager, error) {
	secret, err := sessionSecret(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	provider := identity.NewProvider(b.accounts, b.kv, secret, cfg.SessionTTL, log)
	remoteAdapter := remote.New(b.objects, b.docs, log,
		remote.WithDescending(cfg.GalleryOrder == config.OrderDesc),
		remote.WithWorkers(cfg.UploadWorkers),
		remote.WithPhaseObserver(observe),
	)

	scfg := session.DefaultConfig()
	scfg.Upload = validation.Policy{MaxBytes: cfg.MaxUploadBytes, AllowVideo: cfg.AllowVideo}
	scfg.Profile = validation.Policy{MaxBytes: cfg.MaxProfileBytes}

	return session.NewManager(session.Deps{
		Identity: provider,
		Local:    local.New(b.kv, log),
		Remote:   remoteAdapter,
		Docs:     b.docs,
		Objects:  b.objects,
		Logger:   log,
	}, scfg), nil
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info(ctx, "metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server stopped", "err", err)
		}
	}()
}

func describeBackends(cfg *config.Config) string {
	return fmt.Sprintf("kv=%s docs=%s objects=%s identity=%s", cfg.KVDriver, cfg.DocstoreDriver, cfg.ObjectstoreDriver, cfg.IdentityDriver)
}
