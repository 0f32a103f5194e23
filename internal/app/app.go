package app

import (
	"context"
	"log/slog"

	"authd/internal/api/audit"
	"authd/internal/api/claims"
	"authd/internal/app/httpapp"
	"authd/internal/config"
	httprouter "authd/internal/http"
	"authd/internal/lib/jwt"
	"authd/internal/services/authorize"
	"authd/internal/services/registry"
	"authd/internal/services/token"
	tokeninterfaces "authd/internal/services/token/interfaces"
	"authd/internal/storage/keys"
	"authd/internal/storage/postgres"
	"authd/internal/storage/postgres/repositories"
	"authd/internal/storage/redis"
)

type App struct {
	HTTPSrv *httpapp.App
	storage *postgres.Storage
	cache   *redis.Store
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) *App {
	storage, err := postgres.New(ctx)
	if err != nil {
		panic(err)
	}
	cache, err := redis.NewStore(&cfg.Redis)
	if err != nil {
		panic(err)
	}

	keyStore := newKeyStore(cfg)
	codec := jwt.NewCodec(cfg.Issuer, keyStore)

	auditSink := newAuditSink(log, cfg)
	claimsProvider := newClaimsProvider(log, cfg)

	registryService := registry.New(log, repositories.NewClientRepository(storage.Pool()))

	authorizeService := authorize.New(
		log,
		registryService,
		cache,
		repositories.NewAuthCodeRepository(storage.Pool()),
		repositories.NewConsentRepository(storage.Pool()),
		auditSink,
		cfg.AuthRequestExpiry,
		cfg.AuthCodeExpiry,
	)

	tokenService := token.New(
		log,
		registryService,
		repositories.NewTokenStore(storage),
		cache,
		codec,
		claimsProvider,
		auditSink,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenExpiry,
	)

	router := httprouter.NewRouter(httprouter.RouterDeps{
		Issuer:     cfg.Issuer,
		LoginURL:   cfg.LoginURL,
		ConsentURL: cfg.ConsentURL,
		Codec:      codec,
		Authorize:  authorizeService,
		Token:      tokenService,
	})

	return &App{
		HTTPSrv: httpapp.New(log, router, cfg.HTTP.Port),
		storage: storage,
		cache:   cache,
	}
}

// Close releases storage connections after the server has stopped.
func (a *App) Close() {
	a.storage.CloseStorage()
	_ = a.cache.Close()
}

func newKeyStore(cfg *config.Config) jwt.KeyStore {
	if cfg.Keys.VaultEnabled {
		store, err := keys.NewVaultStore(
			cfg.Keys.VaultAddr,
			cfg.Keys.VaultToken,
			cfg.Keys.VaultMount,
			cfg.Keys.VaultKeyPath,
			cfg.Keys.BootstrapPublicPEM,
		)
		if err != nil {
			panic(err)
		}
		return store
	}
	store, err := keys.NewStaticStore(cfg.Keys.KeyDir, cfg.Keys.BootstrapPublicPEM)
	if err != nil {
		panic(err)
	}
	return store
}

func newAuditSink(log *slog.Logger, cfg *config.Config) audit.Sink {
	if cfg.Audit.AMQPURL == "" {
		return audit.NewSlogSink(log)
	}
	sink, err := audit.NewAMQPSink(log, cfg.Audit.AMQPURL, cfg.Audit.Exchange)
	if err != nil {
		panic(err)
	}
	return sink
}

// newClaimsProvider returns nil when no claims service is configured; the
// token service then mints ID tokens with the subject only.
func newClaimsProvider(log *slog.Logger, cfg *config.Config) tokeninterfaces.ClaimsProvider {
	if cfg.Claims.BaseURL == "" {
		return nil
	}
	return claims.NewClient(log, cfg.Claims.BaseURL, cfg.Claims.Timeout)
}
