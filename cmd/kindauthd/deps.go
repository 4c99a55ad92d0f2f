package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	kindauth "github.com/MrEthical07/kindauth"
	"github.com/MrEthical07/kindauth/config"
	"github.com/MrEthical07/kindauth/messaging"
	pgstore "github.com/MrEthical07/kindauth/store/postgres"
)

// openEngine builds an Engine over the configured backend. The returned
// closer releases the engine and its connections.
func openEngine(ctx context.Context, env config.Env, logger *slog.Logger) (*kindauth.Engine, func(), error) {
	cfg, err := env.EngineConfig()
	if err != nil {
		return nil, nil, err
	}

	b := kindauth.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithGateway(gatewayFor(env, logger))
	if env.AuditEnabled {
		b = b.WithAuditSink(kindauth.NewSlogSink(logger))
	}

	var release func()
	switch env.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.Connect(ctx, env.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		b = b.WithStores(pgstore.NewAccountStore(pool), pgstore.NewOTPLedger(pool), pgstore.NewBlacklist(pool))
		release = pool.Close
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     env.Redis.Addr,
			Password: env.Redis.Password,
			DB:       env.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("%w: %v", kindauth.ErrStoreUnavailable, err)
		}
		b = b.WithRedis(rdb)
		release = func() { _ = rdb.Close() }
	}

	engine, err := b.Build()
	if err != nil {
		release()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		release()
	}, nil
}

// gatewayFor routes email through SMTP and phone through the SMS endpoint
// when configured, and logs messages otherwise.
func gatewayFor(env config.Env, logger *slog.Logger) messaging.Router {
	fallback := messaging.LogSender{Logger: logger}
	r := messaging.Router{Email: fallback, Phone: fallback}
	if env.SMTP.Host != "" {
		r.Email = messaging.NewSMTPMailer(messaging.SMTPConfig{
			Host:     env.SMTP.Host,
			Port:     env.SMTP.Port,
			Username: env.SMTP.Username,
			Password: env.SMTP.Password,
			From:     env.SMTP.From,
		})
	}
	if env.SMS.Endpoint != "" {
		r.Phone = messaging.NewSMSClient(env.SMS.Endpoint, env.SMS.APIKey, env.SMS.SenderID)
	}
	return r
}
