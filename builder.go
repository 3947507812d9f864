package agentcanvas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	internalaudit "github.com/agentcanvas/agentcanvas/internal/audit"
	"github.com/agentcanvas/agentcanvas/cookie"
	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/idtoken"
	aclog "github.com/agentcanvas/agentcanvas/log"
	"github.com/agentcanvas/agentcanvas/membership"
	"github.com/agentcanvas/agentcanvas/oauthstate"
	"github.com/agentcanvas/agentcanvas/refresh"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	provider   IdentityProvider
	httpClient *http.Client
	auditSink  AuditSink
	logger     *zap.Logger
	now        func() time.Time
	secret     func() string

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client for the revocation list. It takes
// precedence over Revocation.RedisAddr and is not closed by Engine.Close.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider replaces the HTTP identity provider client, mostly
// for tests. Upstream latency metrics are only recorded for the built-in
// client.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithHTTPClient sets the client used for identity provider calls.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the Engine logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the time source of every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithSecretSource makes the session codec read its secret from fn on every
// call, so a rotated secret takes effect without a rebuild. Session.Secret
// is still validated at build time and fn should return it initially.
// Sessions sealed under a previous secret stop opening after a rotation.
func (b *Builder) WithSecretSource(fn func() string) *Builder {
	b.secret = fn
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the upstream latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, derives the session key, loads or
// generates the identity token key and starts the audit dispatcher and
// membership janitor. Every failure is wrapped in ErrInvalidConfig.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := aclog.OrNop(b.logger)

	engine := &Engine{
		config:  cfg,
		log:     logger.Named("engine"),
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
		admins:  make(map[string]struct{}, len(cfg.Admin.SuperAdminEmails)),
	}
	for _, email := range cfg.Admin.SuperAdminEmails {
		for _, e := range ParseEmailList(email) {
			engine.admins[e] = struct{}{}
		}
	}

	// -------- COOKIES / STATE --------
	cookies, err := cookie.NewBuilder(cfg.BaseURL, cfg.Production)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	engine.cookies = cookies.WithDomain(cfg.Cookie.Domain).WithSessionMaxAge(cfg.Session.Lifetime)
	engine.state = oauthstate.NewGuard(engine.cookies)

	// -------- SESSION CODEC --------
	codecOpts := []session.CodecOption{
		session.WithLifetime(cfg.Session.Lifetime),
		session.WithClock(now),
	}
	if b.secret != nil {
		codecOpts = append(codecOpts, session.WithSecretSource(b.secret))
	}
	codec, err := session.NewCodec(cfg.Session.Secret, codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	engine.codec = codec

	// -------- IDENTITY TOKEN --------
	tokens, err := idtoken.NewManager(idtoken.Config{
		Issuer:        cfg.BaseURL,
		Audience:      cfg.IDToken.Audience,
		Lifetime:      cfg.IDToken.Lifetime,
		PrivateKeyPEM: cloneBytes(cfg.IDToken.SigningKeyPEM),
		KeyID:         cfg.IDToken.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if tokens.Generated() {
		engine.log.Warn("identity token signing key generated at startup; configure a PEM key for production")
	}
	engine.tokens = tokens
	engine.verifier = idtoken.VerifierFor(tokens)
	engine.policy = refresh.NewPolicy(refresh.WithClock(now), refresh.WithWindow(cfg.IDToken.RefreshWindow))

	// -------- IDENTITY PROVIDER --------
	provider := b.provider
	if provider == nil {
		client, err := idp.New(idp.Config{
			BaseURL:     cfg.Upstream.BaseURL,
			APIKey:      cfg.Upstream.APIKey,
			ClientID:    cfg.Upstream.ClientID,
			RedirectURI: cfg.CallbackURL(),
			Provider:    cfg.OAuth.Provider,
			Timeout:     cfg.Upstream.Timeout,
			HTTPClient:  b.httpClient,
		}, idp.WithLogger(logger), idp.WithObserver(engine.observeUpstream))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		provider = client
	}
	engine.idp = provider

	// -------- MEMBERSHIP CACHE --------
	engine.memberships = membership.New(provider,
		membership.WithTTL(cfg.Membership.TTL),
		membership.WithClock(now),
		membership.WithLogger(logger),
		membership.WithHooks(membership.Hooks{
			Hit:        func() { engine.metricInc(MetricMembershipHit) },
			Miss:       func() { engine.metricInc(MetricMembershipMiss) },
			FetchError: func() { engine.metricInc(MetricMembershipFetchFailure) },
			Invalidate: func() { engine.metricInc(MetricMembershipInvalidated) },
		}),
	)

	// -------- REVOCATION --------
	if cfg.Revocation.Enabled {
		client := b.redis
		if client == nil {
			if cfg.Revocation.RedisAddr == "" {
				return nil, fmt.Errorf("%w: revocation requires a redis client or Revocation RedisAddr", ErrInvalidConfig)
			}
			owned := redis.NewClient(&redis.Options{
				Addr:     cfg.Revocation.RedisAddr,
				Password: cfg.Revocation.RedisPassword,
				DB:       cfg.Revocation.RedisDB,
			})
			engine.ownedRedis = owned
			client = owned
		}
		engine.revocations = session.NewRevocationStore(client, cfg.Revocation.Prefix)
	}

	// -------- AUDIT --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev internalaudit.Event) {
			engine.log.Debug("audit event dropped", zap.String("event", ev.EventType))
		},
	}, b.auditSink)

	// -------- JANITOR --------
	if cfg.Membership.JanitorInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		engine.stopJanitor = cancel
		engine.janitorDone = make(chan struct{})
		go func() {
			defer close(engine.janitorDone)
			engine.memberships.Run(ctx, cfg.Membership.JanitorInterval)
		}()
	}

	b.built = true

	return engine, nil
}
