package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lifeflow/authcore/session"
	"github.com/lifeflow/authcore/token"
)

// DefaultSessionTTL is the expiry horizon of every session record created
// by login and reset-password.
const DefaultSessionTTL = 6 * 30 * 24 * time.Hour

// DefaultRole is assigned to newly registered identities.
const DefaultRole = "donor"

// Config tunes a Service. The zero value is usable: defaults apply, audit
// and metrics stay off, and logging goes to slog.Default().
type Config struct {
	// SessionTTL is the expiry horizon for new session records. Defaults
	// to DefaultSessionTTL.
	SessionTTL time.Duration

	// DefaultRole is the role label stamped on registered identities.
	DefaultRole string

	Logger *slog.Logger

	Audit     AuditConfig
	AuditSink AuditSink
	Metrics   MetricsConfig
}

// Service is the authentication orchestrator. It holds no per-request
// state; all methods are safe for concurrent use.
type Service struct {
	identities IdentityStore
	issuer     *token.Issuer
	sessions   *session.Store
	otp        OTPService
	email      EmailSender

	logger      *slog.Logger
	metrics     *Metrics
	audit       *auditDispatcher
	sessionTTL  time.Duration
	defaultRole string
}

// New wires a Service from its collaborators. Every collaborator is
// required; cfg gaps fall back to package defaults.
func New(
	identities IdentityStore,
	issuer *token.Issuer,
	sessions *session.Store,
	otp OTPService,
	email EmailSender,
	cfg Config,
) (*Service, error) {
	if identities == nil {
		return nil, errors.New("identity store is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if otp == nil {
		return nil, errors.New("otp service is required")
	}
	if email == nil {
		return nil, errors.New("email sender is required")
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = DefaultRole
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		identities:  identities,
		issuer:      issuer,
		sessions:    sessions,
		otp:         otp,
		email:       email,
		logger:      cfg.Logger,
		metrics:     NewMetrics(cfg.Metrics),
		audit:       newAuditDispatcher(cfg.Audit, cfg.AuditSink),
		sessionTTL:  cfg.SessionTTL,
		defaultRole: cfg.DefaultRole,
	}, nil
}

// Close stops the audit dispatcher after draining buffered events.
func (s *Service) Close() {
	s.audit.Close()
}

// Metrics exposes the in-process counters.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

func (s *Service) emitAudit(ctx context.Context, eventType string, identityID int64, email string, success bool, cause error) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, newAuditEvent(eventType, identityID, email, clientIPFromContext(ctx), success, cause))
}

// newSessionRecord captures the caller's device context for one fresh
// session. The user agent is mandatory; the IP falls back to UnknownIP.
func (s *Service) newSessionRecord(ctx context.Context, identityID int64, refreshToken string) (*session.Record, error) {
	userAgent, err := userAgentFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &session.Record{
		IdentityID:   identityID,
		RefreshToken: refreshToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
		Valid:        true,
		IP:           clientIPFromContext(ctx),
		UserAgent:    userAgent,
		DeviceClass:  string(ClassifyDevice(userAgent)),
	}, nil
}
