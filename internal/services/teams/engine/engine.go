// Package engine coordinates team formation: the team registry, the
// membership ledger, the join-request and invitation brokers, and the admin
// approval workflow. Every check-then-mutate operation delegates to a
// composite storage method so its invariant checks and cascades commit
// atomically; the engine owns identity, permissions, policy, and post-commit
// notification.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/platform/id"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/policy"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// Role identifies the authorization level of an actor.
type Role string

const (
	// RoleParticipant is a regular event participant.
	RoleParticipant Role = "participant"
	// RoleAdmin is an event administrator.
	RoleAdmin Role = "admin"
)

// Actor is the authenticated identity behind an engine call.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

var (
	errActorRequired = apperrors.New(apperrors.CodeValidation, "actor id is required")
	errAdminOnly     = apperrors.New(apperrors.CodePermission, "operation requires the admin role")
)

// Engine executes formation operations against a transactional store.
type Engine struct {
	store    storage.EngineStore
	policy   policy.Provider
	notifier notify.Notifier
	now      func() time.Time
	newID    func() (string, error)
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the post-commit event notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the engine id generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// New creates a formation engine over store, sizing teams via provider.
func New(store storage.EngineStore, provider policy.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		policy:   provider,
		notifier: notify.NopNotifier{},
		now:      time.Now,
		newID:    id.NewID,
		tracer:   otel.Tracer("hackmate/teams/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validActor(actor Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return errActorRequired
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if err := validActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	return nil
}

// maxTeamSize resolves the configured capacity ceiling.
func (e *Engine) maxTeamSize(ctx context.Context) (int, error) {
	limits, err := e.policy.TeamSizeLimits(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUnknown, "resolve team size limits", err)
	}
	if err := policy.Validate(limits); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUnknown, "invalid team size limits", err)
	}
	return limits.Max, nil
}

// storeError maps storage sentinels onto domain error codes. Errors already
// carrying a code pass through unchanged.
func storeError(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, notFoundMessage, err)
	}
	if errors.Is(err, storage.ErrTransient) {
		return apperrors.Wrap(apperrors.CodeTransient,
			"operation conflicted with concurrent writes, retry", err)
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "storage operation failed", err)
}

// emit sends one event; cascade helpers fan out per affected id.
func (e *Engine) emit(ctx context.Context, event notify.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now().UTC()
	}
	e.notifier.Notify(ctx, event)
}

func (e *Engine) emitExpiredRequests(ctx context.Context, ids []string) {
	for _, requestID := range ids {
		e.emit(ctx, notify.Event{Kind: notify.KindRequestExpired, SubjectID: requestID})
	}
}

func (e *Engine) emitRejectedInvitations(ctx context.Context, ids []string) {
	for _, invitationID := range ids {
		e.emit(ctx, notify.Event{Kind: notify.KindInvitationRejected, SubjectID: invitationID})
	}
}
