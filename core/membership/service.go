package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/period"
	"github.com/mateatletas/backend/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("membership not found")
	ErrPeriodElapsed    = errors.New("membership period has already elapsed")
	ErrAlreadyExists    = errors.New("a membership for this period already exists")
	ErrNoCurrent        = errors.New("no current membership")
	ErrPeriodOutOfRange = fmt.Errorf("period year must not exceed %d", maxYear)

	nowFunc = time.Now // mockable
)

// TransitionError is returned on a status change the lifecycle does not allow.
type TransitionError struct {
	From, To Status
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("cannot change membership status from %q to %q", err.From, err.To)
}

type (
	Repository interface {
		// CreateMembership returns ErrAlreadyExists when m.UserID already has a non-Cancelada
		// Membership for m.Period. The check and the insert are atomic.
		CreateMembership(ctx context.Context, m Membership) (Membership, error)
		GetMembership(ctx context.Context, id string) (Membership, error)
		QueryMemberships(ctx context.Context, filter *QueryFilter) ([]Membership, error)
		UpdateMembership(ctx context.Context, m Membership) (Membership, error)
		// ExpireMemberships moves every Activa Membership whose ExpiresAt is before now to Vencida.
		// UpdatedAt is set to now.
		ExpireMemberships(ctx context.Context, now time.Time) (int, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
		loc   *time.Location
	}
)

// NewService returns a membership Service. Expirations are computed in loc (time.Local if nil).
func NewService(repo Repository, users UserGetter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, users: users, loc: loc}
}

// Expiration computes the expiration instant of a "YYYY-MM" period.
func (svc *Service) Expiration(p string) (Expiration, error) {
	parsed, err := period.Parse(p)
	if err != nil {
		return Expiration{}, err
	}
	return Expiration{Period: parsed.String(), ExpiresAt: parsed.ExpiresAt(svc.loc)}, nil
}

// Create registers a Pendiente Membership of nm.UserID for nm.Period.
func (svc *Service) Create(ctx context.Context, nm NewMembership) (Membership, error) {
	p, err := parsePeriod(nm.Period)
	if err != nil {
		return Membership{}, err
	}
	if _, err = svc.users.GetByID(ctx, nm.UserID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Membership{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Membership{}, err
	}

	now := nowFunc().UTC()
	m, err := svc.repo.CreateMembership(ctx, Membership{
		UserID:    nm.UserID,
		Period:    p.String(),
		Status:    StatusPending,
		ExpiresAt: p.ExpiresAt(svc.loc),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, ErrAlreadyExists) {
		return Membership{}, core.NewValidationError(ErrAlreadyExists, core.FieldError{Field: "period", Error: ErrAlreadyExists.Error()})
	}
	return m, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (Membership, error) {
	if id == "" {
		return Membership{}, ErrNotFound
	}
	return svc.repo.GetMembership(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Membership, error) {
	return svc.repo.QueryMemberships(ctx, filter)
}

// Activate confirms the payment of a Pendiente Membership.
func (svc *Service) Activate(ctx context.Context, id string) (Membership, error) {
	m, err := svc.GetByID(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	if m.Status != StatusPending {
		return Membership{}, &TransitionError{From: m.Status, To: StatusActive}
	}
	if nowFunc().After(m.ExpiresAt) {
		return Membership{}, ErrPeriodElapsed
	}
	return svc.setStatus(ctx, m, StatusActive)
}

// Cancel cancels a Membership that is not cancelled yet.
func (svc *Service) Cancel(ctx context.Context, id string) (Membership, error) {
	m, err := svc.GetByID(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	if m.Status == StatusCancelled {
		return Membership{}, &TransitionError{From: m.Status, To: StatusCancelled}
	}
	return svc.setStatus(ctx, m, StatusCancelled)
}

// ExpireOverdue moves the Activa Memberships whose period ended before now to Vencida.
func (svc *Service) ExpireOverdue(ctx context.Context) (int, error) {
	return svc.repo.ExpireMemberships(ctx, nowFunc().UTC())
}

// Current returns the Membership of userID that is valid at this time.
// Memberships paid in advance for a later period are not current yet.
func (svc *Service) Current(ctx context.Context, userID string) (Membership, error) {
	memberships, err := svc.repo.QueryMemberships(ctx, &QueryFilter{UserID: userID, Status: StatusActive})
	if err != nil {
		return Membership{}, err
	}
	now := nowFunc()
	for _, m := range memberships {
		p, err := period.Parse(m.Period)
		if err != nil {
			continue
		}
		if m.IsValidAt(now) && !now.Before(p.Start(svc.loc)) {
			return m, nil
		}
	}
	return Membership{}, ErrNoCurrent
}

func (svc *Service) setStatus(ctx context.Context, m Membership, st Status) (Membership, error) {
	m.Status = st
	m.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateMembership(ctx, m)
}
