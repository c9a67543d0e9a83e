package referrals

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

// ListEvents returns the referrer's events newest first.
func (s *service) ListEvents(ctx context.Context, referrerID uuid.UUID, params pagination.Params) (*EventList, error) {
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByReferrer(ctx, referrerID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list referral events")
	}

	out := &EventList{}
	out.Items, out.Cursor = pagination.Trim(rows, params.Limit, eventPosition)
	return out, nil
}

func eventPosition(ev models.ReferralEvent) pagination.Cursor {
	return pagination.Cursor{CreatedAt: ev.CreatedAt, ID: ev.ID}
}

func (s *service) Summary(ctx context.Context, referrerID uuid.UUID) (*Summary, error) {
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	summary, err := s.repo.Summarize(ctx, referrerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize referral events")
	}
	return summary, nil
}
