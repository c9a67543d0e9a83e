package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/referralz-backend/internal/referrals"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
	"github.com/angelmondragon/referralz-backend/pkg/types"
)

type signupRequest struct {
	Code string `json:"code" validate:"required,max=64,referralcode"`
}

type settlementRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

type referralEventResponse struct {
	ID              uuid.UUID                `json:"id"`
	ReferralLinkID  uuid.UUID                `json:"referral_link_id"`
	ReferrerID      uuid.UUID                `json:"referrer_id"`
	RefereeID       *uuid.UUID               `json:"referee_id,omitempty"`
	EventType       string                   `json:"event_type"`
	RewardAmount    int64                    `json:"reward_amount"`
	RewardCurrency  string                   `json:"reward_currency"`
	IsRewardClaimed bool                     `json:"is_reward_claimed"`
	Metadata        dbtypes.ReferralMetadata `json:"metadata"`
	ValidatedAt     *time.Time               `json:"validated_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func newReferralEventResponse(ev models.ReferralEvent) referralEventResponse {
	return referralEventResponse{
		ID:              ev.ID,
		ReferralLinkID:  ev.ReferralLinkID,
		ReferrerID:      ev.ReferrerID,
		RefereeID:       ev.RefereeID,
		EventType:       string(ev.EventType),
		RewardAmount:    ev.RewardAmount,
		RewardCurrency:  string(ev.RewardCurrency),
		IsRewardClaimed: ev.IsRewardClaimed,
		Metadata:        ev.Metadata,
		ValidatedAt:     ev.ValidatedAt,
		CreatedAt:       ev.CreatedAt,
	}
}

type eventListResponse struct {
	Items  []referralEventResponse `json:"items"`
	Cursor string                  `json:"cursor,omitempty"`
}

type signupResponse struct {
	Status    referrals.SignupStatus `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
	Event     *referralEventResponse `json:"event,omitempty"`
	Rejection *types.APIError        `json:"rejection,omitempty"`
}

func newSignupResponse(out *referrals.SignupOutcome) signupResponse {
	resp := signupResponse{Status: out.Status, Reason: out.Reason}
	if out.Event != nil {
		ev := newReferralEventResponse(*out.Event)
		resp.Event = &ev
	}
	if out.Rejection != nil {
		if typed := pkgerrors.As(referrals.ToAPIError(out.Rejection)); typed != nil {
			resp.Rejection = &types.APIError{
				Code:      string(typed.Code()),
				Message:   typed.Message(),
				Retryable: pkgerrors.MetadataFor(typed.Code()).Retryable,
				Details:   typed.Details(),
			}
		}
	}
	return resp
}
