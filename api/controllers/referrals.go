package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/referralz-backend/api/middleware"
	"github.com/angelmondragon/referralz-backend/api/responses"
	"github.com/angelmondragon/referralz-backend/api/validators"
	"github.com/angelmondragon/referralz-backend/internal/referrals"
	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

// ReferralClick records a visit to a referral link.
func ReferralClick(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		code := validators.SanitizeString(chi.URLParam(r, "code"), 64)
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "referral code required"))
			return
		}
		event, err := svc.RecordClick(r.Context(), code, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, referrals.ToAPIError(err))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReferralEventResponse(*event))
	}
}

// ReferralSignup attributes the caller's signup to a referral code. The
// reward decision never fails the request: rejected or skipped rewards are
// reported with 202.
func ReferralSignup(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req signupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.ProcessSignup(r.Context(), referrals.SignupInput{
			LinkCode:  strings.TrimSpace(req.Code),
			RefereeID: userID,
			Now:       time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, referrals.ToAPIError(err))
			return
		}

		status := http.StatusAccepted
		if out.Status == referrals.SignupStatusPending {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newSignupResponse(out))
	}
}

// ReferralClaim credits every unclaimed reward of the caller.
func ReferralClaim(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		result, err := svc.ClaimUnclaimedRewards(r.Context(), userID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, referrals.ToAPIError(err))
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListReferralEvents returns the caller's referral history, newest first.
func ListReferralEvents(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryString(r, "cursor"),
		}

		list, err := svc.ListEvents(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, referrals.ToAPIError(err))
			return
		}
		resp := eventListResponse{Items: make([]referralEventResponse, 0, len(list.Items)), Cursor: list.Cursor}
		for _, ev := range list.Items {
			resp.Items = append(resp.Items, newReferralEventResponse(ev))
		}
		responses.WriteSuccess(w, resp)
	}
}

func ReferralSummary(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		summary, err := svc.Summary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, referrals.ToAPIError(err))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminRunSettlement triggers a settlement sweep outside the cron schedule.
// An optional "now" lets operators replay a sweep at a fixed instant.
func AdminRunSettlement(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}
		now := time.Now().UTC()
		if r.ContentLength != 0 {
			var req settlementRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.Now != nil {
				now = req.Now.UTC()
			}
		}

		report, err := svc.SettlePendingRewards(r.Context(), now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settlement sweep failed"))
			return
		}
		responses.WriteSuccess(w, report)
	}
}
