package referrals

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
	"github.com/angelmondragon/referralz-backend/pkg/metrics"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/outbox/payloads"
)

// Reasons attached to skipped or rejected signup outcomes.
const (
	ReasonSelfReferral          = "self_referral"
	ReasonLinkInactive          = "link_inactive"
	ReasonRepositoryUnavailable = "repository_unavailable"
	ReasonRewardError           = "reward_error"
	ReasonDuplicate             = "duplicate_referral"
	ReasonCooldown              = "cooldown_active"
	ReasonInsufficientTrust     = "insufficient_trust"
)

func (s *service) DecideSignupReward(ctx context.Context, input DecisionInput) (*models.ReferralEvent, error) {
	if input.ReferrerID == uuid.Nil || input.RefereeID == uuid.Nil || input.LinkID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referrer, referee and link ids are required")
	}
	if input.ReferrerID == input.RefereeID {
		return nil, ErrSelfReferral
	}
	input.Now = normalizeNow(input.Now)

	release, err := s.acquireDecisionLock(ctx, input.ReferrerID)
	if err != nil {
		s.recordDecision(err)
		return nil, err
	}
	defer release()

	var event *models.ReferralEvent
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		decided, err := s.decide(ctx, tx, input)
		if err != nil {
			return err
		}
		event = decided
		return nil
	})
	s.recordDecision(err)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ProcessSignup(ctx context.Context, input SignupInput) (*SignupOutcome, error) {
	code := strings.TrimSpace(input.LinkCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	if input.RefereeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	now := normalizeNow(input.Now)
	ctx = s.logg.WithFields(ctx, map[string]any{"referral_code": code, "referee_id": input.RefereeID.String()})

	link, err := s.repo.FindLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return nil, err
		}
		s.logg.Error(ctx, "referral link lookup failed; reward skipped", err)
		s.recordDecision(&RepositoryUnavailableError{Op: "find_link", Err: err})
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonRepositoryUnavailable}, nil
	}
	ctx = s.logg.WithReferrerID(ctx, link.UserID.String())

	if link.UserID == input.RefereeID {
		s.logg.Info(ctx, "self referral ignored")
		s.metrics.IncDecision(metrics.OutcomeSkipped)
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonSelfReferral}, nil
	}
	if !link.Usable(now) {
		s.logg.Info(ctx, "referral link not usable; reward skipped")
		s.metrics.IncDecision(metrics.OutcomeSkipped)
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonLinkInactive}, nil
	}

	decision := DecisionInput{
		ReferrerID: link.UserID,
		RefereeID:  input.RefereeID,
		LinkID:     link.ID,
		Now:        now,
	}

	var event *models.ReferralEvent
	release, err := s.acquireDecisionLock(ctx, decision.ReferrerID)
	if err == nil {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			decided, err := s.decide(ctx, tx, decision)
			if err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).IncrementLinkUses(ctx, link.ID); err != nil {
				return err
			}
			event = decided
			return nil
		})
		release()
	}
	s.recordDecision(err)

	return s.signupOutcome(ctx, event, err), nil
}

// signupOutcome folds a decision result into the signup response. Nothing here
// fails the signup itself.
func (s *service) signupOutcome(ctx context.Context, event *models.ReferralEvent, err error) *SignupOutcome {
	if err == nil {
		s.logg.Info(s.logg.WithReferralEventID(ctx, event.ID.String()), "referral reward pending")
		return &SignupOutcome{Status: SignupStatusPending, Event: event}
	}

	var cooldown *CooldownActiveError
	var trust *InsufficientTrustError
	var unavailable *RepositoryUnavailableError
	switch {
	case errors.Is(err, ErrDuplicateReferral):
		return &SignupOutcome{Status: SignupStatusRejected, Rejection: err, Reason: ReasonDuplicate}
	case errors.As(err, &cooldown):
		s.logg.Info(s.logg.WithField(ctx, "wait_minutes", cooldown.WaitMinutes), "referral reward rejected: cooldown")
		return &SignupOutcome{Status: SignupStatusRejected, Rejection: err, Reason: ReasonCooldown}
	case errors.As(err, &trust):
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"required_trust": trust.Required, "trust_score": trust.Current}), "referral reward rejected: trust")
		return &SignupOutcome{Status: SignupStatusRejected, Rejection: err, Reason: ReasonInsufficientTrust}
	case errors.As(err, &unavailable):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "referral reward skipped: repository unavailable")
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonRepositoryUnavailable}
	case errors.Is(err, ErrLinkInactive):
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonLinkInactive}
	default:
		s.logg.Error(ctx, "referral reward creation failed; signup unaffected", err)
		return &SignupOutcome{Status: SignupStatusSkipped, Reason: ReasonRewardError}
	}
}

// decide runs duplicate, cooldown, trust and decay checks and writes the pending event.
func (s *service) decide(ctx context.Context, tx *gorm.DB, input DecisionInput) (*models.ReferralEvent, error) {
	repo := s.repo.WithTx(tx)
	now := input.Now

	exists, err := repo.SignupExists(ctx, input.LinkID, input.RefereeID)
	if err != nil {
		return nil, &RepositoryUnavailableError{Op: "signup_exists", Err: err}
	}
	if exists {
		return nil, ErrDuplicateReferral
	}

	window, err := repo.ListSignupsInWindow(ctx, input.ReferrerID, now.Add(-s.rules.DecayWindow), now)
	if err != nil {
		return nil, &RepositoryUnavailableError{Op: "list_signups", Err: err}
	}
	if len(window) > 0 {
		if wait, active := s.rules.CooldownWait(window[0].CreatedAt, now); active {
			return nil, &CooldownActiveError{WaitMinutes: wait}
		}
	}

	d := Decision{ReferralCount: len(window)}
	d.RequiredTrustScore = s.rules.RequiredTrustScore(d.ReferralCount)
	d.TrustScore, err = s.users.TrustScore(ctx, tx, input.ReferrerID)
	if err != nil {
		return nil, &RepositoryUnavailableError{Op: "trust_score", Err: err}
	}
	if d.TrustScore < float64(d.RequiredTrustScore) {
		return nil, &InsufficientTrustError{Required: d.RequiredTrustScore, Current: d.TrustScore}
	}
	d.Reward, d.Multiplier = s.rules.Reward(d.ReferralCount)
	d.ValidationDeadline = s.rules.ValidationDeadline(now)

	refereeID := input.RefereeID
	event := &models.ReferralEvent{
		ID:              uuid.New(),
		ReferralLinkID:  input.LinkID,
		ReferrerID:      input.ReferrerID,
		RefereeID:       &refereeID,
		EventType:       enums.ReferralEventSignup,
		RewardAmount:    d.Reward,
		RewardCurrency:  enums.RewardCurrencyPoints,
		IsRewardClaimed: false,
		Metadata: dbtypes.NewDecisionMetadata(dbtypes.DecisionRecord{
			BaseReward:         s.rules.BaseReward,
			DecayMultiplier:    d.Multiplier,
			FinalReward:        d.Reward,
			ReferralCount:      d.ReferralCount,
			RequiredTrustScore: d.RequiredTrustScore,
			ValidationDeadline: d.ValidationDeadline,
		}),
		CreatedAt: now,
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralRewardPending,
		AggregateType: enums.AggregateReferralEvent,
		AggregateID:   event.ID,
		Actor:         &outbox.ActorRef{UserID: input.RefereeID, Source: "signup"},
		OccurredAt:    now,
		Data: payloads.ReferralRewardPendingEvent{
			ReferralEventID:    event.ID,
			ReferralLinkID:     event.ReferralLinkID,
			ReferrerID:         event.ReferrerID,
			RefereeID:          refereeID,
			RewardAmount:       event.RewardAmount,
			RewardCurrency:     string(event.RewardCurrency),
			ReferralCount:      d.ReferralCount,
			ValidationDeadline: d.ValidationDeadline,
		},
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// acquireDecisionLock narrows the cooldown race between concurrent signups for
// the same referrer. A busy lock is reported as cooldown; an unreachable lock
// backend only logs and lets the decision run unlocked.
func (s *service) acquireDecisionLock(ctx context.Context, referrerID uuid.UUID) (func(), error) {
	release, acquired, err := s.lock.Acquire(ctx, referrerID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "decision lock unavailable; deciding without lock")
		return func() {}, nil
	}
	if !acquired {
		wait := int((s.rules.Cooldown + time.Minute - 1) / time.Minute)
		return nil, &CooldownActiveError{WaitMinutes: wait}
	}
	return release, nil
}

func (s *service) recordDecision(err error) {
	var cooldown *CooldownActiveError
	var trust *InsufficientTrustError
	switch {
	case err == nil:
		s.metrics.IncDecision(metrics.OutcomePending)
	case errors.Is(err, ErrDuplicateReferral):
		s.metrics.IncDecision(metrics.OutcomeDuplicate)
	case errors.As(err, &cooldown):
		s.metrics.IncDecision(metrics.OutcomeCooldown)
	case errors.As(err, &trust):
		s.metrics.IncDecision(metrics.OutcomeInsufficientTrust)
	default:
		s.metrics.IncDecision(metrics.OutcomeSkipped)
	}
}

func (s *service) RecordClick(ctx context.Context, code string, now time.Time) (*models.ReferralEvent, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	now = normalizeNow(now)

	link, err := s.repo.FindLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.Usable(now) {
		return nil, ErrLinkInactive
	}

	event := &models.ReferralEvent{
		ID:             uuid.New(),
		ReferralLinkID: link.ID,
		ReferrerID:     link.UserID,
		EventType:      enums.ReferralEventClick,
		RewardAmount:   0,
		RewardCurrency: enums.RewardCurrencyPoints,
		Metadata:       dbtypes.ReferralMetadata{Version: dbtypes.ReferralMetadataVersion},
		CreatedAt:      now,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
