package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/splitpay/splitpay-api/internal/domain/credit"
	"github.com/splitpay/splitpay-api/internal/domain/merchant"
	"github.com/splitpay/splitpay-api/internal/domain/user"
	"github.com/splitpay/splitpay-api/internal/pkg/events"
	"github.com/splitpay/splitpay-api/internal/pkg/metrics"
	"github.com/splitpay/splitpay-api/internal/pkg/stripegate"
)

// Gateway abstracts the card gateway for the orchestrator.
type Gateway interface {
	CreateCharge(ctx context.Context, req stripegate.CreateChargeRequest) (*stripegate.CreateChargeResponse, error)
	ConfirmCharge(ctx context.Context, chargeID string) (*stripegate.ConfirmChargeResponse, error)
}

// Service is the settlement orchestrator: it runs creation requests through
// the duplicate guard, risk scorer and allocator, drives the status state
// machine, and settles installments against the credit ledger and the card
// gateway.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*CreateResponse, error)
	GetByID(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error)
	GetSchedule(ctx context.Context, callerID, id uuid.UUID, operator bool) ([]Installment, error)

	Approve(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*Transaction, error)
	Cancel(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error)
	RetryPayment(ctx context.Context, id uuid.UUID) (*Transaction, error)

	HandleChargeWebhook(ctx context.Context, event *stripegate.WebhookEvent) error

	// SweepDue settles installments due at or before now. Returns how many
	// installments this call claimed.
	SweepDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type service struct {
	repo      Repository
	users     user.Repository
	merchants merchant.Repository
	ledger    credit.Service
	gateway   Gateway
	guard     DuplicateGuard
	sink      events.Sink
	policy    IntervalPolicy
	retry     RetryPolicy

	now func() time.Time
}

// NewService creates the settlement orchestrator.
func NewService(
	repo Repository,
	users user.Repository,
	merchants merchant.Repository,
	ledger credit.Service,
	gateway Gateway,
	guard DuplicateGuard,
	sink events.Sink,
	policy IntervalPolicy,
	retry RetryPolicy,
) Service {
	return &service{
		repo:      repo,
		users:     users,
		merchants: merchants,
		ledger:    ledger,
		gateway:   gateway,
		guard:     guard,
		sink:      sink,
		policy:    policy,
		retry:     retry,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*CreateResponse, error) {
	// Fail fast before any scoring or allocation work.
	dup, err := s.guard.CheckAndRegister(ctx, userID, req.MerchantID, req.Amount)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateTransaction
	}

	plan, err := PlanFromCount(req.Plan)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	if err := ValidateItems(req.Amount, items); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, user.ErrUserInactive
	}

	m, err := s.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, merchant.ErrMerchantInactive
	}

	score := s.scoreRisk(ctx, userID, req.Amount, u, plan)
	status := InitialStatus(score)

	alloc := Allocate(req.Amount, u.AvailableCredit, preferenceFromRequest(req.Preference))

	t := &Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		MerchantID:   req.MerchantID,
		Amount:       req.Amount,
		Plan:         plan,
		Status:       status,
		RiskScore:    score,
		CreditAmount: alloc.CreditAmount,
		CardAmount:   alloc.CardAmount,
		Method:       alloc.Method,
		Items:        items,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	metrics.RecordTransactionCreated(string(status), string(alloc.Method))
	s.sink.Emit(ctx, events.New(events.TypeTransactionCreated, t.ID, t.UserID, map[string]interface{}{
		"amount":     t.Amount.StringFixed(2),
		"plan":       t.Plan.InstallmentCount(),
		"status":     string(status),
		"risk_score": score,
	}))

	clientSecret := ""
	if status == StatusApproved {
		clientSecret, err = s.activate(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	fresh, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return &CreateResponse{
		Transaction:  ResponseFromEntity(fresh),
		ClientSecret: clientSecret,
	}, nil
}

// scoreRisk assembles the scorer's inputs from transaction history. Any
// lookup failure falls back to the conservative score instead of failing the
// creation request.
func (s *service) scoreRisk(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, u *user.User, plan Plan) int {
	now := s.now()

	prior, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Risk input lookup failed, using fallback score")
		return FallbackRiskScore
	}
	failed30d, err := s.repo.CountFailedSince(ctx, userID, now.AddDate(0, 0, -30))
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Risk input lookup failed, using fallback score")
		return FallbackRiskScore
	}
	created24h, err := s.repo.CountCreatedSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Risk input lookup failed, using fallback score")
		return FallbackRiskScore
	}

	return ScoreRisk(RiskInput{
		Amount:           amount,
		CreditLimit:      u.CreditLimit,
		AvailableCredit:  u.AvailableCredit,
		PriorCount:       prior,
		FailedLast30Days: failed30d,
		CreatedLast24h:   created24h,
		Plan:             plan,
	})
}

func preferenceFromRequest(pref *PreferenceRequest) *Preference {
	if pref == nil {
		return nil
	}
	out := &Preference{Method: pref.Method}
	if pref.CreditAmount != nil {
		out.CreditAmount = *pref.CreditAmount
	}
	return out
}

// activate runs the lifecycle actions of the approved state: credit debit,
// schedule creation and the synchronous first-installment settlement. The
// returned client secret is non-empty when a card charge awaits client-side
// completion.
func (s *service) activate(ctx context.Context, t *Transaction) (string, error) {
	if t.CreditAmount.IsPositive() {
		err := s.ledger.Debit(ctx, t.UserID, t.CreditAmount, credit.LedgerMeta{
			TransactionID: t.ID,
			Description:   "purchase debit",
		})
		if err != nil {
			// The allocator clamps the credit portion to the available
			// balance and Approve re-checks it, so this only happens when a
			// concurrent debit won the race. Return the transaction to
			// manual review; it stays recoverable (approve again, reject,
			// cancel) instead of stranding in a terminal state.
			log.Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("Credit debit failed on activation, returning to review")
			if stErr := s.repo.UpdateStatus(ctx, t.ID, StatusApproved, StatusPending); stErr != nil {
				log.Error().Err(stErr).Str("transaction_id", t.ID.String()).Msg("Failed to return transaction to pending")
			}
			return "", err
		}
	}

	now := s.now()
	schedule, err := BuildSchedule(t.ID, t.Amount, t.Plan, now, s.policy, now)
	if err != nil {
		return "", err
	}
	if err := s.repo.ReplaceSchedule(ctx, t.ID, schedule); err != nil {
		return "", err
	}

	if schedule[0].Status != InstallmentProcessing {
		return "", nil
	}

	// First installment settles inline. A gateway outage here is absorbed
	// into the installment's failed state; the creation itself succeeds.
	share := cardShare(t.CreditAmount, schedule, schedule[0].Number)
	if share.IsZero() {
		s.completeInstallment(ctx, t, schedule[0])
		return "", nil
	}

	resp, err := s.gateway.CreateCharge(ctx, stripegate.CreateChargeRequest{
		Amount:      share,
		Currency:    "usd",
		CustomerRef: t.UserID.String(),
		Description: "installment 1",
		Metadata: map[string]string{
			"transaction_id": t.ID.String(),
			"installment_id": schedule[0].ID.String(),
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("Synchronous first-installment charge failed")
		s.handleInstallmentFailure(ctx, t, schedule[0], err.Error())
		return "", nil
	}

	if err := s.repo.SetInstallmentCharge(ctx, schedule[0].ID, resp.ChargeID); err != nil {
		return "", err
	}
	if err := s.repo.SetCharge(ctx, t.ID, resp.ChargeID, resp.ClientSecret); err != nil {
		return "", err
	}

	if resp.Status == "succeeded" {
		s.completeInstallment(ctx, t, schedule[0])
		return "", nil
	}

	return resp.ClientSecret, nil
}

// cardShare computes how much of one installment must be charged to the
// card. The upfront credit debit covers installments front to back: earlier
// installments consume the credit allocation first, and only the portion it
// does not reach goes to the gateway.
func cardShare(creditAmount decimal.Decimal, installments []Installment, number int) decimal.Decimal {
	cover := creditAmount
	var amount decimal.Decimal
	for _, inst := range installments {
		if inst.Number < number {
			cover = cover.Sub(inst.Amount)
		}
		if inst.Number == number {
			amount = inst.Amount
		}
	}
	if cover.IsNegative() {
		cover = decimal.Zero
	}
	return amount.Sub(decimal.Min(amount, cover))
}

func (s *service) GetByID(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !operator && t.UserID != callerID {
		return nil, ErrNotTransactionOwner
	}
	return t, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *service) GetSchedule(ctx context.Context, callerID, id uuid.UUID, operator bool) ([]Installment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !operator && t.UserID != callerID {
		return nil, ErrNotTransactionOwner
	}
	return t.Installments, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(t.Status, StatusApproved); err != nil {
		return nil, err
	}

	// The allocation was made against the balance at creation time; the
	// credit may have been spent while the transaction sat in review.
	if t.CreditAmount.IsPositive() {
		bal, err := s.ledger.GetBalance(ctx, t.UserID)
		if err != nil {
			return nil, err
		}
		if bal.AvailableCredit.LessThan(t.CreditAmount) {
			return nil, credit.ErrInsufficientCredit
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, t.Status, StatusApproved); err != nil {
		return nil, err
	}

	if _, err := s.activate(ctx, t); err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, events.New(events.TypeTransactionApproved, t.ID, t.UserID, nil))

	return s.repo.GetByID(ctx, id)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(t.Status, StatusRejected); err != nil {
		return nil, err
	}

	// Restore before the status flip: if the restore fails the transaction
	// is untouched and the rejection can simply be retried. The entry check
	// inside restoreIfDebited keeps the retry from restoring twice.
	if err := s.restoreIfDebited(ctx, t, "rejection restore"); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, t.Status, StatusRejected); err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, events.New(events.TypeTransactionRejected, t.ID, t.UserID, map[string]interface{}{
		"reason": reason,
	}))

	return s.repo.GetByID(ctx, id)
}

func (s *service) Cancel(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !operator && t.UserID != callerID {
		return nil, ErrNotTransactionOwner
	}
	if _, err := Transition(t.Status, StatusCancelled); err != nil {
		return nil, err
	}
	if t.Status == StatusApproved && !NoInstallmentAttempted(t.Installments) {
		return nil, ErrInstallmentsAttempted
	}

	// Same ordering as Reject: restore first so a ledger failure leaves the
	// cancellation retryable instead of a cancelled transaction that never
	// got its credit back.
	if err := s.restoreIfDebited(ctx, t, "cancellation restore"); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, t.Status, StatusCancelled); err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, events.New(events.TypeTransactionCancelled, t.ID, t.UserID, nil))

	return s.repo.GetByID(ctx, id)
}

// restoreIfDebited returns the exact debited amount once. The entry checks
// make it safe to re-run: callers invoke it before their status flip, so a
// failure on either side leaves the operation retryable, and the retry
// skips the restore when it already landed.
func (s *service) restoreIfDebited(ctx context.Context, t *Transaction, description string) error {
	if !t.CreditAmount.IsPositive() {
		return nil
	}

	debited, err := s.ledger.HasDebit(ctx, t.ID)
	if err != nil {
		return err
	}
	if !debited {
		return nil
	}
	restored, err := s.ledger.HasRestore(ctx, t.ID)
	if err != nil {
		return err
	}
	if restored {
		return nil
	}

	return s.ledger.Restore(ctx, t.UserID, t.CreditAmount, credit.LedgerMeta{
		TransactionID: t.ID,
		Description:   description,
	})
}

// RetryPayment is the manual REJECTED → PENDING retry: a fresh presentment,
// so retry counters reset to zero.
func (s *service) RetryPayment(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(t.Status, StatusPending); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, t.Status, StatusPending); err != nil {
		return nil, err
	}
	if err := s.repo.ResetRetryCount(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) HandleChargeWebhook(ctx context.Context, event *stripegate.WebhookEvent) error {
	inst, err := s.repo.GetInstallmentByChargeID(ctx, event.ChargeID)
	if err != nil {
		if errors.Is(err, ErrInstallmentNotFound) {
			// Unknown charge: either a replay after schedule recalculation
			// or a charge from another system. Acknowledge and drop.
			log.Warn().Str("charge_id", event.ChargeID).Msg("Webhook for unknown charge")
			return nil
		}
		return err
	}

	t, err := s.repo.GetByID(ctx, inst.TransactionID)
	if err != nil {
		return err
	}

	switch event.Type {
	case "charge.succeeded":
		s.completeInstallment(ctx, t, *inst)
		return nil
	case "charge.failed":
		reason := event.Reason
		if reason == "" {
			reason = "charge failed"
		}
		s.handleInstallmentFailure(ctx, t, *inst, reason)
		return nil
	default:
		log.Warn().Str("type", event.Type).Msg("Ignoring unhandled webhook type")
		return nil
	}
}

// completeInstallment marks one installment settled and completes the owning
// transaction when it was the last one.
func (s *service) completeInstallment(ctx context.Context, t *Transaction, inst Installment) {
	if err := s.repo.CompleteInstallment(ctx, inst.ID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Already settled; a webhook replay.
			return
		}
		log.Error().Err(err).Str("installment_id", inst.ID.String()).Msg("Failed to complete installment")
		return
	}

	metrics.RecordSettlementProcessed("settled")
	s.sink.Emit(ctx, events.New(events.TypeInstallmentSettled, t.ID, t.UserID, map[string]interface{}{
		"installment_number": inst.Number,
		"amount":             inst.Amount.StringFixed(2),
	}))

	installments, err := s.repo.GetInstallments(ctx, t.ID)
	if err != nil {
		log.Error().Err(err).Str("transaction_id", t.ID.String()).Msg("Failed to load schedule after settlement")
		return
	}
	if !AllInstallmentsCompleted(installments) {
		return
	}

	if err := s.repo.UpdateStatus(ctx, t.ID, StatusApproved, StatusCompleted); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			log.Error().Err(err).Str("transaction_id", t.ID.String()).Msg("Failed to complete transaction")
		}
		return
	}
	s.sink.Emit(ctx, events.New(events.TypeTransactionCompleted, t.ID, t.UserID, nil))
}

// handleInstallmentFailure counts one payment failure against the
// transaction's retry budget. Below the cap the installment returns to
// scheduled with a backed-off due date; at the cap it fails terminally and
// the owning transaction is signalled toward failed.
func (s *service) handleInstallmentFailure(ctx context.Context, t *Transaction, inst Installment, reason string) {
	var count int
	decision, err := s.repo.RecordInstallmentFailure(ctx, t.ID, inst.ID, reason, func(retryCount int) RetryDecision {
		count = retryCount
		return s.retry.OnFailure(retryCount, s.now())
	})
	if err != nil {
		log.Error().Err(err).Str("installment_id", inst.ID.String()).Msg("Failed to record installment failure")
		return
	}

	if decision.Retry {
		metrics.RecordSettlementProcessed("retried")
		s.sink.Emit(ctx, events.New(events.TypeInstallmentFailed, t.ID, t.UserID, map[string]interface{}{
			"installment_number": inst.Number,
			"reason":             reason,
			"retry_count":        count,
			"next_due_date":      decision.NextDueDate,
		}))
	} else {
		metrics.RecordSettlementProcessed("failed")
		s.sink.Emit(ctx, events.New(events.TypeInstallmentFailed, t.ID, t.UserID, map[string]interface{}{
			"installment_number": inst.Number,
			"reason":             reason,
			"terminal":           true,
		}))
		s.sink.Emit(ctx, events.New(events.TypeTransactionFailed, t.ID, t.UserID, map[string]interface{}{
			"reason": "retry limit exceeded",
		}))
	}
}

func (s *service) SweepDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.DueInstallments(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	claimed := 0
	for _, inst := range due {
		ok, err := s.repo.MarkInstallmentProcessing(ctx, inst.ID)
		if err != nil {
			log.Error().Err(err).Str("installment_id", inst.ID.String()).Msg("Failed to claim installment")
			continue
		}
		if !ok {
			continue
		}
		claimed++
		s.settleInstallment(ctx, inst)
	}
	return claimed, nil
}

// settleInstallment pushes one claimed installment through settlement: the
// credit-covered share settles against the ledger debit taken at approval,
// the remainder is charged to the card. Completion of a card charge arrives
// asynchronously through the webhook unless the gateway settles inline.
func (s *service) settleInstallment(ctx context.Context, inst Installment) {
	t, err := s.repo.GetByID(ctx, inst.TransactionID)
	if err != nil {
		log.Error().Err(err).Str("installment_id", inst.ID.String()).Msg("Failed to load transaction for settlement")
		return
	}

	share := cardShare(t.CreditAmount, t.Installments, inst.Number)
	if share.IsZero() {
		s.completeInstallment(ctx, t, inst)
		return
	}

	// A prior attempt may have created the charge and then lost the webhook;
	// confirm instead of charging twice.
	if inst.ChargeID != nil && *inst.ChargeID != "" {
		resp, err := s.gateway.ConfirmCharge(ctx, *inst.ChargeID)
		if err != nil {
			s.handleInstallmentFailure(ctx, t, inst, err.Error())
			return
		}
		if resp.Status == "succeeded" {
			s.completeInstallment(ctx, t, inst)
		}
		return
	}

	resp, err := s.gateway.CreateCharge(ctx, stripegate.CreateChargeRequest{
		Amount:      share,
		Currency:    "usd",
		CustomerRef: t.UserID.String(),
		Description: "installment settlement",
		Metadata: map[string]string{
			"transaction_id": t.ID.String(),
			"installment_id": inst.ID.String(),
		},
	})
	if err != nil {
		s.handleInstallmentFailure(ctx, t, inst, err.Error())
		return
	}

	if err := s.repo.SetInstallmentCharge(ctx, inst.ID, resp.ChargeID); err != nil {
		log.Error().Err(err).Str("installment_id", inst.ID.String()).Msg("Failed to record charge id")
		return
	}

	if resp.Status == "succeeded" {
		s.completeInstallment(ctx, t, inst)
	}
}
