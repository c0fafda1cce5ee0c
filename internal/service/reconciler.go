package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/subscription-service/internal/correlation"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
)

// Reconciler сводит уведомления провайдера с записями подписок.
// Notifications arrive at least once, in any order, possibly duplicated;
// each approved payment activates at most one record exactly once.
type Reconciler interface {
	// HandleNotification resolves a notification through the provider and
	// reconciles every payment it refers to.
	HandleNotification(ctx context.Context, n domain.Notification) []domain.ReconcileResult

	// ReconcilePayment reconciles a single provider payment.
	ReconcilePayment(ctx context.Context, paymentID string) domain.ReconcileResult
}

type reconciler struct {
	repo     repository.SubscriptionRepository
	provider PaymentProvider
	events   EventPublisher
	metrics  metrics.SubscriptionMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewReconciler создает сервис сверки уведомлений
func NewReconciler(
	repo repository.SubscriptionRepository,
	provider PaymentProvider,
	events EventPublisher,
	m metrics.SubscriptionMetrics,
	log *logger.Logger,
) Reconciler {
	return &reconciler{
		repo:     repo,
		provider: provider,
		events:   events,
		metrics:  m,
		log:      log.Named("reconciler"),
		now:      utcNow,
	}
}

// hints are references found outside the payment itself (e.g. on its merchant order).
type hints struct {
	intentRef string
	token     string
}

func (r *reconciler) HandleNotification(ctx context.Context, n domain.Notification) []domain.ReconcileResult {
	var results []domain.ReconcileResult

	switch {
	case n.ResourceID == "":
		results = []domain.ReconcileResult{ignored("", "notification without resource id")}
	case n.Topic == domain.NotificationTopicPayment:
		results = []domain.ReconcileResult{r.reconcile(ctx, n.ResourceID, hints{})}
	case n.Topic == domain.NotificationTopicMerchantOrder:
		results = r.reconcileOrder(ctx, n.ResourceID)
	default:
		results = []domain.ReconcileResult{ignored("", "unsupported notification topic")}
	}

	for _, res := range results {
		r.metrics.IncWebhookNotification(string(res.Outcome))
		r.log.Infow("Notification reconciled",
			"topic", n.Topic, "resourceID", n.ResourceID, "action", n.Action,
			"outcome", res.Outcome, "paymentID", res.PaymentID, "reason", res.Reason)
	}
	return results
}

func (r *reconciler) ReconcilePayment(ctx context.Context, paymentID string) domain.ReconcileResult {
	return r.reconcile(ctx, paymentID, hints{})
}

func (r *reconciler) reconcileOrder(ctx context.Context, orderID string) []domain.ReconcileResult {
	order, err := r.provider.GetMerchantOrder(ctx, orderID)
	if err != nil {
		r.log.Warnw("Merchant order lookup failed", "orderID", orderID, "error", err)
		return []domain.ReconcileResult{deferred("", "merchant order lookup failed")}
	}
	if len(order.PaymentIDs) == 0 {
		return []domain.ReconcileResult{ignored("", "merchant order has no payments")}
	}

	h := hints{intentRef: order.IntentRef, token: order.CorrelationToken}
	results := make([]domain.ReconcileResult, 0, len(order.PaymentIDs))
	for _, paymentID := range order.PaymentIDs {
		results = append(results, r.reconcile(ctx, paymentID, h))
	}
	return results
}

func (r *reconciler) reconcile(ctx context.Context, paymentID string, h hints) domain.ReconcileResult {
	if paymentID == "" {
		return ignored("", "missing payment id")
	}

	payment, err := r.provider.GetPayment(ctx, paymentID)
	if err != nil {
		r.log.Warnw("Payment lookup failed", "paymentID", paymentID, "error", err)
		return deferred(paymentID, "payment lookup failed")
	}
	if !payment.Approved() {
		return ignored(payment.ID, "payment status "+string(payment.Status))
	}

	if existing, err := r.repo.FindByPaymentID(ctx, payment.ID); err == nil {
		return duplicate(payment.ID, existing.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		r.log.Errorw("Failed to look up payment binding", "paymentID", payment.ID, "error", err)
		return deferred(payment.ID, "store unavailable")
	}

	intentRef, token := r.references(ctx, payment, h)

	userID, plan, tokenOK := r.decodeToken(token, payment.ID)
	target, err := r.correlate(ctx, intentRef, tokenOK, userID, plan)
	if err != nil {
		r.log.Errorw("Failed to correlate payment", "paymentID", payment.ID, "error", err)
		return deferred(payment.ID, "store unavailable")
	}

	switch {
	case target != nil:
		return r.activate(ctx, target, payment.ID)
	case tokenOK:
		return r.activateFresh(ctx, userID, plan, intentRef, payment.ID)
	default:
		r.log.Warnw("Approved payment could not be correlated", "paymentID", payment.ID, "intentRef", intentRef)
		return deferred(payment.ID, "uncorrelated payment")
	}
}

// references merges what the payment carries with the hints, falling back to
// the payment's merchant order when neither identifies the checkout.
func (r *reconciler) references(ctx context.Context, payment *domain.ProviderPayment, h hints) (string, string) {
	intentRef, token := payment.IntentRef, payment.CorrelationToken
	if intentRef == "" {
		intentRef = h.intentRef
	}
	if token == "" {
		token = h.token
	}
	if intentRef != "" || token != "" || payment.OrderRef == "" {
		return intentRef, token
	}

	order, err := r.provider.GetMerchantOrder(ctx, payment.OrderRef)
	if err != nil {
		r.log.Warnw("Merchant order lookup failed", "orderID", payment.OrderRef, "paymentID", payment.ID, "error", err)
		return intentRef, token
	}
	return order.IntentRef, order.CorrelationToken
}

func (r *reconciler) decodeToken(token, paymentID string) (uuid.UUID, domain.Plan, bool) {
	if token == "" {
		return uuid.Nil, "", false
	}
	userID, plan, err := correlation.Decode(token)
	if err != nil {
		r.log.Warnw("Malformed correlation token", "paymentID", paymentID, "error", err)
		return uuid.Nil, "", false
	}
	if !plan.Valid() {
		r.log.Warnw("Correlation token names an unknown plan", "paymentID", paymentID, "plan", plan)
		return uuid.Nil, "", false
	}
	return userID, plan, true
}

// correlate returns the pending record the payment should activate, or nil
// when no such record exists.
func (r *reconciler) correlate(ctx context.Context, intentRef string, tokenOK bool, userID uuid.UUID, plan domain.Plan) (*domain.Subscription, error) {
	if intentRef != "" {
		sub, err := r.repo.FindByIntentID(ctx, intentRef)
		switch {
		case err == nil:
			consistent := !tokenOK || (sub.UserID == userID && sub.Plan == plan)
			if sub.Status == domain.SubscriptionStatusPending && consistent {
				return sub, nil
			}
			if !consistent {
				r.log.Warnw("Intent record disagrees with correlation token",
					"intentRef", intentRef, "subscriptionID", sub.ID, "tokenUserID", userID, "tokenPlan", plan)
			}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	if !tokenOK {
		return nil, nil
	}

	sub, err := r.repo.FindLatestPending(ctx, userID, plan)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

func (r *reconciler) activate(ctx context.Context, target *domain.Subscription, paymentID string) domain.ReconcileResult {
	activation := domain.NewActivation(target, paymentID, r.now())

	changed, err := r.repo.Activate(ctx, activation)
	if errors.Is(err, repository.ErrDuplicate) {
		return r.afterLostRace(ctx, paymentID, target.ID)
	}
	if err != nil {
		r.log.Errorw("Failed to activate subscription", "subscriptionID", target.ID, "paymentID", paymentID, "error", err)
		return deferred(paymentID, "store unavailable")
	}
	if !changed {
		return r.afterLostRace(ctx, paymentID, target.ID)
	}

	activation.Apply(target)
	r.activated(ctx, target)
	return domain.ReconcileResult{Outcome: domain.OutcomeActivated, PaymentID: paymentID, SubscriptionID: target.ID}
}

// activateFresh stores an active record directly when the token identifies
// the user but no pending record is left to activate.
func (r *reconciler) activateFresh(ctx context.Context, userID uuid.UUID, plan domain.Plan, intentRef, paymentID string) domain.ReconcileResult {
	now := r.now()
	sub := domain.NewPendingSubscription(userID, plan, intentRef, now)
	domain.NewActivation(sub, paymentID, now).Apply(sub)

	err := r.repo.InsertActivated(ctx, sub)
	if errors.Is(err, repository.ErrDuplicate) {
		return r.afterLostRace(ctx, paymentID, sub.ID)
	}
	if err != nil {
		r.log.Errorw("Failed to insert activated subscription", "userID", userID, "paymentID", paymentID, "error", err)
		return deferred(paymentID, "store unavailable")
	}

	r.activated(ctx, sub)
	return domain.ReconcileResult{Outcome: domain.OutcomeActivated, PaymentID: paymentID, SubscriptionID: sub.ID}
}

// afterLostRace classifies a write that changed nothing: either a concurrent
// delivery of the same payment won, or the record moved on without it.
func (r *reconciler) afterLostRace(ctx context.Context, paymentID string, subscriptionID uuid.UUID) domain.ReconcileResult {
	current, err := r.repo.FindByPaymentID(ctx, paymentID)
	if err == nil {
		return duplicate(paymentID, current.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return deferred(paymentID, "store unavailable")
	}

	r.log.Warnw("Record no longer pending, payment not applied", "subscriptionID", subscriptionID, "paymentID", paymentID)
	return domain.ReconcileResult{
		Outcome:        domain.OutcomeIgnored,
		PaymentID:      paymentID,
		SubscriptionID: subscriptionID,
		Reason:         "record is not pending",
	}
}

func (r *reconciler) activated(ctx context.Context, sub *domain.Subscription) {
	r.metrics.IncActivation(string(sub.Plan))
	publishEvent(ctx, r.events, r.log, domain.NewSubscriptionEvent(domain.EventSubscriptionActivated, sub, r.now()))
	r.log.Infow("Subscription activated",
		"subscriptionID", sub.ID, "userID", sub.UserID, "plan", sub.Plan, "expiresAt", sub.ExpiresAt)
}

func ignored(paymentID, reason string) domain.ReconcileResult {
	return domain.ReconcileResult{Outcome: domain.OutcomeIgnored, PaymentID: paymentID, Reason: reason}
}

func deferred(paymentID, reason string) domain.ReconcileResult {
	return domain.ReconcileResult{Outcome: domain.OutcomeDeferred, PaymentID: paymentID, Reason: reason}
}

func duplicate(paymentID string, subscriptionID uuid.UUID) domain.ReconcileResult {
	return domain.ReconcileResult{Outcome: domain.OutcomeDuplicate, PaymentID: paymentID, SubscriptionID: subscriptionID}
}
