package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/delivery"
)

// ClickEvent is one user's reaction, as extracted from an interaction
// payload by the HTTP edge.
type ClickEvent struct {
	TenantID    string
	UUID        string
	User        string
	Timestamp   time.Time
	ResponseURL string
}

// ClickRecorder drives the full click flow: record the click, and deliver
// the outcome back through the response URL. The opening click gets an
// immediate placeholder, then exactly one delayed follow-up once the
// runner-up window has truly elapsed and the store has settled. This is a
// deliberate settle-then-read rather than an event-driven notification: the
// window must pass in real time before a final result means anything.
type ClickRecorder struct {
	ledger      *ClickLedger
	delivery    delivery.Delivery
	settleDelay time.Duration
	logger      *zap.Logger
}

// NewClickRecorder creates a new click recorder. The settle delay is the
// runner-up window plus the store consistency allowance.
func NewClickRecorder(ledger *ClickLedger, d delivery.Delivery, settleDelay time.Duration, logger *zap.Logger) *ClickRecorder {
	return &ClickRecorder{
		ledger:      ledger,
		delivery:    d,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

// Record records the click and pushes the outcome message(s).
func (r *ClickRecorder) Record(ctx context.Context, event ClickEvent) error {
	first, err := r.ledger.RecordClick(ctx, event.TenantID, event.UUID, event.User, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	r.logger.Debug("recorded click",
		zap.String("tenant_id", event.TenantID),
		zap.String("uuid", event.UUID),
		zap.String("user", event.User),
		zap.Bool("first", first))

	if first {
		if err := r.delivery.PushReplacement(ctx, event.ResponseURL, delivery.DeterminingMessage()); err != nil {
			return fmt.Errorf("failed to push determining message: %w", err)
		}

		select {
		case <-time.After(r.settleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	clicks, err := r.ledger.GetClicks(ctx, event.TenantID, event.UUID)
	if err != nil {
		return fmt.Errorf("failed to read settled clicks: %w", err)
	}

	outcome, err := ResolveRace(event.UUID, clicks)
	if err != nil {
		return err
	}

	msg := delivery.OutcomeMessage(outcome.WinnerLine(), outcome.RunnersUpLine())
	if err := r.delivery.PushReplacement(ctx, event.ResponseURL, msg); err != nil {
		return fmt.Errorf("failed to push outcome message: %w", err)
	}

	return nil
}
