package refunds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
	"github.com/imrishuroy/go-refundflow/internal/identity"
	"github.com/imrishuroy/go-refundflow/internal/logger"
)

const (
	DefaultApproveNote = "Refund request approved"
	DefaultRejectNote  = "Refund request rejected"
)

// Metric names.
const (
	MetricCreated    = "RefundRequestCreated"
	MetricTransition = "RefundRequestTransition"
)

// Dependencies are the optional collaborators of a Service. Nil members are
// skipped.
type Dependencies struct {
	Orders   OrderLookup
	Parties  PartyLookup
	Notifier Notifier
	Metrics  Metrics
}

// Service runs the refund request lifecycle.
type Service struct {
	repo     Repository
	orders   OrderLookup
	parties  PartyLookup
	notifier Notifier
	metrics  Metrics
	nowFunc  func() time.Time
}

func NewService(repo Repository, deps Dependencies) *Service {
	return &Service{
		repo:     repo,
		orders:   deps.Orders,
		parties:  deps.Parties,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending refund request for the calling customer.
func (s *Service) Create(ctx context.Context, p identity.Principal, in NewRequest, idempotencyKey string) (*RefundRequest, error) {
	if err := Authorize(p, ActionCreate); err != nil {
		return nil, err
	}

	in.OrderID = strings.TrimSpace(in.OrderID)
	in.VendorID = strings.TrimSpace(in.VendorID)
	if in.Category == "" {
		in.Category = CategoryOther
	}
	if err := validateNew(in); err != nil {
		return nil, err
	}
	if err := s.checkOrder(ctx, p, in); err != nil {
		return nil, err
	}

	now := s.nowFunc()
	r := &RefundRequest{
		ID:          uuid.NewString(),
		OrderID:     in.OrderID,
		CustomerID:  p.ID,
		VendorID:    in.VendorID,
		Amount:      in.Amount,
		Reason:      in.Reason,
		Category:    in.Category,
		Notes:       in.Notes,
		Attachments: in.Attachments,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, r, idempotencyKey); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			return nil, fmt.Errorf("%w: idempotency key %q was already used", apperr.ErrDuplicateRequest, idempotencyKey)
		}
		return nil, apperr.Unavailable(err)
	}

	logger.FromContext(ctx).Info().
		Str("refund_request_id", r.ID).
		Str("order_id", r.OrderID).
		Str("customer_id", r.CustomerID).
		Msg("refund request created")
	if s.metrics != nil {
		s.metrics.Increment(ctx, MetricCreated, map[string]string{"Category": string(r.Category)})
	}
	return r, nil
}

func validateNew(in NewRequest) error {
	if in.OrderID == "" {
		return apperr.Validation("orderId is required")
	}
	if in.VendorID == "" {
		return apperr.Validation("vendorId is required")
	}
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if err := validateReason(in.Reason); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return apperr.Validation("unknown refundReasonCategory %q", in.Category)
	}
	if len(in.Notes) > MaxNotesLength {
		return apperr.Validation("notes exceeds %d characters", MaxNotesLength)
	}
	return validateAttachments(in.Attachments)
}

// checkOrder verifies the referenced order when an order lookup is wired.
func (s *Service) checkOrder(ctx context.Context, p identity.Principal, in NewRequest) error {
	if s.orders == nil {
		return nil
	}
	o, err := s.orders.GetOrderSummary(ctx, in.OrderID)
	if err != nil {
		return apperr.Unavailable(err)
	}
	if o == nil || o.CustomerID != p.ID {
		return apperr.NotFound("order")
	}
	if o.VendorID != in.VendorID {
		return apperr.Validation("vendorId does not match the order's vendor")
	}
	if in.Amount.GreaterThan(o.PaidAmount) {
		return apperr.Validation("amount %s exceeds the paid amount %s", in.Amount.StringFixed(2), o.PaidAmount.StringFixed(2))
	}
	return nil
}

// Get returns a single request visible to p, enriched with related records.
func (s *Service) Get(ctx context.Context, p identity.Principal, id string) (*View, error) {
	if err := Authorize(p, ActionRead); err != nil {
		return nil, err
	}
	r, err := s.repo.FindOne(ctx, id, ScopeFor(p))
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	if r == nil {
		return nil, apperr.NotFound("refund request")
	}
	return s.enrich(ctx, r), nil
}

// enrich runs the lookups concurrently. Lookup failures only drop the
// corresponding summary.
func (s *Service) enrich(ctx context.Context, r *RefundRequest) *View {
	v := &View{RefundRequest: r}
	log := logger.FromContext(ctx)

	var g errgroup.Group
	if s.orders != nil {
		g.Go(func() error {
			o, err := s.orders.GetOrderSummary(ctx, r.OrderID)
			if err != nil {
				log.Warn().Err(err).Str("order_id", r.OrderID).Msg("order lookup failed")
			}
			v.Order = o
			return nil
		})
	}
	if s.parties != nil {
		g.Go(func() error {
			c, err := s.parties.GetPartySummary(ctx, r.CustomerID)
			if err != nil {
				log.Warn().Err(err).Str("customer_id", r.CustomerID).Msg("customer lookup failed")
			}
			v.Customer = c
			return nil
		})
		g.Go(func() error {
			vd, err := s.parties.GetPartySummary(ctx, r.VendorID)
			if err != nil {
				log.Warn().Err(err).Str("vendor_id", r.VendorID).Msg("vendor lookup failed")
			}
			v.Vendor = vd
			return nil
		})
	}
	_ = g.Wait()
	return v
}

// List returns the requests visible to p that match f, newest first. The
// caller's scope always wins over an explicit customer or vendor filter.
func (s *Service) List(ctx context.Context, p identity.Principal, f Filter) ([]*RefundRequest, error) {
	if err := Authorize(p, ActionRead); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperr.Validation("unknown category %q", f.Category)
	}

	scope := ScopeFor(p)
	if scope.CustomerID != "" {
		if f.CustomerID != "" && f.CustomerID != scope.CustomerID {
			return []*RefundRequest{}, nil
		}
		f.CustomerID = scope.CustomerID
	}
	if scope.VendorID != "" {
		if f.VendorID != "" && f.VendorID != scope.VendorID {
			return []*RefundRequest{}, nil
		}
		f.VendorID = scope.VendorID
	}

	out, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if out == nil {
		out = []*RefundRequest{}
	}
	return out, nil
}

// Approve moves a pending request to accepted.
func (s *Service) Approve(ctx context.Context, p identity.Principal, id, notes string) (*RefundRequest, error) {
	if err := Authorize(p, ActionApprove); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(notes)
	if note == "" {
		note = DefaultApproveNote
	}
	status := StatusAccepted
	return s.apply(ctx, p, id, ActionApprove, Patch{
		RequestStatus: &status,
		AdminNotes:    &note,
	})
}

// Reject moves a pending request to rejected.
func (s *Service) Reject(ctx context.Context, p identity.Principal, id, reason string) (*RefundRequest, error) {
	if err := Authorize(p, ActionReject); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(reason)
	if note == "" {
		note = DefaultRejectNote
	}
	status := StatusRejected
	return s.apply(ctx, p, id, ActionReject, Patch{
		RequestStatus:   &status,
		RejectionReason: &note,
		AdminNotes:      &note,
	})
}

// Update writes the fields in patch. Setting requestStatus is only possible
// while the request is pending.
func (s *Service) Update(ctx context.Context, p identity.Principal, id string, patch Patch) (*RefundRequest, error) {
	if err := Authorize(p, ActionUpdate); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperr.Validation("no fields to update")
	}
	return s.apply(ctx, p, id, ActionUpdate, patch)
}

// UpdateField writes a single field given as raw JSON.
func (s *Service) UpdateField(ctx context.Context, p identity.Principal, id, field string, value []byte) (*RefundRequest, error) {
	if err := Authorize(p, ActionUpdate); err != nil {
		return nil, err
	}
	patch, err := ParseFieldPatch(field, value)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, id, ActionUpdate, patch)
}

// Delete removes a request. Admin only, no status guard.
func (s *Service) Delete(ctx context.Context, p identity.Principal, id string) error {
	if err := Authorize(p, ActionDelete); err != nil {
		return err
	}
	ok, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return apperr.Unavailable(err)
	}
	if !ok {
		return apperr.NotFound("refund request")
	}
	logger.FromContext(ctx).Info().
		Str("refund_request_id", id).
		Str("deleted_by", p.ID).
		Msg("refund request deleted")
	return nil
}

// apply authorizes, validates and writes patch in one conditional update.
func (s *Service) apply(ctx context.Context, p identity.Principal, id string, action Action, patch Patch) (*RefundRequest, error) {
	if err := AuthorizeFields(p, action, patch.Fields()); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	scope := ScopeFor(p)
	if patch.Amount != nil {
		if err := s.checkAmountAgainstOrder(ctx, id, scope, *patch.Amount); err != nil {
			return nil, err
		}
	}

	transition := patch.RequestStatus != nil
	stamp := Stamp{ProcessedBy: p.ID, At: s.nowFunc()}

	updated, err := s.repo.FindByIDAndUpdate(ctx, id, scope, patch, stamp, transition)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return nil, s.classifyConflict(ctx, id, scope)
		}
		return nil, apperr.Unavailable(err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("refund_request_id", updated.ID).
		Str("action", string(action)).
		Str("processed_by", p.ID).
		Str("status", string(updated.Status)).
		Msg("refund request updated")

	if transition {
		s.emit(ctx, updated)
	}
	return updated, nil
}

func (s *Service) checkAmountAgainstOrder(ctx context.Context, id string, scope Scope, amount decimal.Decimal) error {
	if s.orders == nil {
		return nil
	}
	r, err := s.repo.FindOne(ctx, id, scope)
	if err != nil {
		return apperr.Unavailable(err)
	}
	if r == nil {
		return apperr.NotFound("refund request")
	}
	o, err := s.orders.GetOrderSummary(ctx, r.OrderID)
	if err != nil {
		return apperr.Unavailable(err)
	}
	if o != nil && amount.GreaterThan(o.PaidAmount) {
		return apperr.Validation("amount %s exceeds the paid amount %s", amount.StringFixed(2), o.PaidAmount.StringFixed(2))
	}
	return nil
}

// classifyConflict explains why a conditional write matched nothing.
func (s *Service) classifyConflict(ctx context.Context, id string, scope Scope) error {
	current, err := s.repo.FindOne(ctx, id, scope)
	if err != nil {
		return apperr.Unavailable(err)
	}
	if current == nil {
		return apperr.NotFound("refund request")
	}
	if current.Status != StatusPending {
		return fmt.Errorf("%w: refund request is already %s", apperr.ErrInvalidStateTransition, current.Status)
	}
	return apperr.Unavailable(errors.New("conditional update did not apply"))
}

// emit publishes the transition event and records the metric. Failures are
// logged and never undo the committed state.
func (s *Service) emit(ctx context.Context, r *RefundRequest) {
	if s.metrics != nil {
		s.metrics.Increment(ctx, MetricTransition, map[string]string{"Status": string(r.Status)})
	}
	if s.notifier == nil {
		return
	}
	ev := EventFor(r)
	if err := s.notifier.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Error().
			Err(err).
			Str("refund_request_id", r.ID).
			Str("event_type", ev.Type).
			Msg("publish refund event failed")
	}
}
