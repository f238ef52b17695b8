// Package checkout turns the cart into an order.
package checkout

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/wire"
)

// Checkout errors.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrSubmitInFlight = errors.New("order submission already in progress")
)

// ValidationError lists the form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid checkout form: " + strings.Join(e.Fields, ", ")
}

// Form is the customer contact and shipping information.
type Form struct {
	Name    string `validate:"required"`
	Surname string `validate:"required"`
	Phone   string `validate:"required"`
	State   string `validate:"required"`
}

func (f Form) trimmed() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Surname: strings.TrimSpace(f.Surname),
		Phone:   strings.TrimSpace(f.Phone),
		State:   strings.TrimSpace(f.State),
	}
}

// OrderCreator sends an order to the backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req wire.OrderRequest) (*wire.Order, error)
}

// Receipt describes a successfully placed order.
type Receipt struct {
	OrderID   string
	Total     decimal.Decimal
	Items     []cart.LineItem
	CreatedAt time.Time
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Submitter) { s.lg = lg }
}

// WithTracerProvider sets the tracer provider used for submission spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Submitter) { s.tracer = tp.Tracer("storefront/checkout") }
}

// Submitter validates checkout forms and submits the cart as an order. At
// most one submission runs at a time.
type Submitter struct {
	cart     *cart.Container
	orders   OrderCreator
	validate *validator.Validate
	lg       *zap.Logger
	tracer   trace.Tracer
	inFlight atomic.Bool
}

// NewSubmitter creates a Submitter for c.
func NewSubmitter(c *cart.Container, orders OrderCreator, opts ...Option) *Submitter {
	s := &Submitter{
		cart:     c,
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		lg:       zap.NewNop(),
		tracer:   otel.GetTracerProvider().Tracer("storefront/checkout"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submitting reports whether a submission is in progress.
func (s *Submitter) Submitting() bool { return s.inFlight.Load() }

// Validate checks the form without submitting anything.
func (s *Submitter) Validate(form Form) error {
	err := s.validate.Struct(form.trimmed())
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return errors.Wrap(err, "validate form")
	}
	fields := make([]string, len(vErrs))
	for i, fe := range vErrs {
		fields[i] = strings.ToLower(fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// Submit places an order for the current cart contents. On success the
// ordered lines are removed from the cart, so items added while the request
// was in flight stay; on any failure the cart is left untouched and the
// caller may retry.
func (s *Submitter) Submit(ctx context.Context, form Form) (*Receipt, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmitInFlight
	}
	defer s.inFlight.Store(false)

	if err := s.Validate(form); err != nil {
		return nil, err
	}
	snapshot := s.cart.State()
	if snapshot.Len() == 0 {
		return nil, ErrEmptyCart
	}
	form = form.trimmed()

	ctx, span := s.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(
			attribute.Int("cart.lines", snapshot.Len()),
			attribute.Int("cart.count", snapshot.Count()),
		),
	)
	defer span.End()

	req := wire.OrderRequest{
		Name:     form.Name,
		Surname:  form.Surname,
		Phone:    form.Phone,
		State:    form.State,
		Products: make([]wire.OrderLine, len(snapshot.Items)),
	}
	for i, it := range snapshot.Items {
		req.Products[i] = wire.OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}

	o, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		s.lg.Warn("Order submission failed", zap.Error(err), zap.Int("lines", snapshot.Len()))
		return nil, errors.Wrap(err, "submit order")
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	s.cart.RemoveOrdered(snapshot.Items)
	s.lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Stringer("total", o.Total),
		zap.Int("lines", snapshot.Len()),
	)

	total := o.Total
	if total.IsZero() {
		total = snapshot.Total()
	}
	return &Receipt{
		OrderID:   o.ID,
		Total:     total,
		Items:     snapshot.Items,
		CreatedAt: o.CreatedAt,
	}, nil
}
