package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for order validation and lookup.
var (
	ErrEmptyItems = errors.New("items required")
	ErrNotFound   = errors.New("order not found")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// MissingFieldsError lists required contact fields that were left blank.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// PlaceOrderRequest holds the input for placing an order. Prices sent by
// the client are not trusted; lines are priced from the catalog.
type PlaceOrderRequest struct {
	Name    string `validate:"required"`
	Surname string `validate:"required"`
	Phone   string `validate:"required"`
	State   string `validate:"required"`
	Items   []OrderItem
}

// Service encapsulates order placement and administration.
type Service struct {
	products product.Repository
	orders   Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products product.Repository, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// PlaceOrder validates the request, prices every line from the catalog in a
// single batch lookup, and persists the order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	req.Phone = strings.TrimSpace(req.Phone)
	req.State = strings.TrimSpace(req.State)
	if err := s.validateContact(req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]OrderItem, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		items[i] = OrderItem{
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Price:     p.Price,
			Name:      p.Name,
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	o := &Order{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Surname:   req.Surname,
		Phone:     req.Phone,
		State:     req.State,
		Items:     items,
		Total:     total.Round(2),
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

func (s *Service) validateContact(req PlaceOrderRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return errors.Wrap(err, "validate order")
	}
	fields := make([]string, len(vErrs))
	for i, fe := range vErrs {
		fields[i] = strings.ToLower(fe.Field())
	}
	return &MissingFieldsError{Fields: fields}
}

// List returns orders matching filter with product names filled in.
func (s *Service) List(ctx context.Context, filter Filter) ([]Order, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}
	if len(ids) == 0 {
		return orders, nil
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range orders {
		for j := range orders[i].Items {
			orders[i].Items[j].Name = names[orders[i].Items[j].ProductID]
		}
	}
	return orders, nil
}

// SetConfirmed updates the confirmation flag of an order.
func (s *Service) SetConfirmed(ctx context.Context, id string, confirmed bool) (*Order, error) {
	o, err := s.orders.SetConfirmed(ctx, id, confirmed)
	if err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}
	return o, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete order")
	}
	return nil
}
