package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/wire"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in wire.OrderRequest
	if !readJSON(w, r, in.Decode) {
		return
	}

	items := make([]order.OrderItem, len(in.Products))
	for i, line := range in.Products {
		items[i] = order.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Name:    in.Name,
		Surname: in.Surname,
		Phone:   in.Phone,
		State:   in.State,
		Items:   items,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWireOrder(*o).Encode)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.Filter{Search: q.Get("search")}
	if v := q.Get("unconfirmed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unconfirmed must be a boolean")
			return
		}
		filter.UnconfirmedOnly = b
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	out := make([]wire.Order, len(orders))
	for i, o := range orders {
		out[i] = toWireOrder(o)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrders(e, out) })
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	var in wire.Confirmation
	if !readJSON(w, r, in.Decode) {
		return
	}
	o, err := h.orders.SetConfirmed(r.Context(), r.PathValue("id"), in.Confirmed)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireOrder(*o).Encode)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeOrderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps order domain errors to HTTP statuses.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mfErr  *order.MissingFieldsError
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mfErr):
		writeError(w, http.StatusBadRequest, mfErr.Error())
	case errors.As(err, &iqErr):
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		writeInternal(w, r, err)
	}
}

func toWireOrder(o order.Order) wire.Order {
	lines := make([]wire.OrderLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = wire.OrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}
	return wire.Order{
		ID:        o.ID,
		Name:      o.Name,
		Surname:   o.Surname,
		Phone:     o.Phone,
		State:     o.State,
		Products:  lines,
		Total:     o.Total,
		Confirmed: o.Confirmed,
		CreatedAt: o.CreatedAt,
	}
}
