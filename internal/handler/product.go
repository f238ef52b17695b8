package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	out := make([]wire.Product, len(products))
	for i, p := range products {
		out[i] = h.toWireProduct(p)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProducts(e, out) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWireProduct(*p).Encode)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in wire.Product
	if !readJSON(w, r, in.Decode) {
		return
	}
	p, err := h.products.Create(r.Context(), fromWireProduct(in))
	if err != nil {
		h.writeProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toWireProduct(*p).Encode)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in wire.Product
	if !readJSON(w, r, in.Decode) {
		return
	}
	p := fromWireProduct(in)
	p.ID = r.PathValue("id")

	updated, err := h.products.Update(r.Context(), p)
	if err != nil {
		h.writeProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWireProduct(*updated).Encode)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeProductError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeProductError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *product.ValidationError
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	default:
		writeInternal(w, r, err)
	}
}

// toWireProduct converts a domain product for responses. Relative image
// paths are resolved against the configured base URL.
func (h *Handler) toWireProduct(p product.Product) wire.Product {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	return wire.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Images:      images,
		Quantity:    p.Quantity,
	}
}

func (h *Handler) imageURL(img string) string {
	if h.imageBaseURL == "" || strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return img
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(img, "/")
}

func fromWireProduct(in wire.Product) product.Product {
	return product.Product{
		ID:          in.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Images:      in.Images,
		Quantity:    in.Quantity,
	}
}
