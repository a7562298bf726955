package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	appcart "github.com/Zhima-Mochi/marketplace-saga/internal/application/cart"
	appcustomer "github.com/Zhima-Mochi/marketplace-saga/internal/application/customer"
	apporder "github.com/Zhima-Mochi/marketplace-saga/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-saga/internal/application/payment"
	appseller "github.com/Zhima-Mochi/marketplace-saga/internal/application/seller"
	appshipment "github.com/Zhima-Mochi/marketplace-saga/internal/application/shipment"
	appstock "github.com/Zhima-Mochi/marketplace-saga/internal/application/stock"
	domcart "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	domcustomer "github.com/Zhima-Mochi/marketplace-saga/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domseller "github.com/Zhima-Mochi/marketplace-saga/internal/domain/seller"
	domshipment "github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	domstock "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const componentHTTPHandler = "http_server"

// Compensator publishes the mark carried by a failed step.
type Compensator interface {
	Compensate(ctx context.Context, err error) error
}

// MarkSource answers which marks an instance has produced so far.
type MarkSource interface {
	Marks(instanceID string) []saga.TransactionMark
	Reset()
}

// Deps groups what the HTTP surface drives. Provider and Metrics are optional.
type Deps struct {
	Cart     *appcart.Service
	Stock    *appstock.Service
	Order    *apporder.Service
	Payment  *apppayment.Service
	Shipment *appshipment.Service
	Seller   *appseller.Service
	Customer *appcustomer.Service

	Compensator Compensator
	Marks       MarkSource
	// Catalog receives product and price changes posted over HTTP.
	Catalog domoutbox.Publisher

	Provider http.Handler
	Metrics  http.Handler
}

type Handler struct {
	deps Deps
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(deps Deps, logger observability.Logger, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	if logger == nil {
		logger = tel.Logger()
	}
	return &Handler{
		deps: deps,
		log:  logger.With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

// Router wires every route behind Trace → RequestLogger → HTTPMetrics → AccessLog.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Trace, RequestLogger(h.log), HTTPMetrics(h.tel), AccessLog(h.log))

	r.Route("/cart/{customerId}", func(r chi.Router) {
		r.Get("/", h.handleGetCart)
		r.Post("/items", h.handleAddItem)
		r.Post("/checkout", h.handleCheckout)
		r.Patch("/seal", h.handleSealCart)
	})

	r.Post("/stock", h.handleCreateStock)
	r.Get("/stock/{sellerId}/{productId}", h.handleGetStock)
	r.Patch("/stock/{sellerId}/{productId}/increase", h.handleIncreaseStock)

	r.Post("/catalog/products", h.handleProductUpdated)
	r.Patch("/catalog/prices", h.handlePriceUpdated)

	r.Get("/orders/{customerId}/{orderId}", h.handleGetOrder)
	r.Get("/payments/{customerId}/{orderId}", h.handleGetPayment)
	r.Get("/shipments/{customerId}/{orderId}", h.handleGetShipment)
	r.Patch("/shipments/{instanceId}", h.handleUpdateShipment)
	r.Get("/sellers/{sellerId}/dashboard", h.handleDashboard)
	r.Get("/customers/{customerId}", h.handleGetCustomer)
	r.Get("/marks/{instanceId}", h.handleMarks)

	if h.deps.Provider != nil {
		r.Mount("/provider", h.deps.Provider)
	}
	if h.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.deps.Metrics)
	}

	r.Patch("/reset", h.handleReset)
	r.Patch("/cleanup", h.handleCleanup)
	r.Get("/health", h.handleHealth)
	return r
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Cart.GetCart(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var item saga.CartItem
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.deps.Cart.AddItem(r.Context(), chi.URLParam(r, "customerId"), item)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type checkoutResponse struct {
	InstanceID string `json:"instanceId"`
}

// handleCheckout starts a saga instance. A rejected checkout still leaves its mark on the
// customer-session channel.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var checkout saga.CustomerCheckout
	if err := decodeJSON(r, &checkout); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	checkout.CustomerID = chi.URLParam(r, "customerId")
	if checkout.InstanceID == "" {
		checkout.InstanceID = uuid.NewString()
	}

	ctx, _ := logctx.Enrich(r.Context(), h.log, observability.F("instance_id", checkout.InstanceID))
	if err := h.deps.Cart.NotifyCheckout(ctx, checkout); err != nil {
		if _, ok := saga.AsFailure(err); ok && h.deps.Compensator != nil {
			if perr := h.deps.Compensator.Compensate(ctx, err); perr != nil {
				writeError(w, http.StatusInternalServerError, perr)
				return
			}
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, checkoutResponse{InstanceID: checkout.InstanceID})
}

func (h *Handler) handleSealCart(w http.ResponseWriter, r *http.Request) {
	clearItems, _ := strconv.ParseBool(r.URL.Query().Get("clear"))
	if err := h.deps.Cart.SealCart(r.Context(), chi.URLParam(r, "customerId"), clearItems); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateStock(w http.ResponseWriter, r *http.Request) {
	var it domstock.Item
	if err := decodeJSON(r, &it); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.deps.Stock.CreateStockItem(r.Context(), &it); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	it, err := h.deps.Stock.GetItem(r.Context(), chi.URLParam(r, "sellerId"), chi.URLParam(r, "productId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type increaseStockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleIncreaseStock(w http.ResponseWriter, r *http.Request) {
	var req increaseStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := h.deps.Stock.IncreaseStock(r.Context(), chi.URLParam(r, "sellerId"), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) handleProductUpdated(w http.ResponseWriter, r *http.Request) {
	var evt product.ProductUpdated
	if err := decodeJSON(r, &evt); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.publishCatalog(w, r, evt)
}

func (h *Handler) handlePriceUpdated(w http.ResponseWriter, r *http.Request) {
	var evt product.PriceUpdated
	if err := decodeJSON(r, &evt); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if evt.InstanceID == "" {
		evt.InstanceID = uuid.NewString()
	}
	h.publishCatalog(w, r, evt)
}

func (h *Handler) publishCatalog(w http.ResponseWriter, r *http.Request, evt domoutbox.Event) {
	if h.deps.Catalog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("catalog ingress disabled"))
		return
	}
	if err := h.deps.Catalog.Publish(r.Context(), evt); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, evt)
}

type orderResponse struct {
	Order   *domorder.Order    `json:"order"`
	Items   []domorder.Item    `json:"items"`
	History []domorder.History `json:"history"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	key, err := orderKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, items, err := h.deps.Order.GetOrder(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	history, err := h.deps.Order.ListHistory(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: o, Items: items, History: history})
}

type paymentResponse struct {
	Lines []dompayment.Line `json:"lines"`
	Card  *dompayment.Card  `json:"card,omitempty"`
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	key, err := orderKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines, card, err := h.deps.Payment.GetPayment(r.Context(), key.CustomerID, key.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Lines: lines, Card: card})
}

type shipmentResponse struct {
	Shipment *domshipment.Shipment `json:"shipment"`
	Packages []domshipment.Package `json:"packages"`
}

func (h *Handler) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	key, err := orderKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sh, pkgs, err := h.deps.Shipment.GetShipment(r.Context(), domshipment.Key{CustomerID: key.CustomerID, OrderID: key.OrderID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipmentResponse{Shipment: sh, Packages: pkgs})
}

// handleUpdateShipment runs one delivery sweep. A partial failure still reports what was delivered.
func (h *Handler) handleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	sweep, err := h.deps.Shipment.UpdateShipment(r.Context(), chi.URLParam(r, "instanceId"))
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("shipment_sweep_partial", observability.F("error", err.Error()))
		writeJSON(w, http.StatusMultiStatus, map[string]any{"sweep": sweep, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sweep)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Seller.QueryDashboard(r.Context(), chi.URLParam(r, "sellerId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Customer.GetCustomer(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleMarks(w http.ResponseWriter, r *http.Request) {
	if h.deps.Marks == nil {
		writeJSON(w, http.StatusOK, []saga.TransactionMark{})
		return
	}
	marks := h.deps.Marks.Marks(chi.URLParam(r, "instanceId"))
	if marks == nil {
		marks = []saga.TransactionMark{}
	}
	writeJSON(w, http.StatusOK, marks)
}

// handleReset restores the default inventory and empties every participant's working data.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	steps := []func(context.Context) error{
		h.deps.Stock.Reset,
		h.deps.Cart.Reset,
		h.deps.Order.Cleanup,
		h.deps.Payment.Cleanup,
		h.deps.Shipment.Cleanup,
		h.deps.Seller.Cleanup,
		h.deps.Customer.Reset,
	}
	h.runAll(w, r, "reset", steps)
}

// handleCleanup drops everything including stock rows and product replicas.
func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	steps := []func(context.Context) error{
		h.deps.Stock.Cleanup,
		h.deps.Cart.Cleanup,
		h.deps.Order.Cleanup,
		h.deps.Payment.Cleanup,
		h.deps.Shipment.Cleanup,
		h.deps.Seller.Cleanup,
		h.deps.Customer.Cleanup,
	}
	h.runAll(w, r, "cleanup", steps)
}

func (h *Handler) runAll(w http.ResponseWriter, r *http.Request, op string, steps []func(context.Context) error) {
	var errs []error
	for _, step := range steps {
		if err := step(r.Context()); err != nil {
			errs = append(errs, err)
		}
	}
	if h.deps.Marks != nil {
		h.deps.Marks.Reset()
	}
	if err := errors.Join(errs...); err != nil {
		logctx.FromOr(r.Context(), h.log).Error(op+"_failed", observability.F("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func orderKey(r *http.Request) (domorder.Key, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "orderId"))
	if err != nil {
		return domorder.Key{}, errors.New("orderId must be an integer")
	}
	return domorder.Key{CustomerID: chi.URLParam(r, "customerId"), OrderID: id}, nil
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, domstock.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dompayment.ErrNotFound),
		errors.Is(err, domshipment.ErrNotFound),
		errors.Is(err, domseller.ErrNotFound),
		errors.Is(err, domcustomer.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domcart.ErrNoItems),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domcart.ErrCustomerRequired),
		errors.Is(err, domstock.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domstock.ErrInsufficientStock),
		errors.Is(err, domorder.ErrInvalidStateTransition),
		errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
