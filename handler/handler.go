package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"telegram-shop/bot"
	"telegram-shop/config"
	"telegram-shop/metrics"
	"telegram-shop/model"
	"telegram-shop/service"
	"telegram-shop/store"
)

const sessionHeader = "X-Session-ID"

// Messenger is the part of the Bot API the webhook needs.
type Messenger interface {
	service.Sender
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Handler is the HTTP layer for the storefront API and the bot webhook.
type Handler struct {
	catalog   service.CatalogInterface
	orders    service.OrderServiceInterface
	notifier  service.NotifierInterface
	router    *bot.Router
	messenger Messenger
	carts     store.KV
	cfg       *config.Config
	metrics   *metrics.Metrics

	// per-session mutexes so concurrent requests of one session do not
	// lose cart updates. Keys are session id -> *sync.Mutex
	locks sync.Map
}

type Deps struct {
	Catalog   service.CatalogInterface
	Orders    service.OrderServiceInterface
	Notifier  service.NotifierInterface
	Router    *bot.Router
	Messenger Messenger
	Carts     store.KV
	Config    *config.Config
	Metrics   *metrics.Metrics
}

// NewHandler returns a Handler instance
func NewHandler(d Deps) *Handler {
	return &Handler{
		catalog:   d.Catalog,
		orders:    d.Orders,
		notifier:  d.Notifier,
		router:    d.Router,
		messenger: d.Messenger,
		carts:     d.Carts,
		cfg:       d.Config,
		metrics:   d.Metrics,
	}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(logMiddleware, h.metricsMiddleware)

	// Bot
	r.HandleFunc("/webhook", h.Webhook).Methods(http.MethodPost)

	// Catalog
	r.HandleFunc("/api/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.GetProduct).Methods(http.MethodGet)

	// Cart
	r.HandleFunc("/api/cart", h.featureGate(h.cfg.Features.Cart, h.GetCart)).Methods(http.MethodGet)
	r.HandleFunc("/api/cart/items", h.featureGate(h.cfg.Features.Cart, h.AddToCart)).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{id}", h.featureGate(h.cfg.Features.Cart, h.SetCartQuantity)).Methods(http.MethodPut)
	r.HandleFunc("/api/cart/items/{id}", h.featureGate(h.cfg.Features.Cart, h.RemoveFromCart)).Methods(http.MethodDelete)

	// Orders
	r.HandleFunc("/api/orders", h.SubmitOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders", h.featureGate(h.cfg.Features.Orders, h.ListOrders)).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}", h.featureGate(h.cfg.Features.Orders, h.GetOrder)).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}/status", h.featureGate(h.cfg.Features.Orders, h.UpdateOrderStatus)).Methods(http.MethodPatch)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
}

// --- request / response shapes ---
type addCartItemReq struct {
	ProductID int64 `json:"productId"`
	Quantity  *int  `json:"quantity,omitempty"` // defaults to 1
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

type cartResp struct {
	Items []model.CartLine `json:"items"`
	Total int64            `json:"total"`
	Count int              `json:"count"`
}

type productsResp struct {
	Items []model.Product `json:"items"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *Handler) featureGate(enabled bool, next http.HandlerFunc) http.HandlerFunc {
	if enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func sessionKey(base string, r *http.Request) string {
	if s := r.Header.Get(sessionHeader); s != "" {
		return base + ":" + s
	}
	return base
}

// lockSession acquires the process-local lock of one cart key. Returns unlock func.
func (h *Handler) lockSession(key string) func() {
	m := &sync.Mutex{}
	actual, _ := h.locks.LoadOrStore(key, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}

// --- Catalog ---

// ListProducts handles GET /api/products?category=&q=&page=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var category, search string
	if h.cfg.Features.Categories {
		category = q.Get("category")
	}
	if h.cfg.Features.Search {
		search = q.Get("q")
	}
	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeErr(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	all := h.catalog.List(category, search)
	writeJSON(w, http.StatusOK, productsResp{
		Items: service.Page(all, page, h.cfg.ProductsPerPage),
		Total: len(all),
		Page:  page,
	})
}

// GetProduct handles GET /api/products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.catalog.Find(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Cart ---

func (h *Handler) loadCart(key string) (*service.Cart, error) {
	return service.LoadCart(h.carts, key, h.catalog, h.cfg.MaxCartItems)
}

func writeCart(w http.ResponseWriter, c *service.Cart) {
	writeJSON(w, http.StatusOK, cartResp{Items: c.Lines(), Total: c.Total(), Count: c.ItemCount()})
}

// GetCart handles GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(h.cfg.CartKey, r)
	unlock := h.lockSession(key)
	defer unlock()

	cart, err := h.loadCart(key)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeCart(w, cart)
}

// AddToCart handles POST /api/cart/items
// body: { "productId": 1, "quantity": 2 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	key := sessionKey(h.cfg.CartKey, r)
	unlock := h.lockSession(key)
	defer unlock()

	cart, err := h.loadCart(key)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if err := cart.Add(req.ProductID, qty); err != nil {
		h.cartError(w, r, err)
		return
	}
	writeCart(w, cart)
}

// SetCartQuantity handles PUT /api/cart/items/{id}
// body: { "quantity": 3 }; 0 or less removes the line
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	key := sessionKey(h.cfg.CartKey, r)
	unlock := h.lockSession(key)
	defer unlock()

	cart, err := h.loadCart(key)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if err := cart.SetQuantity(id, req.Quantity); err != nil {
		h.cartError(w, r, err)
		return
	}
	writeCart(w, cart)
}

// RemoveFromCart handles DELETE /api/cart/items/{id}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}

	key := sessionKey(h.cfg.CartKey, r)
	unlock := h.lockSession(key)
	defer unlock()

	cart, err := h.loadCart(key)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if err := cart.Remove(id); err != nil {
		h.internalError(w, r, err)
		return
	}
	writeCart(w, cart)
}

func (h *Handler) cartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrProductNotFound):
		writeErr(w, http.StatusNotFound, "product not found")
	case errors.Is(err, model.ErrInvalidQuantity), errors.Is(err, model.ErrCartLimit),
		errors.Is(err, model.ErrAmountOverflow):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, r, err)
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
