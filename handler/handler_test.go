package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-shop/bot"
	"telegram-shop/config"
	"telegram-shop/metrics"
	"telegram-shop/model"
	"telegram-shop/service"
	"telegram-shop/store"
)

// ---- fakes ----

type sent struct {
	chatID   string
	text     string
	keyboard [][]model.Button
}

type fakeMessenger struct {
	sent     []sent
	answered []string
	sendErr  error
}

func (f *fakeMessenger) Send(_ context.Context, chatID, text string, keyboard [][]model.Button) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, callbackID string) error {
	f.answered = append(f.answered, callbackID)
	return errors.New("callback expired")
}

type fakeNotifier struct {
	NotifyOrderFn func(ctx context.Context, order *model.Order) error
	notified      []string
}

func (f *fakeNotifier) NotifyOrder(ctx context.Context, order *model.Order) error {
	f.notified = append(f.notified, order.ID)
	if f.NotifyOrderFn != nil {
		return f.NotifyOrderFn(ctx, order)
	}
	return nil
}

type testEnv struct {
	router    *mux.Router
	orders    *service.OrderService
	notifier  *fakeNotifier
	messenger *fakeMessenger
	metrics   *metrics.Metrics
}

func testConfig() *config.Config {
	return &config.Config{
		CartKey:         "cart",
		ProductsPerPage: 2,
		MaxCartItems:    50,
		PaymentMethods:  []string{"card", "cash"},
		Currency:        "RUB",
		Features: config.Features{
			Search:        true,
			Categories:    true,
			Cart:          true,
			Orders:        true,
			Notifications: true,
		},
	}
}

func newEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	catalog := service.NewCatalog(service.DefaultProducts())
	orders := service.NewOrderService(store.NewMemoryOrderStore(), service.NewTimeIDGenerator(), false)
	env := &testEnv{
		orders:    orders,
		notifier:  &fakeNotifier{},
		messenger: &fakeMessenger{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h := NewHandler(Deps{
		Catalog:   catalog,
		Orders:    orders,
		Notifier:  env.notifier,
		Router:    bot.NewRouter(catalog, orders, bot.Options{Currency: "RUB", Location: time.UTC, OrdersEnabled: true}),
		Messenger: env.messenger,
		Carts:     store.NewMemoryKV(),
		Config:    cfg,
		Metrics:   env.metrics,
	})
	env.router = mux.NewRouter()
	h.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

const validOrder = `{
	"customerName": "Иван Иванов",
	"customerPhone": "+79991234567",
	"customerAddress": "ул. Ленина, дом 5, кв. 10",
	"paymentMethod": "cash",
	"chatId": "42",
	"items": [{"id": 1, "title": "iPhone 15 Pro", "price": 1, "quantity": 1}]
}`

// ---- Catalog ----

func TestListProducts(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/products?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp productsResp
	decode(t, rec, &resp)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 2, resp.Page)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(3), resp.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/api/products?category=home&q=кофе", "")
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Total)

	rec = env.do(t, http.MethodGet, "/api/products?category=toys", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, 0, resp.Total)
	assert.NotNil(t, resp.Items)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/products?page=zero", "").Code)
}

func TestListProductsIgnoresDisabledFilters(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Search = false
	cfg.Features.Categories = false
	env := newEnv(t, cfg)

	var resp productsResp
	decode(t, env.do(t, http.MethodGet, "/api/products?category=home&q=nothing", ""), &resp)
	assert.Equal(t, 5, resp.Total)
}

func TestGetProduct(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Product
	decode(t, rec, &p)
	assert.Equal(t, "MacBook Air M2", p.Title)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/products/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/products/x", "").Code)
}

// ---- Cart ----

func TestCartLifecycle(t *testing.T) {
	env := newEnv(t, testConfig())
	session := []string{sessionHeader, "s1"}

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1}`, session...)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 4, "quantity": 2}`, session...)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart cartResp
	decode(t, rec, &cart)
	assert.Equal(t, 3, cart.Count)
	assert.Equal(t, int64(89990+2*5990), cart.Total)

	rec = env.do(t, http.MethodPut, "/api/cart/items/4", `{"quantity": 1}`, session...)
	decode(t, rec, &cart)
	assert.Equal(t, 2, cart.Count)

	rec = env.do(t, http.MethodDelete, "/api/cart/items/1", "", session...)
	decode(t, rec, &cart)
	assert.Equal(t, int64(5990), cart.Total)

	// second removal is a no-op
	rec = env.do(t, http.MethodDelete, "/api/cart/items/1", "", session...)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &cart)
	assert.Equal(t, int64(5990), cart.Total)

	// other sessions have their own cart
	decode(t, env.do(t, http.MethodGet, "/api/cart", "", sessionHeader, "s2"), &cart)
	assert.Zero(t, cart.Count)
}

func TestCartErrors(t *testing.T) {
	env := newEnv(t, testConfig())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 99}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1, "quantity": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1, "quantity": 51}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/cart/items", `nope`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/cart/items/x", `{"quantity": 1}`).Code)
}

func TestCartAddRejectsQuantityOverflow(t *testing.T) {
	env := newEnv(t, testConfig())
	session := []string{sessionHeader, "s1"}

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1, "quantity": 1}`, session...).Code)
	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1, "quantity": 9223372036854775807}`, session...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/cart/items/1", `{"quantity": 9223372036854775807}`, session...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var cart cartResp
	decode(t, env.do(t, http.MethodGet, "/api/cart", "", session...), &cart)
	assert.Equal(t, 1, cart.Count)
	assert.Equal(t, int64(89990), cart.Total)
}

func TestCartDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Cart = false
	env := newEnv(t, cfg)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/cart", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 1}`).Code)
}

// ---- Orders ----

func TestSubmitOrder(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/orders", validOrder)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool   `json:"success"`
		OrderID string `json:"orderId"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.OrderID)

	order, err := env.orders.Find(resp.OrderID)
	require.NoError(t, err)
	// price comes from the catalog, not from the request
	assert.Equal(t, int64(89990), order.Total)
	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, "42", order.ChatID)
	assert.Equal(t, []string{resp.OrderID}, env.notifier.notified)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Orders))

	// a second identical submission gets a new id
	decode(t, env.do(t, http.MethodPost, "/api/orders", validOrder), &resp)
	assert.NotEqual(t, order.ID, resp.OrderID)

	second, err := env.orders.Find(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, second.Status)
	order, err = env.orders.Find(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, order.Status)
}

func TestSubmitOrderRejectsOversizedItems(t *testing.T) {
	env := newEnv(t, testConfig())

	for name, items := range map[string]string{
		"total overflows":   `[{"id": 1, "quantity": 102481911520608621}]`,
		"quantity overflow": `[{"id": 1, "quantity": 9223372036854775807}, {"id": 2, "quantity": 1}]`,
		"over item limit":   `[{"id": 1, "quantity": 51}]`,
		"split over limit":  `[{"id": 1, "quantity": 30}, {"id": 4, "quantity": 21}]`,
	} {
		body := strings.Replace(validOrder, `[{"id": 1, "title": "iPhone 15 Pro", "price": 1, "quantity": 1}]`, items, 1)
		rec := env.do(t, http.MethodPost, "/api/orders", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, name)

		var resp map[string]string
		decode(t, rec, &resp)
		assert.Equal(t, msgInvalidOrder, resp["error"], name)
	}

	all, err := env.orders.List()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, env.notifier.notified)

	// exactly at the limit is fine
	body := strings.Replace(validOrder, `"quantity": 1}`, `"quantity": 50}`, 1)
	rec := env.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSubmitOrderFromSessionCart(t *testing.T) {
	env := newEnv(t, testConfig())
	session := []string{sessionHeader, "s1"}

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items", `{"productId": 3, "quantity": 2}`, session...).Code)

	body := `{"customerName":"Иван","customerPhone":"+79991234567","customerAddress":"ул. Ленина, дом 5","paymentMethod":"card"}`
	rec := env.do(t, http.MethodPost, "/api/orders", body, session...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	orders, err := env.orders.List()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2*12990), orders[0].Total)

	var cart cartResp
	decode(t, env.do(t, http.MethodGet, "/api/cart", "", session...), &cart)
	assert.Zero(t, cart.Count)
}

func TestSubmitOrderValidation(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/orders", `{"customerName":"И","paymentMethod":"cash"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp validationErrResp
	decode(t, rec, &resp)
	assert.Equal(t, []string{
		service.MsgNameTooShort,
		service.MsgInvalidPhone,
		service.MsgAddressTooShort,
		service.MsgEmptyCart,
	}, resp.Errors)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/orders", `{`).Code)

	unknown := strings.Replace(validOrder, `"id": 1`, `"id": 99`, 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/orders", unknown).Code)

	crypto := strings.Replace(validOrder, `"cash"`, `"crypto"`, 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/orders", crypto).Code)

	all, _ := env.orders.List()
	assert.Empty(t, all)
	assert.Empty(t, env.notifier.notified)
}

func TestSubmitOrderNotificationFailureKeepsOrder(t *testing.T) {
	env := newEnv(t, testConfig())
	env.notifier.NotifyOrderFn = func(context.Context, *model.Order) error {
		return &service.DeliveryError{Recipient: "admin", Audience: service.AudienceAdmin, Err: errors.New("down")}
	}

	rec := env.do(t, http.MethodPost, "/api/orders", validOrder)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	all, err := env.orders.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Notifications.WithLabelValues("failed")))
}

func TestSubmitOrderNotificationsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Notifications = false
	env := newEnv(t, cfg)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/orders", validOrder).Code)
	assert.Empty(t, env.notifier.notified)
}

func TestOrderReadAndStatusUpdate(t *testing.T) {
	env := newEnv(t, testConfig())
	order, err := env.orders.Submit(model.OrderDraft{CustomerName: "Иван"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/orders/"+order.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []model.Order
	decode(t, env.do(t, http.MethodGet, "/api/orders", ""), &list)
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Order
	decode(t, rec, &updated)
	assert.Equal(t, model.StatusShipped, updated.Status)
	assert.NotNil(t, updated.UpdatedAt)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"lost"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/api/orders/missing/status", `{"status":"shipped"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/orders/missing", "").Code)
}

func TestOrdersDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Orders = false
	env := newEnv(t, cfg)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/orders", "").Code)
	// submission stays available
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/orders", validOrder).Code)
}

// ---- Webhook ----

func TestWebhookMessage(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/webhook", `{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"text":"/start"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	require.Len(t, env.messenger.sent, 1)
	assert.Equal(t, "42", env.messenger.sent[0].chatID)
	assert.Contains(t, env.messenger.sent[0].text, "Добро пожаловать")
	assert.Len(t, env.messenger.sent[0].keyboard, 3)
}

func TestWebhookCallback(t *testing.T) {
	env := newEnv(t, testConfig())

	body := `{"update_id":2,"callback_query":{"id":"cb1","data":"product_1","message":{"message_id":6,"chat":{"id":-100}}}}`
	rec := env.do(t, http.MethodPost, "/webhook", body)
	// a failed answerCallbackQuery is only logged
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cb1"}, env.messenger.answered)
	require.Len(t, env.messenger.sent, 1)
	assert.Equal(t, "-100", env.messenger.sent[0].chatID)
	assert.Contains(t, env.messenger.sent[0].text, "iPhone 15 Pro")
}

func TestWebhookErrors(t *testing.T) {
	env := newEnv(t, testConfig())

	assert.Equal(t, http.StatusInternalServerError, env.do(t, http.MethodPost, "/webhook", `{bad`).Code)

	// updates the shop does not handle are acknowledged
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook", `{"update_id":3,"edited_message":{}}`).Code)
	assert.Empty(t, env.messenger.sent)

	env.messenger.sendErr = errors.New("telegram is down")
	rec := env.do(t, http.MethodPost, "/webhook", `{"update_id":4,"message":{"chat":{"id":1},"text":"/help"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ---- Misc ----

func TestHealthMetricsAndRequestID(t *testing.T) {
	env := newEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = env.do(t, http.MethodGet, "/health", "", requestIDHeader, "req-1")
	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `telegram_shop_http_requests_total{handler="/health",status="200"} 2`)
}
