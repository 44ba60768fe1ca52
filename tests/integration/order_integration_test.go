package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/server"
	"github.com/tradedesk/tradedesk-api/services"
	"github.com/tradedesk/tradedesk-api/tests/testutil"
	"go.uber.org/zap"
)

// eventLog records published order events
type eventLog struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (l *eventLog) Publish(_ context.Context, e services.OrderEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) types() []services.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]services.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// OrderIntegrationTestSuite drives the assembled application through HTTP
type OrderIntegrationTestSuite struct {
	suite.Suite
	world  *testutil.World
	router *gin.Engine
	events *eventLog
	srv    *server.Server
}

func (s *OrderIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *OrderIntegrationTestSuite) SetupTest() {
	s.world = testutil.NewWorld(s.T())
	s.events = &eventLog{}

	srv, err := server.New(context.Background(), testutil.TestConfig(), s.world.DB, zap.NewNop(),
		server.WithEvents(s.events),
		server.WithArchiveStorage(services.NewMockArchiveStorage()),
	)
	s.Require().NoError(err)
	s.srv = srv
	s.router = srv.Router
}

func (s *OrderIntegrationTestSuite) TearDownTest() {
	s.NoError(s.srv.Close())
}

func (s *OrderIntegrationTestSuite) request(user models.User, method, path string, body any) (int, response) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	testutil.Authorize(s.T(), req, user)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func (s *OrderIntegrationTestSuite) order(resp response) models.Order {
	s.Require().True(resp.Success)
	var o models.Order
	s.Require().NoError(json.Unmarshal(resp.Data, &o))
	return o
}

func (s *OrderIntegrationTestSuite) createBody(code string, qty int) map[string]any {
	return map[string]any{
		"supplier_name":      "Acme Paper",
		"shipping_address":   "12 Harbour Road",
		"shipping":           5,
		"order_date":         time.Now().UTC().Format(time.RFC3339),
		"estimated_delivery": time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339),
		"items":              []map[string]any{{"product_code": code, "quantity": qty}},
	}
}

func (s *OrderIntegrationTestSuite) TestApprovalWorkflow() {
	status, resp := s.request(s.world.SalesEmployee, http.MethodPost, "/api/v1/orders", s.createBody("A1", 2))
	s.Require().Equal(http.StatusCreated, status)
	created := s.order(resp)
	path := fmt.Sprintf("/api/v1/orders/%d", created.ID)
	s.True(decimal.RequireFromString("221.00").Equal(created.TotalAmount), created.TotalAmount.String())

	status, _ = s.request(s.world.SalesEmployee, http.MethodPatch, path, map[string]any{"status": "pending"})
	s.Require().Equal(http.StatusOK, status)

	status, resp = s.request(s.world.ProcurementEmployee, http.MethodPatch, path, map[string]any{"status": "approved"})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(models.StatusApproved, s.order(resp).Status)

	status, resp = s.request(s.world.ProcurementHead, http.MethodPatch, path, map[string]any{"status": "fulfilled"})
	s.Equal(http.StatusForbidden, status)
	s.Equal(services.CodeInvalidTransition, resp.Error.Code)

	status, resp = s.request(s.world.Director, http.MethodPatch, path, map[string]any{"status": "rejected"})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(models.StatusRejected, s.order(resp).Status)

	s.Equal([]services.EventType{
		services.EventOrderCreated,
		services.EventOrderUpdated, services.EventOrderStatusChanged,
		services.EventOrderUpdated, services.EventOrderStatusChanged,
		services.EventOrderUpdated, services.EventOrderStatusChanged,
	}, s.events.types())
}

func (s *OrderIntegrationTestSuite) TestListWindowsPerDepartment() {
	for _, st := range []models.OrderStatus{models.StatusDraft, models.StatusPending, models.StatusApproved, models.StatusFulfilled, models.StatusRejected} {
		s.world.CreateOrder(s.T(), testutil.OrderSpec{
			Creator: s.world.SalesHead,
			Status:  st,
			Lines:   []testutil.Line{{Product: s.world.ProductA1, Quantity: 1}},
		})
	}

	cases := map[string]struct {
		user  models.User
		total int64
	}{
		"sales":       {s.world.SalesDeputy, 2},
		"procurement": {s.world.ProcurementHead, 3},
		"director":    {s.world.Director, 3},
	}
	for name, c := range cases {
		status, resp := s.request(c.user, http.MethodGet, "/api/v1/orders", nil)
		s.Require().Equal(http.StatusOK, status, name)
		var page services.OrderPage
		s.Require().NoError(json.Unmarshal(resp.Data, &page))
		s.Equal(c.total, page.Total, name)
	}

	status, _ := s.request(s.world.SalesIntern, http.MethodGet, "/api/v1/orders", nil)
	s.Equal(http.StatusForbidden, status)
}

func (s *OrderIntegrationTestSuite) TestUnknownUserIsRejected() {
	status, resp := s.request(models.User{Subject: "ghost"}, http.MethodGet, "/api/v1/me", nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("USER_NOT_FOUND", resp.Error.Code)
}

func (s *OrderIntegrationTestSuite) TestInvalidTokenIsRejected() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func TestOrderIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderIntegrationTestSuite))
}
