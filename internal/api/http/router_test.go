package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/outbox"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository/memory"
	"github.com/spec-kit/triage-service/internal/service"
)

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string, string) (domain.ClassificationResult, error) {
	return domain.ClassificationResult{}, context.DeadlineExceeded
}

type RouterSuite struct {
	suite.Suite
	app     *fiber.App
	triage  *service.TriageService
	tokens  map[string]string
	metrics *observability.Metrics
}

func (s *RouterSuite) SetupTest() {
	logger := zap.NewNop()
	s.metrics = observability.NewMetrics()
	tickets := memory.NewTicketStore()
	profiles := memory.NewProfileStore()
	dispatcher := events.NewInMemoryDispatcher(logger)

	s.triage = service.NewTriageService(service.TriageDependencies{
		Tickets:    tickets,
		History:    memory.NewHistoryStore(),
		Dispatcher: dispatcher,
		Classifier: stubClassifier{},
		Runner:     service.RunnerConfig{Timeout: time.Second, MaxInFlight: 2},
		Logger:     logger,
		Metrics:    s.metrics,
	})
	outboxSvc := service.NewOutboxService(service.OutboxDependencies{
		Tickets:    tickets,
		Messages:   memory.NewOutboxStore(),
		Broker:     outbox.NewMemoryBroker(logger),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	service.NewNotificationService(dispatcher, tickets, outboxSvc, logger, config.NotificationConfig{}).RegisterHandlers()
	authSvc := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}, profiles)

	s.tokens = map[string]string{}
	for _, dept := range []domain.Department{domain.DepartmentFinance, domain.DepartmentDev, domain.DepartmentAll} {
		d := dept
		email := string(d) + "@example.com"
		_, err := authSvc.CreateStaff(context.Background(), string(d), email, "pw", &d)
		s.Require().NoError(err)
		_, token, _, err := authSvc.LoginStaff(context.Background(), email, "pw")
		s.Require().NoError(err)
		s.tokens[string(d)] = token
	}

	s.app = fiber.New()
	RegisterMiddlewares(s.app, logger, s.metrics, time.Second)
	RegisterRoutes(s.app, RouteConfig{
		Health:         handlers.NewHealthHandler("triage", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Tickets:        handlers.NewTicketsHandler(s.triage, "cb-secret", nil),
		Staff:          handlers.NewStaffHandler(authSvc),
		StaffTickets:   handlers.NewStaffTicketsHandler(s.triage, outboxSvc, logger, nil),
		Analytics:      handlers.NewAnalyticsHandler(service.NewAnalyticsService(tickets, time.Minute, nil), s.triage, s.metrics, nil),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), profiles),
	})
}

func (s *RouterSuite) TearDownTest() {
	s.triage.Runner().Close()
}

func (s *RouterSuite) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, 5000)
	s.Require().NoError(err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func (s *RouterSuite) submit() string {
	status, body := s.do(http.MethodPost, "/api/tickets", "", map[string]any{
		"name": "Dana", "email": "dana@example.com", "subject": "Billing dispute", "description": "Charged twice",
	})
	s.Require().Equal(http.StatusCreated, status)
	data := body["data"].(map[string]any)
	s.Equal("Classifying", data["status"])
	return data["id"].(string)
}

func (s *RouterSuite) TestIntakeValidationEnvelope() {
	status, body := s.do(http.MethodPost, "/api/tickets", "", map[string]any{"name": "Dana", "email": "nope"})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func (s *RouterSuite) TestClassificationCallbackAndScopedAccess() {
	id := s.submit()
	s.triage.Runner().Wait()

	payload := map[string]any{"category": "Billing", "urgency": "High", "department": "Finance", "slaHours": 4}
	status, _ := s.do(http.MethodPost, "/internal/classifications/"+id, "", payload)
	s.Equal(http.StatusUnauthorized, status)

	status, body := s.do(http.MethodPost, "/internal/classifications/"+id, "", payload, handlers.ClassifierTokenHeader, "cb-secret")
	s.Require().Equal(http.StatusOK, status)
	s.Equal("Open", body["data"].(map[string]any)["status"])

	status, body = s.do(http.MethodGet, "/staff/tickets/"+id, s.tokens["Finance"], nil)
	s.Require().Equal(http.StatusOK, status)
	data := body["data"].(map[string]any)
	s.Equal("Finance", data["department"])
	s.Equal(false, data["sla_breached"])
	s.Nil(data["resolved_at"])

	status, body = s.do(http.MethodGet, "/staff/tickets/"+id, s.tokens["Dev"], nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("FORBIDDEN", body["error"].(map[string]any)["code"])

	status, body = s.do(http.MethodPatch, "/staff/tickets/"+id+"/status", s.tokens["Finance"], map[string]any{"status": "Resolved"})
	s.Require().Equal(http.StatusOK, status)
	s.NotNil(body["data"].(map[string]any)["resolved_at"])

	status, body = s.do(http.MethodPatch, "/staff/tickets/"+id+"/status", s.tokens["Finance"], map[string]any{"status": "Open", "expected_version": 1})
	s.Equal(http.StatusConflict, status)
	s.Equal(true, body["error"].(map[string]any)["details"].(map[string]any)["retryable"])

	status, body = s.do(http.MethodGet, "/staff/tickets/"+id+"/messages", s.tokens["Finance"], nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(body["data"], 1)

	status, body = s.do(http.MethodGet, "/staff/tickets?department=Finance", s.tokens["All Departments"], nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(body["data"], 1)

	status, _ = s.do(http.MethodGet, "/staff/tickets?status=Pending", s.tokens["Finance"], nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *RouterSuite) TestStaffRoutesRequireAuth() {
	status, body := s.do(http.MethodGet, "/staff/tickets", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func (s *RouterSuite) TestLogin() {
	status, body := s.do(http.MethodPost, "/auth/staff/login", "", map[string]any{"email": "finance@example.com", "password": "pw"})
	s.Require().Equal(http.StatusOK, status)
	data := body["data"].(map[string]any)
	s.Equal("Finance", data["staff"].(map[string]any)["department"])
	s.NotEmpty(data["auth"].(map[string]any)["token"])

	status, _ = s.do(http.MethodPost, "/auth/staff/login", "", map[string]any{"email": "finance@example.com", "password": "bad"})
	s.Equal(http.StatusUnauthorized, status)
}

func (s *RouterSuite) TestHealthAndUnknownRoute() {
	status, body := s.do(http.MethodGet, "/health/ready", "", nil)
	s.Equal(http.StatusOK, status)
	s.Equal("disabled", body["dependencies"].(map[string]any)["postgres"])

	status, body = s.do(http.MethodGet, "/nope", "", nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("NOT_FOUND", body["error"].(map[string]any)["code"])
}

func (s *RouterSuite) TestAnalyticsAndReport() {
	s.submit()
	s.triage.Runner().Wait()

	status, body := s.do(http.MethodGet, "/staff/analytics", s.tokens["All Departments"], nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(float64(1), body["data"].(map[string]any)["total"])

	req := httptest.NewRequest(http.MethodGet, "/staff/reports/sla.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+s.tokens["All Departments"])
	resp, err := s.app.Test(req, 5000)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "spreadsheetml")

	status, body = s.do(http.MethodGet, "/metrics", "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.NotNil(body["data"])
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}
