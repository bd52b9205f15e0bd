package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/api/http/handlers"
	"github.com/supportops/owner-relay/internal/config"
	"github.com/supportops/owner-relay/internal/domain"
	"github.com/supportops/owner-relay/internal/events"
	"github.com/supportops/owner-relay/internal/observability"
	"github.com/supportops/owner-relay/internal/persistence"
	"github.com/supportops/owner-relay/internal/repository"
	"github.com/supportops/owner-relay/internal/service"
	"github.com/supportops/owner-relay/internal/worker"
)

const webhookPath = "/5c2df3d1-3371-47bd-a9cf-1983e9adc18b"

type testEnv struct {
	app       *fiber.App
	metrics   *observability.Metrics
	sinkCalls *atomic.Int32
	messages  chan string
}

type sinkPayload struct {
	Message string `json:"message"`
}

// newTestEnv wires the real stack against a sqlite support_list and an
// httptest chat sink answering sinkStatus.
func newTestEnv(t *testing.T, sinkStatus int, staff ...domain.StaffRecord) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := persistence.OpenSQLite(context.Background(), config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "relay.db")}, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, s := range staff {
		var updated any
		if s.LastAssigned != nil {
			updated = s.LastAssigned.UTC().Format(repository.SQLiteTimeLayout)
		}
		if _, err := db.Exec(`INSERT INTO support_list (name, id, status, updated_at) VALUES (?, ?, ?, ?)`,
			s.Name, s.ID, string(s.Status), updated); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	env := &testEnv{sinkCalls: &atomic.Int32{}, messages: make(chan string, 16)}
	sink := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		env.sinkCalls.Add(1)
		var p sinkPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		env.messages <- p.Message
		w.WriteHeader(sinkStatus)
	}))
	t.Cleanup(sink.Close)

	env.metrics = observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartMetricsWorker(dispatcher, env.metrics, logger)

	repo := repository.NewSQLiteSupportListRepository(db)
	rotation := service.NewRotationService(service.RotationDependencies{
		StaffRepo:  repo,
		Owner:      config.OwnerConfig{DefaultName: "user01"},
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notifier := service.NewSlackNotifier(config.WebhookConfig{SlackURL: sink.URL, NotifyTimeoutSeconds: 2}, nil, logger)
	webhooks := service.NewWebhookService(service.WebhookDependencies{
		Owners:     rotation,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	env.app = NewServer(ServerConfig{
		AppName:        "owner-relay-test",
		RequestTimeout: 5 * time.Second,
		Logger:         logger,
		Metrics:        env.metrics,
		Routes: RouteConfig{
			WebhookPath: webhookPath,
			Health:      handlers.NewHealthHandler(repo, nil),
			Webhook:     handlers.NewWebhookHandler(webhooks),
			Metrics:     handlers.NewMetricsHandler(env.metrics),
		},
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func online(name, id string, minutesAgo int) domain.StaffRecord {
	ts := time.Now().Add(-time.Duration(minutesAgo) * time.Minute)
	return domain.StaffRecord{Name: name, ID: id, Status: domain.StaffStatusOnline, LastAssigned: &ts}
}

func TestWebhookEndToEndSinkAccepts(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK, online("Warner Chen", "U07GJ9QLC2Y", 60))

	status, body := env.do(t, stdhttp.MethodPost, webhookPath, `{"event":{"data":{"title":"Case 01590054 - Medium"}}}`)
	if status != stdhttp.StatusOK {
		t.Fatalf("status = %d body=%v", status, body)
	}
	if body["status"] != "success" || body["slack_sent"] != true {
		t.Fatalf("body = %v", body)
	}
	processed := body["processed_data"].(map[string]any)
	if processed["title"] != "Case 01590054 - Medium" || processed["owner_name"] != "Warner Chen" || processed["owner_id"] != "U07GJ9QLC2Y" {
		t.Fatalf("processed_data = %v", processed)
	}
	if msg := <-env.messages; msg != "Case 01590054 - Medium\nOwner: Warner Chen <@U07GJ9QLC2Y>" {
		t.Fatalf("sink message = %q", msg)
	}
}

func TestWebhookSinkFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusInternalServerError, online("Ada", "U1", 5))

	status, body := env.do(t, stdhttp.MethodPost, webhookPath, `{"event":{"data":{"title":"Case 7"}}}`)
	if status != stdhttp.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["slack_sent"] != false || body["status"] != "success" {
		t.Fatalf("body = %v", body)
	}
	if snap := env.metrics.Snapshot(); snap.NotificationsFail != 1 || snap.Assignments["rotated"] != 1 {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestWebhookFallbackOwnerWhenPoolEmpty(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK)

	status, body := env.do(t, stdhttp.MethodPost, webhookPath, `{}`)
	if status != stdhttp.StatusOK {
		t.Fatalf("status = %d", status)
	}
	processed := body["processed_data"].(map[string]any)
	if processed["title"] != "N/A" || processed["owner_name"] != "user01" || processed["owner_id"] != "" {
		t.Fatalf("processed_data = %v", processed)
	}
	if msg := <-env.messages; msg != "N/A\nOwner: user01" {
		t.Fatalf("sink message = %q", msg)
	}
	if env.metrics.Snapshot().Assignments["no_eligible_staff"] != 1 {
		t.Fatalf("fallback not counted")
	}
}

func TestWebhookRotatesAcrossRequests(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK,
		online("Ada", "U1", 30),
		online("Ben", "", 20),
		online("Cai", "U3", 10),
	)

	var owners []string
	for i := 0; i < 3; i++ {
		_, body := env.do(t, stdhttp.MethodPost, webhookPath, `{"event":{"data":{"title":"Case"}}}`)
		owners = append(owners, body["processed_data"].(map[string]any)["owner_name"].(string))
		<-env.messages
	}
	if strings.Join(owners, ",") != "Ada,Ben,Cai" {
		t.Fatalf("owners = %v", owners)
	}
}

func TestWebhookBadRequests(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK, online("Ada", "U1", 5))

	for _, body := range []string{"", "{broken", "null"} {
		status, resp := env.do(t, stdhttp.MethodPost, webhookPath, body)
		if status != stdhttp.StatusBadRequest {
			t.Fatalf("%q: status = %d", body, status)
		}
		if _, ok := resp["error"].(string); !ok {
			t.Fatalf("%q: body = %v", body, resp)
		}
	}
	if env.sinkCalls.Load() != 0 {
		t.Fatalf("bad requests must not notify")
	}
	if len(env.metrics.Snapshot().Assignments) != 0 {
		t.Fatalf("bad requests must not rotate")
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK)

	status, body := env.do(t, stdhttp.MethodGet, "/health", "")
	if status != stdhttp.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", status, body)
	}
	if _, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp not ISO-8601: %v", err)
	}

	status, body = env.do(t, stdhttp.MethodGet, "/health/ready", "")
	if status != stdhttp.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready = %d %v", status, body)
	}

	status, _ = env.do(t, stdhttp.MethodGet, "/metrics", "")
	if status != stdhttp.StatusOK {
		t.Fatalf("metrics = %d", status)
	}
}

func TestUnknownRouteRendersError(t *testing.T) {
	env := newTestEnv(t, stdhttp.StatusOK)
	for _, path := range []string{"/not-the-webhook", "/health/extra"} {
		status, body := env.do(t, stdhttp.MethodPost, path, `{}`)
		if status != stdhttp.StatusNotFound {
			t.Fatalf("%s: status = %d", path, status)
		}
		if body["error"] != "route not found" {
			t.Fatalf("%s: body = %v", path, body)
		}
	}
	if env.metrics.Snapshot().Errors["/not-the-webhook|POST|NOT_FOUND"] != 1 {
		t.Fatalf("404 not recorded as an error")
	}
}

func TestPanicBecomes500(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Post("/boom", func(*fiber.Ctx) error { panic("unexpected") })

	resp, err := app.Test(httptest.NewRequest(stdhttp.MethodPost, "/boom", nil), -1)
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "internal server error" {
		t.Fatalf("body = %v", body)
	}
}
