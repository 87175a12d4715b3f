package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"capworks/internal/config"
	"capworks/internal/db"
	"capworks/internal/domain"
	"capworks/internal/engine"
	"capworks/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil)
	e.Now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeErrorEnvelope(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, data)
	}
	return env
}

func seedBook(t *testing.T, srv *testServer, bookOpts engine.ProgramBookCreateOptions) (domain.AnnualProgram, domain.ProgramBook) {
	t.Helper()
	ctx := context.Background()
	ap, err := srv.Engine.CreateAnnualProgram(ctx, engine.AnnualProgramCreateOptions{
		Year:       2026,
		ExecutorID: "di",
		Status:     domain.AnnualProgramStatusProgramming,
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("seed annual program: %v", err)
	}
	bookOpts.AnnualProgramID = ap.ID
	if bookOpts.Name == "" {
		bookOpts.Name = "book"
	}
	if bookOpts.Status == "" {
		bookOpts.Status = domain.ProgramBookStatusProgramming
	}
	bookOpts.ActorID = "tester"
	pb, err := srv.Engine.CreateProgramBook(ctx, bookOpts)
	if err != nil {
		t.Fatalf("seed program book: %v", err)
	}
	return ap, pb
}

func seedProject(t *testing.T, srv *testServer) domain.Project {
	t.Helper()
	p, err := srv.Engine.CreateProject(context.Background(), engine.ProjectCreateOptions{
		Name:          "project",
		ExecutorID:    "di",
		ProjectTypeID: "integrated",
		BoroughID:     "VM",
		StartYear:     2026,
		EndYear:       2027,
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

func TestRequestsRequireAuthentication(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/annual-programs", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	env := decodeErrorEnvelope(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", env.Error.Code)
	}
}

func TestHealthEndpointIsOpen(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()

	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestJWTBearerAuthentication(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()

	claims := jwt.RegisteredClaims{
		Subject:   "jwt-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/annual-programs", nil,
		map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", resp.StatusCode)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/annual-programs", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	if env := decodeErrorEnvelope(t, data); env.Error.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", env.Error.Code)
	}
}

func TestLoadReturnsAcceptedAndRunsToCompletion(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	_, pb := seedBook(t, srv, engine.ProgramBookCreateOptions{})
	p := seedProject(t, srv)

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/program-books/"+pb.ID+"/load", nil, actorHeaders())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", resp.StatusCode, data)
	}
	var ack LoadAckResponse
	if err := json.Unmarshal(data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ProgramBookID != pb.ID || ack.Status != "loading" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	// no runner wired in tests, so the run completed before the response
	resp, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/program-books/"+pb.ID+"/scenario", nil, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sc domain.PriorityScenario
	if err := json.Unmarshal(data, &sc); err != nil {
		t.Fatalf("decode scenario: %v", err)
	}
	if len(sc.OrderedProjects) != 1 || sc.OrderedProjects[0].ProjectID != p.ID {
		t.Fatalf("expected %s in scenario, got %+v", p.ID, sc.OrderedProjects)
	}
}

func TestLoadConflictUsesErrorEnvelope(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	_, pb := seedBook(t, srv, engine.ProgramBookCreateOptions{})

	held := srv.Engine.Now().UTC().Format(time.RFC3339)
	if acquired, err := srv.Engine.Repo.TryAcquireLoading(context.Background(), pb.ID, held); err != nil || !acquired {
		t.Fatalf("seed lock: acquired=%v err=%v", acquired, err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/program-books/"+pb.ID+"/load", nil, actorHeaders())
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", resp.StatusCode, data)
	}
	env := decodeErrorEnvelope(t, data)
	if env.Error.Code != "already_in_progress" {
		t.Fatalf("expected already_in_progress, got %q", env.Error.Code)
	}
}

func TestLoadResetUnlocksBook(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	_, pb := seedBook(t, srv, engine.ProgramBookCreateOptions{})

	held := srv.Engine.Now().UTC().Format(time.RFC3339)
	if acquired, err := srv.Engine.Repo.TryAcquireLoading(context.Background(), pb.ID, held); err != nil || !acquired {
		t.Fatalf("seed lock: acquired=%v err=%v", acquired, err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/program-books/"+pb.ID+"/load/reset", nil, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, data)
	}
	var summary ProgramBookSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.IsAutomaticLoadingInProgress {
		t.Fatal("reset should clear the loading flag")
	}
}

func TestUnknownProgramBookIsNotFound(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/program-books/nope", nil, actorHeaders())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if env := decodeErrorEnvelope(t, data); env.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %q", env.Error.Code)
	}
}

func TestLoadOnNonLoadableStatusIsRejected(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	_, pb := seedBook(t, srv, engine.ProgramBookCreateOptions{Status: domain.ProgramBookStatusNew})

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/program-books/"+pb.ID+"/load", nil, actorHeaders())
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", resp.StatusCode, data)
	}
	if env := decodeErrorEnvelope(t, data); env.Error.Code != "invalid_status" {
		t.Fatalf("expected invalid_status, got %q", env.Error.Code)
	}
}

func TestCompatibleProgramBooksEndpoint(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	_, matching := seedBook(t, srv, engine.ProgramBookCreateOptions{Name: "matching", BoroughIDs: []string{"VM"}})
	p := seedProject(t, srv)

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects/"+p.ID+"/compatible-program-books", nil, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, data)
	}
	var books []ProgramBookSummary
	if err := json.Unmarshal(data, &books); err != nil {
		t.Fatalf("decode books: %v", err)
	}
	if len(books) != 1 || books[0].ID != matching.ID {
		t.Fatalf("expected only %s, got %+v", matching.ID, books)
	}
}

func TestCreateProgramBookValidatesTaxonomy(t *testing.T) {
	srv, done := newTestServer(t)
	defer done()
	ap, _ := seedBook(t, srv, engine.ProgramBookCreateOptions{})

	body := CreateProgramBookRequest{Name: "bad", BoroughIDs: []string{"XX"}}
	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/annual-programs/"+ap.ID+"/program-books", body, actorHeaders())
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", resp.StatusCode, data)
	}
	if env := decodeErrorEnvelope(t, data); env.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %q", env.Error.Code)
	}
}
