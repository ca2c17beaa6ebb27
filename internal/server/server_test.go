package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/testutil"
	"go.uber.org/zap"
)

func scenarioParameters() budget.Parameters {
	return budget.Parameters{CostPerHour: 50, BudgetSize: 100000, TeamSize: 5, WorkingDaysPerIteration: 10, Currency: "$"}
}

func newTestHandler(t *testing.T) (http.Handler, *auth.TokenRegistry) {
	t.Helper()
	store, err := snapshot.OpenSQLStore(context.Background(), constants.DriverSQLite, filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenSQLStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokenRegistry()
	h := NewHandler(Options{
		Logger:        zap.NewNop(),
		MaxUploadSize: constants.DefaultMaxUploadSizeBytes,
		Version:       "test",
		Reconcile:     budget.DefaultReconcileOptions(),
		Authenticator: auth.NewStaticAuthenticator("planner", "secret"),
		Tokens:        tokens,
		Snapshots:     store,
	})
	return h, tokens
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doUpload(t *testing.T, h http.Handler, path, contents string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("failed to write form data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleVersion(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/version", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"test"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}

func TestHandleProjectionAutoFill(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/projection", "", projectionRequest{Parameters: scenarioParameters()})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp projectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Iterations) != 5 || len(resp.Points) != 6 {
		t.Fatalf("expected 5 iterations and 6 points, got %d/%d", len(resp.Iterations), len(resp.Points))
	}
	if resp.Points[0].Label != budget.StartLabel {
		t.Errorf("first point = %q", resp.Points[0].Label)
	}
	if resp.Summary.Consumed != 100000 || resp.Summary.PercentConsumed != 100 {
		t.Errorf("unexpected summary %+v", resp.Summary)
	}
}

func TestHandleProjectionWithoutReconcile(t *testing.T) {
	h, _ := newTestHandler(t)
	p := scenarioParameters()
	its := budget.Generate(p, 100)
	for i := range its {
		its[i].IsCurrent = its[i].Number == 3
	}
	off := false
	rr := doJSON(t, h, http.MethodPost, "/api/projection", "", projectionRequest{Parameters: p, Iterations: its, Reconcile: &off})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp projectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Summary.Consumed != 60000 || resp.Summary.PercentConsumed != 60 {
		t.Errorf("unexpected summary %+v", resp.Summary)
	}
}

func TestHandleProjectionRejectsInvalidInput(t *testing.T) {
	h, _ := newTestHandler(t)

	bad := scenarioParameters()
	bad.CostPerHour = 0
	rr := doJSON(t, h, http.MethodPost, "/api/projection", "", projectionRequest{Parameters: bad})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid parameters: expected 400, got %d", rr.Code)
	}

	dup := []budget.Iteration{budget.NewIteration(1, 10, 5), budget.NewIteration(1, 10, 5)}
	rr = doJSON(t, h, http.MethodPost, "/api/projection", "", projectionRequest{Parameters: scenarioParameters(), Iterations: dup})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate iterations: expected 400, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/projection", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected a JSON error body, got %s", rec.Body.String())
	}
}

func TestHandleProjectionCapsIterations(t *testing.T) {
	h, _ := newTestHandler(t)
	its := make([]budget.Iteration, 0, constants.MaxIterations+1)
	for i := 1; i <= constants.MaxIterations+1; i++ {
		its = append(its, budget.NewIteration(i, 10, 5))
	}
	off := false
	rr := doJSON(t, h, http.MethodPost, "/api/projection", "", projectionRequest{Parameters: scenarioParameters(), Iterations: its, Reconcile: &off})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp projectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Iterations) != constants.MaxIterations || len(resp.Warnings) == 0 {
		t.Errorf("expected %d iterations and a warning, got %d and %v", constants.MaxIterations, len(resp.Iterations), resp.Warnings)
	}
}

func TestCSVParametersRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)
	p := scenarioParameters()
	p.CostPerHour = 72.35

	rr := doJSON(t, h, http.MethodPost, "/api/csv/parameters/export", "", p)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}

	rr = doUpload(t, h, "/api/csv/parameters/import", rr.Body.String())
	if rr.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]budget.Parameters
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["parameters"] != p {
		t.Errorf("round trip changed parameters: got %+v, want %+v", resp["parameters"], p)
	}
}

func TestCSVIterationsImport(t *testing.T) {
	h, _ := newTestHandler(t)
	csv := "iterationNumber,iterationDays,teamSize,isCurrent\n1,10,5,\n2,-1,5,\n3,10,4,true\n"
	rr := doUpload(t, h, "/api/csv/iterations/import", csv)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp iterationsPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Iterations) != 2 || len(resp.Warnings) != 1 {
		t.Errorf("expected 2 iterations and 1 warning, got %+v", resp)
	}

	rr = doUpload(t, h, "/api/csv/iterations/import", "number,days\n1,2\n")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing columns: expected 400, got %d", rr.Code)
	}
}

func TestCSVUploadTooLarge(t *testing.T) {
	h := NewHandler(Options{MaxUploadSize: 64})
	rr := doUpload(t, h, "/api/csv/iterations/import", "iterationNumber,iterationDays,teamSize\n"+strings.Repeat("1,10,5\n", 100))
	if rr.Code != http.StatusRequestEntityTooLarge && rr.Code != http.StatusBadRequest {
		t.Errorf("expected 413 or 400, got %d", rr.Code)
	}
}

func TestCSVProjectionExport(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/csv/projection/export", "", projectionRequest{Parameters: scenarioParameters()})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 7 {
		t.Errorf("expected header plus 6 rows, got %d lines", len(lines))
	}
}

func TestHandleReport(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/report", "", projectionRequest{Parameters: scenarioParameters(), Title: "Q3"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Errorf("body is not a PDF")
	}
}

func TestUnknownSeriesRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	req := projectionRequest{Parameters: scenarioParameters(), VisibleSeries: []string{"bogus"}}

	for _, path := range []string{"/api/projection", "/api/report", "/api/chart"} {
		rr := doJSON(t, h, http.MethodPost, path, "", req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", path, rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "visibleSeries") {
			t.Errorf("%s: error does not name the field: %s", path, rr.Body.String())
		}
	}
}

func TestHandleChart(t *testing.T) {
	h, _ := newTestHandler(t)
	pngMagic := []byte("\x89PNG\r\n\x1a\n")

	tests := []struct {
		name       string
		req        chartRequest
		wantStatus int
	}{
		{
			name:       "default series",
			req:        chartRequest{projectionRequest: projectionRequest{Parameters: scenarioParameters()}},
			wantStatus: http.StatusOK,
		},
		{
			name: "single series with size",
			req: chartRequest{
				projectionRequest: projectionRequest{Parameters: scenarioParameters(), VisibleSeries: []string{constants.SeriesBudget}},
				Width:             400,
				Height:            200,
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "too few points",
			req: chartRequest{projectionRequest: projectionRequest{
				Parameters: budget.Parameters{CostPerHour: 50, BudgetSize: 100, TeamSize: 5, WorkingDaysPerIteration: 10},
				Iterations: []budget.Iteration{},
				Reconcile:  boolPtr(false),
			}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/api/chart", "", tt.req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if rr.Header().Get("Content-Type") != "image/png" {
				t.Errorf("unexpected content type %q", rr.Header().Get("Content-Type"))
			}
			if !bytes.HasPrefix(rr.Body.Bytes(), pngMagic) {
				t.Errorf("body is not a PNG")
			}
		})
	}
}

func TestChartSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{0, 0, defaultChartWidth, defaultChartHeight},
		{640, 320, 640, 320},
		{99999, 99999, maxChartWidth, maxChartHeight},
		{-1, 300, defaultChartWidth, 300},
	}
	for _, tt := range tests {
		if w, h := chartSize(tt.w, tt.h); w != tt.wantW || h != tt.wantH {
			t.Errorf("chartSize(%d, %d) = %d, %d; want %d, %d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

func boolPtr(b bool) *bool { return &b }

func decodeProjection(t *testing.T, rr *httptest.ResponseRecorder) projectionResponse {
	t.Helper()
	var resp projectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestIterationEdits(t *testing.T) {
	h, _ := newTestHandler(t)
	p := scenarioParameters()
	base := projectionRequest{Parameters: p, Iterations: budget.Generate(p, 100)}

	// Adding uses the parameter defaults and does not regenerate the ledger.
	rr := doJSON(t, h, http.MethodPost, "/api/iterations", "", addIterationRequest{projectionRequest: base})
	if rr.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	added := decodeProjection(t, rr)
	if len(added.Iterations) != 6 {
		t.Fatalf("add: expected 6 iterations, got %d", len(added.Iterations))
	}
	last := added.Iterations[5]
	if last.Number != 6 || last.Days != 10 || last.TeamSize != 5 || last.TotalHours != 400 {
		t.Errorf("add: unexpected iteration %+v", last)
	}

	// An hours override is dropped when the day count changes.
	overridden := added.Iterations
	overridden[1].OverrideHours(123)
	days := 8.0
	rr = doJSON(t, h, http.MethodPatch, "/api/iterations/2", "", updateIterationRequest{
		projectionRequest: projectionRequest{Parameters: p, Iterations: overridden},
		Patch:             budget.IterationPatch{Days: &days},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	patched := decodeProjection(t, rr)
	second := patched.Iterations[1]
	if second.HoursOverridden || second.Days != 8 || second.TotalHours != 320 {
		t.Errorf("patch: unexpected iteration %+v", second)
	}
	if len(patched.Iterations) != 6 {
		t.Errorf("patch: ledger was regenerated to %d iterations", len(patched.Iterations))
	}

	// Hours given in the same edit stay overridden.
	hours := 250.0
	rr = doJSON(t, h, http.MethodPatch, "/api/iterations/2", "", updateIterationRequest{
		projectionRequest: projectionRequest{Parameters: p, Iterations: patched.Iterations},
		Patch:             budget.IterationPatch{Days: &days, TotalHours: &hours},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch hours: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeProjection(t, rr).Iterations[1]; !got.HoursOverridden || got.TotalHours != 250 {
		t.Errorf("patch hours: unexpected iteration %+v", got)
	}

	rr = doJSON(t, h, http.MethodPut, "/api/iterations/4/current", "", projectionRequest{Parameters: p, Iterations: patched.Iterations})
	if rr.Code != http.StatusOK {
		t.Fatalf("current: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	for _, it := range decodeProjection(t, rr).Iterations {
		if it.IsCurrent != (it.Number == 4) {
			t.Errorf("current: iteration %d isCurrent=%v", it.Number, it.IsCurrent)
		}
	}
}

func TestIterationEditErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	p := scenarioParameters()
	its := budget.Generate(p, 100)
	days := 5.0

	full := make([]budget.Iteration, 0, constants.MaxIterations)
	for i := 1; i <= constants.MaxIterations; i++ {
		full = append(full, budget.NewIteration(i, 10, 5))
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantWarn   bool
	}{
		{
			name:       "patch missing iteration",
			method:     http.MethodPatch,
			path:       "/api/iterations/42",
			body:       updateIterationRequest{projectionRequest: projectionRequest{Parameters: p, Iterations: its}, Patch: budget.IterationPatch{Days: &days}},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "current missing iteration",
			method:     http.MethodPut,
			path:       "/api/iterations/42/current",
			body:       projectionRequest{Parameters: p, Iterations: its},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad number",
			method:     http.MethodPatch,
			path:       "/api/iterations/abc",
			body:       updateIterationRequest{projectionRequest: projectionRequest{Parameters: p, Iterations: its}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate number",
			method:     http.MethodPost,
			path:       "/api/iterations",
			body:       addIterationRequest{projectionRequest: projectionRequest{Parameters: p, Iterations: its}, Iteration: budget.NewIteration(2, 10, 5)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "full ledger",
			method:     http.MethodPost,
			path:       "/api/iterations",
			body:       addIterationRequest{projectionRequest: projectionRequest{Parameters: p, Iterations: full}},
			wantStatus: http.StatusOK,
			wantWarn:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, tt.method, tt.path, "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantWarn {
				resp := decodeProjection(t, rr)
				if len(resp.Iterations) != constants.MaxIterations || len(resp.Warnings) == 0 {
					t.Errorf("expected an unchanged ledger and a warning, got %d and %v", len(resp.Iterations), resp.Warnings)
				}
			}
		})
	}
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/api/auth/login", "", auth.Credentials{Username: "planner", Password: "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp auth.LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if resp.Token == "" || resp.OwnerID != "planner" {
		t.Fatalf("unexpected login response %+v", resp)
	}
	return resp.Token
}

func TestAuthLoginLogout(t *testing.T) {
	h, tokens := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/auth/login", "", auth.Credentials{Username: "planner", Password: "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials: expected 401, got %d", rr.Code)
	}

	token := login(t, h)
	if _, ok, _ := tokens.Lookup(context.Background(), token); !ok {
		t.Fatalf("token not registered")
	}
	rr = doJSON(t, h, http.MethodPost, "/api/auth/logout", token, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("logout: expected 204, got %d", rr.Code)
	}
	if _, ok, _ := tokens.Lookup(context.Background(), token); ok {
		t.Errorf("token still registered after logout")
	}
}

func TestSnapshotAPI(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/api/snapshots", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: expected 401, got %d", rr.Code)
	}

	token := login(t, h)
	p := scenarioParameters()
	create := snapshot.CreateRequest{
		Name:  "baseline",
		State: snapshot.State{Parameters: p, Iterations: budget.Generate(p, 100)},
	}
	rr = doJSON(t, h, http.MethodPost, "/api/snapshots", token, create)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created snapshot.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if created.ID == "" || created.OwnerID != "planner" || len(created.State.Projection) != 6 {
		t.Fatalf("unexpected snapshot %+v", created)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/snapshots", token, nil)
	var list snapshot.ListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Snapshots) != 1 || list.Snapshots[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/snapshots/"+created.ID, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodDelete, "/api/snapshots/"+created.ID, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/snapshots", token, snapshot.CreateRequest{Name: " "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unnamed snapshot: expected 400, got %d", rr.Code)
	}
}

func TestSnapshotCleanup(t *testing.T) {
	h, _ := newTestHandler(t)
	token := login(t, h)
	p := scenarioParameters()

	old := snapshot.CreateRequest{
		Name:      "old",
		CreatedAt: time.Now().Add(-45 * 24 * time.Hour),
		State:     snapshot.State{Parameters: p, Iterations: budget.Generate(p, 100)},
	}
	if rr := doJSON(t, h, http.MethodPost, "/api/snapshots", token, old); rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rr.Code)
	}
	fresh := old
	fresh.Name = "fresh"
	fresh.CreatedAt = time.Now()
	if rr := doJSON(t, h, http.MethodPost, "/api/snapshots", token, fresh); rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rr.Code)
	}

	// A threshold inside the retention window is clamped to it.
	for i, want := range []int{1, 0} {
		rr := doJSON(t, h, http.MethodPost, "/api/snapshots/cleanup", token, snapshot.CleanupRequest{Threshold: time.Now().Add(time.Hour)})
		if rr.Code != http.StatusOK {
			t.Fatalf("cleanup %d: expected 200, got %d", i, rr.Code)
		}
		var resp snapshot.CleanupResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode cleanup: %v", err)
		}
		if resp.Deleted != want {
			t.Errorf("cleanup %d deleted %d, want %d", i, resp.Deleted, want)
		}
	}

	rr := doJSON(t, h, http.MethodGet, "/api/snapshots", token, nil)
	var list snapshot.ListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if testutil.FindSnapshot(list.Snapshots, "fresh") == nil {
		t.Error("fresh snapshot was removed by cleanup")
	}
	if testutil.FindSnapshot(list.Snapshots, "old") != nil {
		t.Error("old snapshot survived cleanup")
	}
}

func TestSnapshotCreateOverIterationCap(t *testing.T) {
	h, _ := newTestHandler(t)
	token := login(t, h)

	its := make([]budget.Iteration, 0, constants.MaxIterations+1)
	for i := 1; i <= constants.MaxIterations+1; i++ {
		its = append(its, budget.NewIteration(i, 10, 5))
	}
	rr := doJSON(t, h, http.MethodPost, "/api/snapshots", token, snapshot.CreateRequest{
		Name:  "too big",
		State: snapshot.State{Parameters: scenarioParameters(), Iterations: its},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSessionsSurviveRestart(t *testing.T) {
	store, err := snapshot.OpenSQLStore(context.Background(), constants.DriverSQLite, filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenSQLStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	newServer := func() http.Handler {
		return NewHandler(Options{
			Logger:        zap.NewNop(),
			Authenticator: auth.NewStaticAuthenticator("planner", "secret"),
			Tokens:        auth.NewPersistentTokenRegistry(store),
			Snapshots:     store,
		})
	}

	token := login(t, newServer())

	restarted := newServer()
	rr := doJSON(t, restarted, http.MethodGet, "/api/snapshots", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("token after restart: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, restarted, http.MethodPost, "/api/auth/logout", token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rr.Code)
	}
	rr = doJSON(t, newServer(), http.MethodGet, "/api/snapshots", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", rr.Code)
	}
}

func TestSnapshotsDisabled(t *testing.T) {
	tokens := auth.NewTokenRegistry()
	if err := tokens.Register(context.Background(), auth.Session{OwnerID: "a", Token: "t"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h := NewHandler(Options{Tokens: tokens})
	rr := doJSON(t, h, http.MethodGet, "/api/snapshots", "t", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/api/auth/login", "", auth.Credentials{Username: "a", Password: "b"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("login without authenticator: expected 503, got %d", rr.Code)
	}
}

func TestSnapshotRoundTripThroughHTTPStore(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx := context.Background()
	gate, err := auth.NewGate(auth.NewRemoteAuthenticator(srv.URL+"/api/auth/login", srv.Client()), nil, nil)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	if _, err := gate.Login(ctx, "planner", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	remote := snapshot.NewHTTPStore(srv.URL, gate.Token, srv.Client())
	local := snapshot.NewLocalStore(filepath.Join(t.TempDir(), "snapshots.json"))
	svc := snapshot.NewService(local, remote, snapshot.ServiceOptions{})

	p := scenarioParameters()
	plan, _, err := budget.NewPlan(p, nil, budget.DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	saved, err := svc.Save(ctx, "shared", snapshot.NewState(plan), gate.OwnerID())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := svc.Load(ctx, saved.ID, gate.OwnerID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Remote || loaded.Name != "shared" {
		t.Errorf("expected the remote copy, got %+v", loaded)
	}
	if err := svc.Delete(ctx, saved.ID, gate.OwnerID()); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestStaticUI(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		path     string
		contains []string
		absent   []string
	}{
		{path: "/", contains: []string{"Sprint Budget", `id="chart"`, `value="iterationCost"`}},
		{
			path:     "/app.js",
			contains: []string{"/api/chart", "visibleSeries", "'PATCH'", "/api/iterations"},
			absent:   []string{"innerHTML"},
		},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.path, rr.Code)
			continue
		}
		body := rr.Body.String()
		for _, want := range tt.contains {
			if !strings.Contains(body, want) {
				t.Errorf("%s: missing %q", tt.path, want)
			}
		}
		for _, unwanted := range tt.absent {
			if strings.Contains(body, unwanted) {
				t.Errorf("%s: unexpected %q", tt.path, unwanted)
			}
		}
	}
}
