package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/goliatone/go-onboard/internal/metrics"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/server"
	"github.com/goliatone/go-onboard/pkg/store"
	"github.com/goliatone/go-onboard/pkg/submission"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type viewBody struct {
	StepIndex  int            `json:"stepIndex"`
	StepName   string         `json:"stepName"`
	Values     map[string]any `json:"values"`
	Missing    []string       `json:"missing"`
	CanAdvance bool           `json:"canAdvance"`
	Submitted  bool           `json:"submitted"`
}

type sessionBody struct {
	ID      string         `json:"id"`
	View    viewBody       `json:"view"`
	Payload map[string]any `json:"payload"`
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
	Form   []string            `json:"form"`
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []form.Payload
	err      error
}

var _ submission.Sink = (*recordingSink)(nil)

func (r *recordingSink) Deliver(_ context.Context, p form.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingSink) delivered() []form.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]form.Payload(nil), r.payloads...)
}

type fixture struct {
	srv    *server.Server
	http   *httptest.Server
	sink   *recordingSink
	client *http.Client
}

func newFixture(t *testing.T, opts ...server.Option) *fixture {
	t.Helper()

	sink := &recordingSink{}
	ids := 0
	base := []server.Option{
		server.WithSink(sink),
		server.WithIDGenerator(func() string {
			ids++
			return "s" + string(rune('0'+ids))
		}),
	}
	srv, err := server.New(schema.Onboarding(), append(base, opts...)...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &fixture{srv: srv, http: ts, sink: sink, client: client}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.http.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) create(t *testing.T, answers map[string]any) sessionBody {
	t.Helper()
	var body any
	if answers != nil {
		body = map[string]any{"answers": answers}
	}
	resp := f.do(t, http.MethodPost, "/sessions/", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[sessionBody](t, resp)
}

var firstStep = map[string]any{
	"industry":     "SaaS",
	"company_name": "Acme",
	"website_url":  "https://acme.test",
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "seo-onboarding", body["schema"])
}

func TestServer_SchemaAndContract(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/schema", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sch := decode[schema.Schema](t, resp)
	assert.Equal(t, "seo-onboarding", sch.ID)
	assert.Len(t, sch.Steps, 2)

	resp = f.do(t, http.MethodGet, "/contract", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	doc := decode[map[string]any](t, resp)
	assert.Contains(t, doc, "openapi")

	resp = f.do(t, http.MethodGet, "/contract?format=yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), "openapi:")
}

func TestServer_CreateSession(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/sessions/", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/sessions/s1", resp.Header.Get("Location"))
	body := decode[sessionBody](t, resp)
	assert.Equal(t, "s1", body.ID)
	assert.Equal(t, 0, body.View.StepIndex)
	assert.Equal(t, "Organization Info", body.View.StepName)
	assert.False(t, body.View.CanAdvance)

	created := f.create(t, firstStep)
	assert.Equal(t, "s2", created.ID)
	assert.True(t, created.View.CanAdvance)
	assert.Equal(t, "Acme", created.View.Values["company_name"])

	resp = f.do(t, http.MethodGet, "/sessions/s2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SaaS", decode[sessionBody](t, resp).View.Values["industry"])
}

func TestServer_CreateSessionRejectsBadAnswers(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/sessions/", map[string]any{
		"answers": map[string]any{"industry": "Crypto"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PutAnswers(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodPut, path+"/answers", firstStep)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[sessionBody](t, resp)
	assert.True(t, body.View.CanAdvance)

	resp = f.do(t, http.MethodPut, path+"/answers", map[string]any{"company_name": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[sessionBody](t, resp)
	assert.NotContains(t, body.View.Values, "company_name")
	assert.Equal(t, []string{"company_name"}, body.View.Missing)
}

func TestServer_PutAnswersIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodPut, path+"/answers", map[string]any{
		"company_name": "Acme",
		"website_url":  "not a url",
		"industry":     "Crypto",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Contains(t, body.Fields, "website_url")
	assert.Contains(t, body.Fields, "industry")

	resp = f.do(t, http.MethodGet, path, nil)
	assert.NotContains(t, decode[sessionBody](t, resp).View.Values, "company_name")

	resp = f.do(t, http.MethodPut, path+"/answers", map[string]any{"favourite_colour": "blue"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "unknown field")
}

func TestServer_Transitions(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodPost, path+"/next", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.ElementsMatch(t, []string{"industry", "company_name", "website_url"}, keys(body.Fields))

	resp = f.do(t, http.MethodPost, path+"/back", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.do(t, http.MethodPut, path+"/answers", firstStep)
	resp = f.do(t, http.MethodPost, path+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[sessionBody](t, resp).View
	assert.Equal(t, 1, view.StepIndex)
	assert.Equal(t, []string{"features_modules"}, view.Missing)

	resp = f.do(t, http.MethodPost, path+"/back", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[sessionBody](t, resp).View
	assert.Equal(t, 0, view.StepIndex)
	assert.Equal(t, "Acme", view.Values["company_name"])

	resp = f.do(t, http.MethodPost, "/sessions/missing/next", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Submit(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, firstStep)
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodPost, path+"/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.do(t, http.MethodPost, path+"/next", nil)
	f.do(t, http.MethodPut, path+"/answers", map[string]any{"features_modules": "SSO, billing"})

	resp = f.do(t, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[sessionBody](t, resp)
	assert.True(t, body.View.Submitted)
	assert.Equal(t, map[string]any{
		"industry":         "SaaS",
		"company_name":     "Acme",
		"website_url":      "https://acme.test",
		"features_modules": "SSO, billing",
	}, body.Payload)

	delivered := f.sink.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, "seo-onboarding", delivered[0].SchemaID)

	resp = f.do(t, http.MethodPost, path+"/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, f.sink.delivered(), 1)
}

func TestServer_SubmitDeliveryFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("downstream unavailable")

	created := f.create(t, firstStep)
	path := "/sessions/" + created.ID
	f.do(t, http.MethodPost, path+"/next", nil)
	f.do(t, http.MethodPut, path+"/answers", map[string]any{"features_modules": "SSO"})

	resp := f.do(t, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = f.do(t, http.MethodGet, path, nil)
	assert.False(t, decode[sessionBody](t, resp).View.Submitted)

	f.sink.mu.Lock()
	f.sink.err = nil
	f.sink.mu.Unlock()
	resp = f.do(t, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.sink.delivered(), 1)
}

// failingStore rejects saves of submitted snapshots while failures remain.
type failingStore struct {
	store.Store
	mu       sync.Mutex
	failures int
}

func (s *failingStore) Save(ctx context.Context, id string, snap form.Snapshot) error {
	s.mu.Lock()
	fail := snap.Submitted && s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("store unavailable")
	}
	return s.Store.Save(ctx, id, snap)
}

func TestServer_SubmitSaveFailureDeliversOnce(t *testing.T) {
	backend := &failingStore{Store: store.NewMemory(), failures: 1}
	f := newFixture(t, server.WithSessions(store.NewManager(backend)))

	created := f.create(t, firstStep)
	path := "/sessions/" + created.ID
	f.do(t, http.MethodPost, path+"/next", nil)
	f.do(t, http.MethodPut, path+"/answers", map[string]any{"features_modules": "SSO"})

	resp := f.do(t, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, f.sink.delivered(), "nothing is delivered before the submission is saved")

	resp = f.do(t, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.sink.delivered(), 1)

	resp = f.do(t, http.MethodPost, path+"/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, f.sink.delivered(), 1)
}

func TestServer_DeleteSession(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Render(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{"company_name": "Acme"})
	path := "/sessions/" + created.ID

	resp := f.do(t, http.MethodGet, path+"/render", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	html := readAll(t, resp)
	assert.Contains(t, html, `action="/sessions/s1/form"`)
	assert.Contains(t, html, `<input type="hidden" name="step" value="0">`)
	assert.Contains(t, html, `value="Acme"`)

	resp = f.do(t, http.MethodGet, path+"/render?renderer=markdown&fields=industry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	md := readAll(t, resp)
	assert.Contains(t, md, "## Step 1/2: Organization Info")
	assert.NotContains(t, md, "company_name")

	resp = f.do(t, http.MethodGet, path+"/render?renderer=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func (f *fixture) postForm(t *testing.T, path string, values url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.http.URL+path, values)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServer_FormFlow(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)
	path := "/sessions/" + created.ID

	resp := f.postForm(t, path+"/form", url.Values{
		"step":         {"0"},
		"op":           {"next"},
		"industry":     {"Real Estate"},
		"company_name": {"Acme"},
		"website_url":  {"not a url"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	html := readAll(t, resp)
	assert.Contains(t, html, `onboard-field--invalid`)
	assert.Contains(t, html, `value="Acme"`)

	resp = f.postForm(t, path+"/form", url.Values{
		"step":        {"0"},
		"op":          {"next"},
		"website_url": {"https://acme.test"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode, "values from a failed post are not persisted")

	resp = f.postForm(t, path+"/form", url.Values{
		"step":         {"0"},
		"op":           {"next"},
		"industry":     {"Real Estate"},
		"company_name": {"Acme"},
		"website_url":  {"https://acme.test"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, path+"/render?renderer=html", resp.Header.Get("Location"))

	resp = f.postForm(t, path+"/form", url.Values{
		"step":          {"0"},
		"op":            {"next"},
		"service_areas": {"Austin"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.postForm(t, path+"/form", url.Values{
		"step":          {"1"},
		"op":            {"submit"},
		"service_areas": {"Austin, Dallas"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	delivered := f.sink.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, "Austin, Dallas", delivered[0].Values()["service_areas"])
}

func TestServer_FormBackIgnoresValues(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, firstStep)
	path := "/sessions/" + created.ID
	f.do(t, http.MethodPost, path+"/next", nil)

	resp := f.postForm(t, path+"/form", url.Values{
		"step":             {"1"},
		"op":               {"back"},
		"features_modules": {"SSO"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = f.do(t, http.MethodGet, path, nil)
	view := decode[sessionBody](t, resp).View
	assert.Equal(t, 0, view.StepIndex)
	assert.NotContains(t, view.Values, "features_modules")
}

func TestServer_FormFileUpload(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{
		"industry":     "D2C",
		"company_name": "Acme",
		"website_url":  "https://acme.test",
	})
	path := "/sessions/" + created.ID
	f.do(t, http.MethodPost, path+"/next", nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("step", "1"))
	require.NoError(t, mw.WriteField("op", "submit"))
	part, err := mw.CreateFormFile("product_catalog", "catalog.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("sku,name\n1,Widget\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.http.URL+path+"/form", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	delivered := f.sink.delivered()
	require.Len(t, delivered, 1)
	catalog, ok := delivered[0].Answers().Get("product_catalog")
	require.True(t, ok)
	require.NotNil(t, catalog.File)
	assert.Equal(t, "catalog.csv", catalog.File.Name)
	assert.EqualValues(t, 18, catalog.File.Size)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, server.WithMetrics(m))
	created := f.create(t, nil)
	f.do(t, http.MethodPost, "/sessions/"+created.ID+"/next", nil)

	resp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := readAll(t, resp)
	assert.Contains(t, text, "onboard_sessions_started_total 1")
	assert.Contains(t, text, `onboard_transitions_total{op="next",result="rejected"} 1`)
	assert.Contains(t, text, `route="/sessions/{id}/next"`)
}

func TestServer_SetSchema(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)

	partner := schema.New("partner", schema.Step{
		Name:   "Details",
		Fields: []schema.Field{{ID: "company_name", Label: "Company", Type: schema.FieldTypeText, Required: true}},
	})
	require.NoError(t, f.srv.SetSchema(partner))
	assert.Equal(t, "partner", f.srv.Schema().ID)

	resp := f.do(t, http.MethodGet, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	fresh := f.create(t, map[string]any{"company_name": "Acme"})
	assert.True(t, fresh.View.CanAdvance)

	assert.Error(t, f.srv.SetSchema(schema.New("")))
	assert.Error(t, f.srv.SetSchema(nil))
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}

func TestServer_BadBodies(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, nil)

	req, err := http.NewRequest(http.MethodPut, f.http.URL+"/sessions/"+created.ID+"/answers", strings.NewReader("[1,2]"))
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_BodySizeLimit(t *testing.T) {
	f := newFixture(t, server.WithMaxBodySize(1024))
	created := f.create(t, nil)
	path := "/sessions/" + created.ID
	big := strings.Repeat("a", 4096)

	resp := f.do(t, http.MethodPut, path+"/answers", map[string]any{"company_name": big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = f.postForm(t, path+"/form", url.Values{"step": {"0"}, "company_name": {big}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = f.do(t, http.MethodGet, path, nil)
	assert.NotContains(t, decode[sessionBody](t, resp).View.Values, "company_name")
}
