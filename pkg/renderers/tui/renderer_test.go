package tui

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/submission"
	"github.com/goliatone/go-onboard/pkg/testsupport"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	textAreas    []string
	infoMessages []string
	selectMsgs   []string
	inputPos     int
	selectPos    int
	textPos      int
	err          error
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.err != nil {
		return -1, s.err
	}
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	s.selectMsgs = append(s.selectMsgs, cfg.Message+":"+strings.Join(cfg.Options, "|"))
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func newController(t *testing.T) *form.Controller {
	t.Helper()
	session, err := form.New(schema.Onboarding())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return form.NewController(session)
}

func TestRun_SaaSFlow(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{1, 0, 0},
		inputs:    []string{"Acme", "not a url", "https://acme.test", ""},
		textAreas: []string{"We build", "SSO", ""},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	payload, err := r.Run(context.Background(), newController(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]any{
		"industry":         "SaaS",
		"company_name":     "Acme",
		"website_url":      "https://acme.test",
		"description":      "We build",
		"features_modules": "SSO",
	}
	testsupport.AssertValues(t, want, payload.Values())
	testsupport.AssertValues(t, map[string]any{"industry": "SaaS"}, payload.Drivers().Scalars())

	var sawURLError bool
	for _, msg := range driver.infoMessages {
		if strings.HasPrefix(msg, "! Website URL:") {
			sawURLError = true
		}
	}
	if !sawURLError {
		t.Fatalf("expected a website url error, got %v", driver.infoMessages)
	}
	if driver.selectMsgs[1] != "Continue:Next|Edit answers" {
		t.Fatalf("unexpected first step actions %q", driver.selectMsgs[1])
	}
	if driver.selectMsgs[2] != "Continue:Submit|Edit answers|Back" {
		t.Fatalf("unexpected last step actions %q", driver.selectMsgs[2])
	}
}

func TestRun_BackKeepsAnswers(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		// industry, Next, Back, industry again, Next, Submit
		selectIdx: []int{3, 0, 2, 3, 0, 0},
		inputs:    []string{"Acme", "https://acme.test", "", "Acme", "https://acme.test", "Berlin"},
		textAreas: []string{"", "Berlin, Hamburg", "", "Berlin, Hamburg"},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	payload, err := r.Run(context.Background(), newController(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !payload.Has("hq_location") || !payload.Has("service_areas") {
		t.Fatalf("expected answers from both passes, got %v", payload.Values())
	}
	if payload.Has("description") {
		t.Fatal("blank optional description must be omitted")
	}
	var headers []string
	for _, msg := range driver.infoMessages {
		if strings.HasPrefix(msg, "==>") {
			headers = append(headers, msg)
		}
	}
	want := []string{
		"==> Step 1/2: Organization Info",
		"==> Step 2/2: Content Inventory",
		"==> Step 1/2: Organization Info",
		"==> Step 2/2: Content Inventory",
	}
	if diff := cmp.Diff(want, headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_GoToEarlierStep(t *testing.T) {
	t.Parallel()

	sch := schema.New("three",
		schema.Step{Name: "Company", Fields: []schema.Field{{ID: "name", Label: "Name", Type: schema.FieldTypeText, Required: true}}},
		schema.Step{Name: "Location", Fields: []schema.Field{{ID: "city", Label: "City", Type: schema.FieldTypeText}}},
		schema.Step{Name: "Notes", Fields: []schema.Field{{ID: "notes", Label: "Notes", Type: schema.FieldTypeText}}},
	)
	session := testsupport.Session(t, sch, map[string]string{"name": "Acme"}, 2)

	driver := &stubDriver{
		// Go to step, "1. Company", Next, Next, Submit
		selectIdx: []int{3, 0, 0, 0, 0},
		inputs:    []string{"first", "Acme Corp", "Berlin", "second"},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	payload, err := r.Run(context.Background(), form.NewController(session))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	testsupport.AssertValues(t, map[string]any{"name": "Acme Corp", "city": "Berlin", "notes": "second"}, payload.Values())

	wantSelects := []string{
		"Continue:Submit|Edit answers|Back|Go to step",
		"Go to step:1. Company|2. Location",
		"Continue:Next|Edit answers",
		"Continue:Next|Edit answers|Back",
		"Continue:Submit|Edit answers|Back|Go to step",
	}
	if diff := cmp.Diff(wantSelects, driver.selectMsgs); diff != "" {
		t.Fatalf("select prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FileField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.csv")
	if err := os.WriteFile(catalog, []byte("sku,name\n1,shirt\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	driver := &stubDriver{
		selectIdx: []int{0, 0, 0},
		inputs:    []string{"Acme", "https://acme.test", "", filepath.Join(dir, "missing.csv"), catalog, ""},
		textAreas: []string{""},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	payload, err := r.Run(context.Background(), newController(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	value, ok := payload.Answers().Get("product_catalog")
	if !ok || value.File == nil {
		t.Fatalf("expected product_catalog file, got %v", payload.Values())
	}
	if value.File.Name != "catalog.csv" || value.File.Size != 17 {
		t.Fatalf("unexpected file ref %+v", value.File)
	}
	if payload.Has("marketplace_listings") {
		t.Fatal("blank optional file must be omitted")
	}
}

func TestRun_Aborted(t *testing.T) {
	t.Parallel()

	r, err := New(WithPromptDriver(&stubDriver{err: ErrAborted}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := r.Run(context.Background(), newController(t)); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestRun_TooManyAttempts(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{0},
		inputs:    []string{"Acme", "bad", "worse"},
	}
	r, err := New(WithPromptDriver(driver), WithMaxAttempts(2))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := r.Run(context.Background(), newController(t)); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestRender_CollectsStep(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{3},
		inputs:    []string{"Acme", "https://acme.test", ""},
		textAreas: []string{""},
	}
	r, err := New(WithPromptDriver(driver), WithOutputFormat(submission.FormatJSON))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.ContentType() != "application/json" {
		t.Fatalf("unexpected content type %q", r.ContentType())
	}

	ctrl := newController(t)
	out, err := r.Render(context.Background(), ctrl.View(), render.RenderOptions{
		Errors:     map[string][]string{"company_name": {"already taken"}},
		FormErrors: []string{"fix the form"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	want := map[string]any{
		"industry":     "Real Estate",
		"company_name": "Acme",
		"website_url":  "https://acme.test",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"! fix the form", "! Company Name: already taken"}, driver.infoMessages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "areas.csv")
	if err := os.WriteFile(path, []byte("city\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ref, err := LocalFiles(path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ref.Name != "areas.csv" || ref.Size != 5 {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if _, err := LocalFiles(dir); err == nil {
		t.Fatal("expected directory to be rejected")
	}
	if _, err := LocalFiles(filepath.Join(dir, "nope.csv")); err == nil {
		t.Fatal("expected missing file error")
	}
}
