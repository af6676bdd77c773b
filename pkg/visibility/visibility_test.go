package visibility_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/visibility"
	vexpr "github.com/goliatone/go-onboard/pkg/visibility/expr"
)

func TestIsVisible_NoConditionAlwaysVisible(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "company_name", Type: schema.FieldTypeText}
	for _, ans := range []answers.Answers{
		nil,
		{},
		{"industry": answers.Text("D2C")},
		{"company_name": answers.Text("")},
	} {
		if !visibility.IsVisible(field, ans) {
			t.Fatalf("expected unconditional field to be visible for %v", ans)
		}
	}
}

func TestIsVisible_ScalarCondition(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "product_catalog", Type: schema.FieldTypeFile, VisibleIf: schema.Equals("industry", "D2C")}

	cases := []struct {
		name string
		ans  answers.Answers
		want bool
	}{
		{"absent", answers.Answers{}, false},
		{"equal", answers.Answers{"industry": answers.Text("D2C")}, true},
		{"other", answers.Answers{"industry": answers.Text("SaaS")}, false},
		{"case differs", answers.Answers{"industry": answers.Text("d2c")}, false},
		{"empty", answers.Answers{"industry": answers.Text("")}, false},
	}
	for _, tc := range cases {
		if got := visibility.IsVisible(field, tc.ans); got != tc.want {
			t.Errorf("%s: IsVisible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsVisible_SetCondition(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "features_modules", Type: schema.FieldTypeTextarea, VisibleIf: schema.OneOf("industry", "SaaS", "EdTech")}

	for value, want := range map[string]bool{"SaaS": true, "EdTech": true, "D2C": false, "": false} {
		ans := answers.Answers{"industry": answers.Text(value)}
		if got := visibility.IsVisible(field, ans); got != want {
			t.Errorf("industry=%q: IsVisible = %v, want %v", value, got, want)
		}
	}
	if visibility.IsVisible(field, nil) {
		t.Error("expected absent key to hide the field")
	}
}

func TestIsVisible_TypeMismatchNeverMatches(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "x", Type: schema.FieldTypeText, VisibleIf: schema.Equals("count", float64(3))}
	if visibility.IsVisible(field, answers.Answers{"count": answers.Text("3")}) {
		t.Fatal("expected string answer not to equal numeric comparand")
	}
}

func TestIsVisible_MalformedConditionHides(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "x", Type: schema.FieldTypeText, VisibleIf: &schema.Condition{}}
	if visibility.IsVisible(field, answers.Answers{"": answers.Text("")}) {
		t.Fatal("expected empty key to hide the field")
	}
}

func TestChecker_VisibleWhen(t *testing.T) {
	t.Parallel()

	field := schema.Field{
		ID:          "case_studies",
		Type:        schema.FieldTypeTextarea,
		VisibleIf:   schema.OneOf("industry", "SaaS", "B2B Services"),
		VisibleWhen: `company_name != "" && company_name != nil`,
	}
	checker := visibility.New(vexpr.New())

	ans := answers.Answers{"industry": answers.Text("SaaS")}
	if checker.IsVisible(field, ans) {
		t.Fatal("expected rule to hide the field until company_name is set")
	}
	if !checker.IsVisible(field, ans.With("company_name", answers.Text("Acme"))) {
		t.Fatal("expected both gates to pass")
	}
	if checker.IsVisible(field, answers.Answers{"industry": answers.Text("D2C"), "company_name": answers.Text("Acme")}) {
		t.Fatal("expected visibleIf to still gate the field")
	}

	if visibility.IsVisible(field, ans.With("company_name", answers.Text("Acme"))) {
		t.Fatal("expected rule fields to be hidden without an evaluator")
	}
}

func TestChecker_EvaluatorErrorHides(t *testing.T) {
	t.Parallel()

	failing := visibility.EvaluatorFunc(func(string, string, visibility.Context) (bool, error) {
		return true, errors.New("boom")
	})
	field := schema.Field{ID: "x", Type: schema.FieldTypeText, VisibleWhen: "anything"}
	if visibility.New(failing).IsVisible(field, nil) {
		t.Fatal("expected evaluator error to hide the field")
	}
}

func TestChecker_FilterPreservesOrder(t *testing.T) {
	t.Parallel()

	s := schema.Onboarding()
	step, _ := s.Step(1)
	ans := answers.Answers{"industry": answers.Text("Insurance")}

	var ids []string
	for _, field := range visibility.New(nil).Filter(step.Fields, ans) {
		ids = append(ids, field.ID)
	}
	want := []string{"service_list", "service_areas"}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("unexpected visible fields %v, want %v", ids, want)
	}
}
