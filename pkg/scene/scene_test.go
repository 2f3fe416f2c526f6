package scene

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/notch/pkg/scan"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func logObject(name string) *Object {
	return &Object{
		Name:     name,
		Shape:    Shape{Kind: ShapeBox, Size: Vec3{2, 2, 1}},
		Material: DefaultMaterial,
		Seam:     DefaultSeam,
		Scan:     scan.DefaultConfig(),
	}
}

func hasFinding(errs []ValidationError, sev ValidationSeverity, substr string) bool {
	for _, e := range errs {
		if e.Severity == sev && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Scene
// ---------------------------------------------------------------------------

func TestSceneLookup(t *testing.T) {
	s := New()
	s.AddObject(logObject("a"))
	s.AddObject(logObject("b"))

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if o := s.Lookup("b"); o == nil || o.Name != "b" {
		t.Errorf("Lookup(b) = %v", o)
	}
	if s.Lookup("missing") != nil {
		t.Error("Lookup(missing) returned an object")
	}
}

func TestObjectTransform(t *testing.T) {
	o := logObject("a")
	o.Position = Vec3{1, 2, 3}
	o.Rotation = Vec3{0, 0, 90}
	got := o.Transform().Apply(Vec3{1, 0, 0}.V3())
	want := Vec3{1, 3, 3}
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 || math.Abs(got.Z-want.Z) > 1e-9 {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestObjectPoints(t *testing.T) {
	o := logObject("a")
	if o.Points() != nil {
		t.Error("Points() without weak points should be nil")
	}
	o.WeakPoints = []Vec3{}
	if p := o.Points(); p == nil || len(p) != 0 {
		t.Errorf("Points() = %v, want empty non-nil", p)
	}
	o.WeakPoints = []Vec3{{X: -0.5}}
	if p := o.Points(); len(p) != 1 || p[0].X != -0.5 {
		t.Errorf("Points() = %v", p)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateValidScene(t *testing.T) {
	s := New()
	s.AddObject(logObject("log"))
	cyl := logObject("stump")
	cyl.Shape = Shape{Kind: ShapeCylinder, Radius: 0.5, Height: 2}
	s.AddObject(cyl)

	r := ValidateAll(s)
	if !r.OK() || len(r.Warnings) != 0 {
		t.Errorf("ValidateAll = %+v, want clean", r)
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scene)
		sev    ValidationSeverity
		substr string
	}{
		{"duplicate name", func(s *Scene) { s.AddObject(logObject("log")) }, SeverityError, "duplicate"},
		{"no name", func(s *Scene) { s.AddObject(logObject("")) }, SeverityError, "no name"},
		{"no material", func(s *Scene) { s.Objects[0].Material = "" }, SeverityError, "surface material"},
		{"no seam", func(s *Scene) { s.Objects[0].Seam = "" }, SeverityWarning, "no seam"},
		{"seam equals material", func(s *Scene) { s.Objects[0].Seam = DefaultMaterial }, SeverityWarning, "not be distinguishable"},
		{"bad chop settings", func(s *Scene) { s.Chop.Spread = 0 }, SeverityError, "spread"},
		{"bad scan", func(s *Scene) { s.Objects[0].Scan.VerticalStep = 0 }, SeverityError, "step"},
		{"zero box size", func(s *Scene) { s.Objects[0].Shape.Size.Z = 0 }, SeverityError, "box size Z"},
		{"bad cylinder", func(s *Scene) {
			s.Objects[0].Shape = Shape{Kind: ShapeCylinder, Radius: -1, Height: 1}
		}, SeverityError, "cylinder"},
		{"unknown shape", func(s *Scene) { s.Objects[0].Shape.Kind = ShapeKind(9) }, SeverityError, "unknown shape"},
		{"point outside", func(s *Scene) { s.Objects[0].WeakPoints = []Vec3{{X: 5}} }, SeverityWarning, "outside"},
		{"empty points", func(s *Scene) { s.Objects[0].WeakPoints = []Vec3{} }, SeverityWarning, "empty weak point"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.AddObject(logObject("log"))
			tt.mutate(s)
			r := ValidateAll(s)
			all := append(append([]ValidationError{}, r.Errors...), r.Warnings...)
			if !hasFinding(all, tt.sev, tt.substr) {
				t.Errorf("no %s containing %q in %v", tt.sev, tt.substr, all)
			}
			if tt.sev == SeverityWarning && !r.OK() {
				t.Errorf("warning case produced errors: %v", r.Errors)
			}
		})
	}
}

func TestGivenPointsSkipScanValidation(t *testing.T) {
	s := New()
	o := logObject("log")
	o.Scan = scan.Config{}
	o.WeakPoints = []Vec3{{X: -0.5}}
	s.AddObject(o)
	if errs := Validate(s); len(errs) != 0 {
		t.Errorf("Validate = %v, want none", errs)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Object: "log", Message: "bad", Severity: SeverityWarning}
	if got := e.Error(); got != "[warning] object log: bad" {
		t.Errorf("Error() = %q", got)
	}
	e.Object = ""
	if got := e.Error(); got != "[warning] bad" {
		t.Errorf("Error() = %q", got)
	}
}
