package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chazu/notch/pkg/scene"
)

func TestEvaluateNoObjects(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  \n  "},
		{"comment only", ";; a log goes here later\n"},
		{"definitions only", "(def log-size (vec3 2 2 1))\n(def cut-force 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("unexpected fatal error: %v", err)
			}
			if len(evalErrs) > 0 {
				t.Fatalf("unexpected eval errors: %v", evalErrs)
			}
			if s == nil {
				t.Fatal("expected non-nil scene")
			}
			if s.Len() != 0 {
				t.Errorf("expected empty scene, got %d objects", s.Len())
			}
			if s.Version == 0 {
				t.Error("version not set")
			}
		})
	}
}

func TestEvaluateScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name: "unclosed cuttable",
			source: `(cuttable "log"
  (box 2 2 1)
  :material "bark"`,
		},
		{
			name: "undefined symbol in points",
			source: `(cuttable "log" (box 2 2 1)
  :points (points (vec3 1 0 0) missing-point))`,
		},
		{
			name:   "undefined shape",
			source: `(cuttable "log" (pyramid 1 2))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if s != nil {
				t.Fatalf("expected nil scene, got %d objects", s.Len())
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if evalErrs[0].Message == "" {
				t.Error("eval error message should not be empty")
			}
		})
	}
}

func TestEvaluateErrorKeepsNoPartialScene(t *testing.T) {
	// The first object is valid; the failure after it must not leak it.
	source := `(cuttable "a" (box 1 1 1))
(cuttable "b" (box 1 1 undefined-depth))`
	s, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if s != nil || len(evalErrs) == 0 {
		t.Fatalf("scene = %v, errors = %v; want nil scene and errors", s, evalErrs)
	}

	ok := mustEvaluate(t, `(cuttable "a" (box 1 1 1))`)
	if ok.Len() != 1 || ok.Lookup("b") != nil {
		t.Errorf("fresh evaluation saw stale objects: %d", ok.Len())
	}
}

func TestEvalErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  EvalError
		want string
	}{
		{"with line", EvalError{Line: 5, Message: "cuttable: name must be a string"}, "line 5: cuttable: name must be a string"},
		{"no line", EvalError{Message: "box: size must be positive"}, "box: size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	source := `(cuttable "log" (box 2 2 1) :rotate (vec3 0 0 90))`

	var first *scene.Scene
	for i := 0; i < 5; i++ {
		s := mustEvaluateWith(t, eng, source)
		if s.Len() != 1 {
			t.Fatalf("iteration %d: %d objects, want 1", i, s.Len())
		}
		o := s.Lookup("log")
		if first == nil {
			first = s
			continue
		}
		prev := first.Lookup("log")
		if o.Shape != prev.Shape || o.Rotation != prev.Rotation || o.Material != prev.Material {
			t.Errorf("iteration %d: object = %+v, want %+v", i, o, prev)
		}
	}
}

func TestEvaluateVersion(t *testing.T) {
	eng := NewEngine()
	a := mustEvaluateWith(t, eng, `(cuttable "a" (box 1 1 1))`)
	b := mustEvaluateWith(t, eng, `(cuttable "a" (box 1 1 1))`)
	if a.Version == 0 || b.Version <= a.Version {
		t.Errorf("versions = %d, %d; want increasing", a.Version, b.Version)
	}
}

func TestAwaitTimeout(t *testing.T) {
	// Driving a real infinite loop through zygomys is not reliable, so the
	// timeout is exercised with a channel that never sends.
	eng := &Engine{timeout: 20 * time.Millisecond, generation: 1}
	ch := make(chan outcome)

	start := time.Now()
	s, evalErrs, err := eng.await(ch, 1)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
	if s != nil || evalErrs != nil {
		t.Errorf("got scene %v, errors %v after timeout", s, evalErrs)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("await ignored its timeout")
	}
}

func TestAwaitGeneration(t *testing.T) {
	built := scene.New()
	built.AddObject(&scene.Object{Name: "log", Shape: scene.Shape{Kind: scene.ShapeBox, Size: scene.Vec3{X: 2, Y: 2, Z: 1}}})

	tests := []struct {
		name      string
		gen       uint64
		current   uint64
		sent      outcome
		wantScene bool
		wantErr   string
	}{
		{"current", 2, 2, outcome{scene: built}, true, ""},
		{"superseded", 1, 2, outcome{scene: built}, false, "superseded"},
		{"current fatal", 3, 3, outcome{err: errors.New("panic during evaluation: boom")}, false, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &Engine{timeout: time.Second, generation: tt.current}
			ch := make(chan outcome, 1)
			ch <- tt.sent

			s, _, err := eng.await(ch, tt.gen)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
			if (s != nil) != tt.wantScene {
				t.Errorf("scene = %v, want present=%v", s, tt.wantScene)
			}
			if s != nil && s.Lookup("log") == nil {
				t.Error("scene lost its object")
			}
		})
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 3: unexpected end of input in (cuttable \"log\"\n",
			wantLine: 3,
			wantMsg:  "unexpected end of input",
		},
		{
			name:     "no line info",
			msg:      "cuttable: expected box or cylinder expression, got *zygo.SexpStr",
			wantLine: 0,
			wantMsg:  "expected box or cylinder expression",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: symbol `missing-point` not found",
			wantLine: 12,
			wantMsg:  "missing-point",
		},
		{
			name:     "short line format",
			msg:      "line 7: vec3 expects 3 numbers",
			wantLine: 7,
			wantMsg:  "vec3 expects 3 numbers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func mustEvaluateWith(t *testing.T, eng *Engine, source string) *scene.Scene {
	t.Helper()
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil scene")
	}
	return s
}
