package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/scan"
	"github.com/chazu/notch/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a scene.Vec3.
type sexpVec3 struct {
	vec scene.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpShape is returned by box and cylinder and consumed by cuttable.
type sexpShape struct {
	shape scene.Shape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	if s.shape.Kind == scene.ShapeCylinder {
		return fmt.Sprintf("(cylinder :radius %g :height %g)", s.shape.Radius, s.shape.Height)
	}
	return fmt.Sprintf("(box %gx%gx%g)", s.shape.Size.X, s.shape.Size.Y, s.shape.Size.Z)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpScan wraps scanner settings.
type sexpScan struct {
	cfg scan.Config
}

func (s *sexpScan) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(scan :vertical-step %g :horizontal-step %g)", s.cfg.VerticalStep, s.cfg.HorizontalStep)
}
func (s *sexpScan) Type() *zygo.RegisteredType { return nil }

// sexpPoints wraps a precomputed weak point list.
type sexpPoints struct {
	points []scene.Vec3
}

func (p *sexpPoints) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(points %d)", len(p.points))
}
func (p *sexpPoints) Type() *zygo.RegisteredType { return nil }

// sexpObjectRef names an object added to the scene.
type sexpObjectRef struct {
	name string
}

func (o *sexpObjectRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(object %q)", o.name)
}
func (o *sexpObjectRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			// Trailing keyword with no value acts as a flag.
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// float sets *dst from keyword key when present.
func (a kwArgs) float(fn, key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = f
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected keyword or string: %w", err)
	}
	return strings.TrimPrefix(str, kwPrefix), nil
}

// toBool accepts true/false, :on/:off and a trailing flag keyword.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	case *zygo.SexpStr:
		switch strings.TrimPrefix(v.S, kwPrefix) {
		case "on", "true", "yes":
			return true, nil
		case "off", "false", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (scene.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return scene.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene builtins into a zygomys environment.
// The builtins populate s during evaluation.
//
// Source code must be preprocessed with preprocessSource() first so that
// :keyword tokens are recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *scene.Scene) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: scene.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 2 2 1))  or  (box 2 2 1)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sh := scene.Shape{Kind: scene.ShapeBox}

		if v, ok := pa.kw["size"]; ok {
			size, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			sh.Size = size
		} else if len(pa.positional) == 3 {
			var c [3]float64
			for i := range c {
				f, err := toFloat64(pa.positional[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
				}
				c[i] = f
			}
			sh.Size = scene.Vec3{X: c[0], Y: c[1], Z: c[2]}
		} else {
			return zygo.SexpNull, fmt.Errorf("box requires :size or three dimensions")
		}

		return &sexpShape{shape: sh}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :radius 0.5 :height 2)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sh := scene.Shape{Kind: scene.ShapeCylinder}
		if err := pa.float("cylinder", "radius", &sh.Radius); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.float("cylinder", "height", &sh.Height); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{shape: sh}, nil
	})

	// -----------------------------------------------------------------------
	// (scan :vertical-step 0.5 :horizontal-step 0.5 :margin 0.1
	//       :origin-distance 0.5 :max-distance 0 :hits-per-row 1)
	// -----------------------------------------------------------------------
	env.AddFunction("scan", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		cfg := scan.DefaultConfig()
		for key, dst := range map[string]*float64{
			"vertical-step":   &cfg.VerticalStep,
			"horizontal-step": &cfg.HorizontalStep,
			"margin":          &cfg.Margin,
			"origin-distance": &cfg.OriginDistance,
			"max-distance":    &cfg.MaxDistance,
		} {
			if err := pa.float("scan", key, dst); err != nil {
				return zygo.SexpNull, err
			}
		}
		if v, ok := pa.kw["hits-per-row"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("scan: hits-per-row: %w", err)
			}
			cfg.HitsPerRow = n
		}
		return &sexpScan{cfg: cfg}, nil
	})

	// -----------------------------------------------------------------------
	// (points (vec3 -0.5 0 -0.5) (vec3 0.5 0 -0.5) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("points", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items := args
		if len(args) == 1 {
			if list, err := sexpListToSlice(args[0]); err == nil {
				items = list
			}
		}
		pts := make([]scene.Vec3, 0, len(items))
		for i, item := range items {
			v, err := toVec3(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("points: entry %d: %w", i, err)
			}
			pts = append(pts, v)
		}
		return &sexpPoints{points: pts}, nil
	})

	// -----------------------------------------------------------------------
	// (cuttable "log" (box ...) :at (vec3 0 1 0) :rotate (vec3 0 0 0)
	//           :material "bark" :seam "heartwood" :scan (scan ...)
	//           :points (points ...))
	// -----------------------------------------------------------------------
	env.AddFunction("cuttable", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("cuttable requires a name and a shape expression")
		}

		objName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cuttable: name: %w", err)
		}
		sh, ok := pa.positional[1].(*sexpShape)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cuttable: expected box or cylinder expression, got %T", pa.positional[1])
		}

		o := &scene.Object{
			Name:     objName,
			Shape:    sh.shape,
			Material: scene.DefaultMaterial,
			Seam:     scene.DefaultSeam,
			Scan:     scan.DefaultConfig(),
		}
		if v, ok := pa.kw["at"]; ok {
			if o.Position, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("cuttable: at: %w", err)
			}
		}
		if v, ok := pa.kw["rotate"]; ok {
			if o.Rotation, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("cuttable: rotate: %w", err)
			}
		}
		if v, ok := pa.kw["material"]; ok {
			m, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cuttable: material: %w", err)
			}
			o.Material = kernel.Material(m)
		}
		if v, ok := pa.kw["seam"]; ok {
			m, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cuttable: seam: %w", err)
			}
			o.Seam = kernel.Material(m)
		}
		if v, ok := pa.kw["scan"]; ok {
			sc, ok := v.(*sexpScan)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cuttable: scan: expected scan expression, got %T", v)
			}
			o.Scan = sc.cfg
		}
		if v, ok := pa.kw["points"]; ok {
			p, ok := v.(*sexpPoints)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cuttable: points: expected points expression, got %T", v)
			}
			o.WeakPoints = p.points
		}

		s.AddObject(o)
		return &sexpObjectRef{name: objName}, nil
	})

	// -----------------------------------------------------------------------
	// (object "log")
	// -----------------------------------------------------------------------
	env.AddFunction("object", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("object requires a name argument")
		}
		objName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("object: name: %w", err)
		}
		if s.Lookup(objName) == nil {
			return zygo.SexpNull, fmt.Errorf("object: no object named %q", objName)
		}
		return &sexpObjectRef{name: objName}, nil
	})

	// -----------------------------------------------------------------------
	// (chop-settings :min-tilt 5 :max-tilt 15 :spread 15 :inset 0.15
	//                :cut-force 2 :chip-lifetime 3 :density 1 :revalidate :on)
	// -----------------------------------------------------------------------
	env.AddFunction("chop_settings", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		cfg := s.Chop
		for key, dst := range map[string]*float64{
			"min-tilt":  &cfg.MinTilt,
			"max-tilt":  &cfg.MaxTilt,
			"spread":    &cfg.Spread,
			"inset":     &cfg.Inset,
			"cut-force": &cfg.CutForce,
			"density":   &cfg.Density,
		} {
			if err := pa.float("chop-settings", key, dst); err != nil {
				return zygo.SexpNull, err
			}
		}
		var lifetime float64
		if _, ok := pa.kw["chip-lifetime"]; ok {
			if err := pa.float("chop-settings", "chip-lifetime", &lifetime); err != nil {
				return zygo.SexpNull, err
			}
			cfg.ChipLifetime = time.Duration(lifetime * float64(time.Second))
		}
		if v, ok := pa.kw["revalidate"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("chop-settings: revalidate: %w", err)
			}
			cfg.Revalidate = b
		}
		s.Chop = cfg
		return zygo.SexpNull, nil
	})
}
