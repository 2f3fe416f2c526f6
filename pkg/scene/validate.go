package scene

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding blocks instantiation or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks instantiation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Object   string             // which object has the problem (empty if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] object %s: %s", e.Severity, e.Object, e.Message)
}

// ValidationResult bundles errors (blocking) and warnings (advisory) from
// all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate runs the Tier 1 structural checks. An empty slice means the
// scene is structurally sound. It never mutates s.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateNames(s)...)
	errs = append(errs, validateMaterials(s)...)
	errs = append(errs, validateSettings(s)...)
	return errs
}

// ValidateAll runs every tier and separates errors from warnings.
func ValidateAll(s *Scene) ValidationResult {
	var result ValidationResult
	all := Validate(s)
	all = append(all, validateGeometry(s)...)
	for _, e := range all {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, e)
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Tier 1: structure
// ---------------------------------------------------------------------------

func validateNames(s *Scene) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, o := range s.Objects {
		if o.Name == "" {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("object %d has no name", i),
				Severity: SeverityError,
			})
			continue
		}
		if seen[o.Name] {
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  "duplicate object name",
				Severity: SeverityError,
			})
		}
		seen[o.Name] = true
	}
	return errs
}

// validateMaterials warns about objects that cannot be chopped. A missing
// seam is fatal only once the object is instantiated.
func validateMaterials(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, o := range s.Objects {
		if o.Material == "" {
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  "no surface material",
				Severity: SeverityError,
			})
		}
		switch {
		case o.Seam == "":
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  "no seam material; the object cannot be chopped",
				Severity: SeverityWarning,
			})
		case o.Seam == o.Material:
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  fmt.Sprintf("seam material %q is the surface material; cut faces will not be distinguishable", o.Seam),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

func validateSettings(s *Scene) []ValidationError {
	var errs []ValidationError
	if err := s.Chop.Validate(); err != nil {
		errs = append(errs, ValidationError{Message: err.Error(), Severity: SeverityError})
	}
	for _, o := range s.Objects {
		if o.WeakPoints != nil {
			continue
		}
		if err := o.Scan.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// ---------------------------------------------------------------------------
// Tier 2: geometry
// ---------------------------------------------------------------------------

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

func validateGeometry(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, o := range s.Objects {
		var half Vec3
		switch o.Shape.Kind {
		case ShapeBox:
			for _, c := range []struct {
				axis string
				v    float64
			}{{"X", o.Shape.Size.X}, {"Y", o.Shape.Size.Y}, {"Z", o.Shape.Size.Z}} {
				if !positive(c.v) {
					errs = append(errs, ValidationError{
						Object:   o.Name,
						Message:  fmt.Sprintf("box size %s is %.4f, must be positive", c.axis, c.v),
						Severity: SeverityError,
					})
				}
			}
			half = Vec3{X: o.Shape.Size.X / 2, Y: o.Shape.Size.Y / 2, Z: o.Shape.Size.Z / 2}
		case ShapeCylinder:
			if !positive(o.Shape.Radius) || !positive(o.Shape.Height) {
				errs = append(errs, ValidationError{
					Object:   o.Name,
					Message:  fmt.Sprintf("cylinder radius %.4f and height %.4f must be positive", o.Shape.Radius, o.Shape.Height),
					Severity: SeverityError,
				})
			}
			half = Vec3{X: o.Shape.Radius, Y: o.Shape.Radius, Z: o.Shape.Height / 2}
		default:
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  fmt.Sprintf("unknown shape %v", o.Shape.Kind),
				Severity: SeverityError,
			})
			continue
		}

		for i, p := range o.WeakPoints {
			if math.Abs(p.X) > half.X || math.Abs(p.Y) > half.Y || math.Abs(p.Z) > half.Z {
				errs = append(errs, ValidationError{
					Object:   o.Name,
					Message:  fmt.Sprintf("weak point %d (%.3f, %.3f, %.3f) lies outside the shape's bounds", i, p.X, p.Y, p.Z),
					Severity: SeverityWarning,
				})
			}
		}
		if o.WeakPoints != nil && len(o.WeakPoints) == 0 {
			errs = append(errs, ValidationError{
				Object:   o.Name,
				Message:  "empty weak point list; the object cannot be chopped",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
