package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsLoad_Explicit(t *testing.T) {
	err := NewLoadError("data/tracts.shp", errors.New("no such file"))
	if !IsLoad(err) {
		t.Error("expected LoadError to be detected")
	}
}

func TestIsLoad_Wrapped(t *testing.T) {
	inner := NewLoadError("data/model.json", errors.New("unexpected end of JSON input"))
	wrapped := fmt.Errorf("startup failed: %w", inner)
	if !IsLoad(wrapped) {
		t.Error("expected wrapped LoadError to be detected")
	}
}

func TestIsLoad_NilAndRegular(t *testing.T) {
	if IsLoad(nil) {
		t.Error("nil error should not be a LoadError")
	}
	if IsLoad(errors.New("boom")) {
		t.Error("regular error should not be a LoadError")
	}
}

func TestLoadError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	le := NewLoadError("data/tracts.db", inner)

	if !errors.Is(le, inner) {
		t.Error("LoadError.Unwrap should return the inner error")
	}
	if le.Path != "data/tracts.db" {
		t.Errorf("expected path data/tracts.db, got %s", le.Path)
	}
}

func TestValidationError_NamesField(t *testing.T) {
	ve := NewValidationError("NeighborsToUse", "missing required field")

	if ve.Error() != "invalid field NeighborsToUse: missing required field" {
		t.Errorf("unexpected message: %q", ve.Error())
	}
	if !IsValidation(ve) {
		t.Error("expected ValidationError to be detected")
	}
	if got := ValidationField(ve); got != "NeighborsToUse" {
		t.Errorf("expected field NeighborsToUse, got %q", got)
	}
}

func TestValidationError_Wrapped(t *testing.T) {
	inner := NewValidationError("Latitude", "cannot coerce \"north\" to number")
	wrapped := fmt.Errorf("normalize request: %w", inner)

	if !IsValidation(wrapped) {
		t.Error("expected wrapped ValidationError to be detected")
	}
	if got := ValidationField(wrapped); got != "Latitude" {
		t.Errorf("expected field Latitude, got %q", got)
	}
}

func TestValidationField_NoValidationError(t *testing.T) {
	if got := ValidationField(errors.New("boom")); got != "" {
		t.Errorf("expected empty field, got %q", got)
	}
}

func TestInvalidParameterError(t *testing.T) {
	ipe := NewInvalidParameterError("NeighborsToUse", 0, 1, 12)

	want := "parameter NeighborsToUse = 0 out of range [1, 12]"
	if ipe.Error() != want {
		t.Errorf("expected %q, got %q", want, ipe.Error())
	}
	if !IsInvalidParameter(ipe) {
		t.Error("expected InvalidParameterError to be detected")
	}
	if IsInvalidParameter(errors.New("boom")) {
		t.Error("regular error should not be an InvalidParameterError")
	}
}

func TestSchemaMismatchError_Messages(t *testing.T) {
	cases := []struct {
		missing []string
		extra   []string
		want    string
	}{
		{
			missing: []string{"median_age"},
			want:    "feature vector does not match model schema: missing features: median_age",
		},
		{
			extra: []string{"pop_density", "median_income"},
			want:  "feature vector does not match model schema: unexpected features: pop_density, median_income",
		},
		{
			missing: []string{"median_age"},
			extra:   []string{"pop_density"},
			want:    "feature vector does not match model schema: missing features: median_age; unexpected features: pop_density",
		},
		{
			want: "feature vector does not match model schema",
		},
	}

	for _, tc := range cases {
		got := NewSchemaMismatchError(tc.missing, tc.extra).Error()
		if got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestIsSchemaMismatch_Wrapped(t *testing.T) {
	inner := NewSchemaMismatchError([]string{"median_age"}, nil)
	wrapped := fmt.Errorf("predict: %w", inner)

	if !IsSchemaMismatch(wrapped) {
		t.Error("expected wrapped SchemaMismatchError to be detected")
	}
	if IsSchemaMismatch(errors.New("boom")) {
		t.Error("regular error should not be a SchemaMismatchError")
	}
	if IsSchemaMismatch(nil) {
		t.Error("nil error should not be a SchemaMismatchError")
	}
}

func TestClassesAreDisjoint(t *testing.T) {
	ve := NewValidationError("Latitude", "missing")
	if IsLoad(ve) || IsInvalidParameter(ve) || IsSchemaMismatch(ve) {
		t.Error("ValidationError should not match other classes")
	}

	le := NewLoadError("x", errors.New("y"))
	if IsValidation(le) || IsInvalidParameter(le) || IsSchemaMismatch(le) {
		t.Error("LoadError should not match other classes")
	}
}
