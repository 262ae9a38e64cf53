package config

import "testing"

func TestDefault(t *testing.T) {
	o := Default()
	if o.K1 != defaultK1 || o.B != defaultB {
		t.Errorf("Default() K1/B = %v/%v, want %v/%v", o.K1, o.B, defaultK1, defaultB)
	}
	if o.PageSize != defaultPageSize {
		t.Errorf("Default().PageSize = %d, want %d", o.PageSize, defaultPageSize)
	}
	if _, err := o.Validate(); err != nil {
		t.Errorf("Default() should already validate cleanly: %v", err)
	}
}

func TestValidateFillsZeroFields(t *testing.T) {
	got, err := Options{}.Validate()
	if err != nil {
		t.Fatalf("Validate() on zero-value Options error = %v", err)
	}
	if got != Default() {
		t.Errorf("zero-value Options filled in as %+v, want defaults %+v", got, Default())
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative k1", Options{K1: -1}},
		{"b above 1", Options{B: 1.5}},
		{"b below 0", Options{B: -0.1}},
		{"page size not a multiple of 512", Options{PageSize: 600}},
		{"page size below minimum", Options{PageSize: 256}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Validate(); err == nil {
				t.Errorf("Validate(%+v) = nil error, want a rejection", tt.opts)
			}
		})
	}
}

func TestValidatePreservesExplicitValues(t *testing.T) {
	opts := Options{K1: 2.0, B: 0.5, GrowingSegmentMaxPageCount: 10, PageSize: 4096}
	got, err := opts.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != opts {
		t.Errorf("Validate() = %+v, want unchanged %+v", got, opts)
	}
}
