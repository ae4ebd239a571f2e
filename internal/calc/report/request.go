package report

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"Acta/internal/calc/protocol"
)

// DateLayout is the DD.MM.YYYY form used on certificates.
const DateLayout = "02.01.2006"

type Format string

// ParseFormat accepts a format name or its file extension in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "pdf":
		return PDF, nil
	case "excel", "xlsx":
		return Excel, nil
	case "word", "docx":
		return Word, nil
	}
	return "", &FieldError{Field: "output_format", Reason: fmt.Sprintf("unknown format %q", s)}
}

const (
	PDF   Format = "PDF"
	Excel Format = "Excel"
	Word  Format = "Word"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// FieldError names the form field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func (e *FieldError) Unwrap() error { return ErrInvalidRequest }

// Request is the form an operator fills in before a test run.
type Request struct {
	Protocol         protocol.ID `json:"protocol"`
	Client           string      `json:"client"`
	ConcreteClass    string      `json:"concrete_class"`
	SamplingDate     string      `json:"sampling_date"`
	TestingDate      string      `json:"testing_date"`
	SamplingLocation string      `json:"sampling_location"`
	ProjectName      string      `json:"project_name"`
	SetID            string      `json:"set_id"`
	SetSize          int         `json:"set_size"`
	ShouldPrint      bool        `json:"should_print"`
	OutputFormat     []Format    `json:"output_format"`
	// Operator is the logged-in user, set by the server.
	Operator int `json:"-"`
}

// Normalize trims text fields, fills the defaults and drops repeated
// formats keeping the first occurrence.
func (r *Request) Normalize(now time.Time) {
	for _, s := range []*string{&r.Client, &r.ConcreteClass, &r.SamplingDate, &r.TestingDate,
		&r.SamplingLocation, &r.ProjectName, &r.SetID} {
		*s = strings.TrimSpace(*s)
	}
	if r.TestingDate == "" {
		r.TestingDate = now.Format(DateLayout)
	}
	if r.SamplingLocation == "" {
		r.SamplingLocation = "sampling location"
	}
	if r.ProjectName == "" {
		r.ProjectName = "project name"
	}
	formats := make([]Format, 0, len(r.OutputFormat))
	for _, f := range r.OutputFormat {
		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	r.OutputFormat = formats
}

// Validate checks a normalized request. The protocol id is checked by the
// registry, not here.
func (r Request) Validate() error {
	text := []struct {
		field string
		value string
		max   int
	}{
		{"client", r.Client, 200},
		{"concrete_class", r.ConcreteClass, 100},
		{"sampling_location", r.SamplingLocation, 200},
		{"project_name", r.ProjectName, 200},
		{"set_id", r.SetID, 100},
	}
	for _, f := range text {
		if f.value == "" {
			return &FieldError{Field: f.field, Reason: "cannot be empty"}
		}
		if n := len([]rune(f.value)); n > f.max {
			return &FieldError{Field: f.field, Reason: fmt.Sprintf("%d characters, at most %d allowed", n, f.max)}
		}
	}
	if r.Protocol == "" {
		return &FieldError{Field: "protocol", Reason: "cannot be empty"}
	}
	if r.SetSize < 1 || r.SetSize > 100 {
		return &FieldError{Field: "set_size", Reason: fmt.Sprintf("%d is outside 1..100", r.SetSize)}
	}
	if len(r.OutputFormat) == 0 {
		return &FieldError{Field: "output_format", Reason: "select at least one format"}
	}
	for _, f := range r.OutputFormat {
		if f != PDF && f != Excel && f != Word {
			return &FieldError{Field: "output_format", Reason: fmt.Sprintf("unknown format %q", f)}
		}
	}
	if _, err := r.SampleAge(); err != nil {
		return err
	}
	return nil
}

// SampleAge is the number of whole days between sampling and testing.
func (r Request) SampleAge() (int, error) {
	sampled, err := parseDate("sampling_date", r.SamplingDate)
	if err != nil {
		return 0, err
	}
	tested, err := parseDate("testing_date", r.TestingDate)
	if err != nil {
		return 0, err
	}
	days := int(tested.Sub(sampled).Hours() / 24)
	if days < 0 {
		return 0, &FieldError{Field: "testing_date", Reason: "precedes the sampling date"}
	}
	return days, nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, &FieldError{Field: field, Reason: "date is required"}
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, &FieldError{Field: field, Reason: "date must be in DD.MM.YYYY format"}
	}
	return t, nil
}
