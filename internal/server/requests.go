package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared request validator. Field names in error messages
// come from the json tags so clients see the names they sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ScrapeRequest is the body for POST /scrape.
type ScrapeRequest struct {
	SearchTerm      string   `json:"search_term" validate:"required,min=2"`
	Location        string   `json:"location"`
	Sites           []string `json:"site_names" validate:"omitempty,dive,oneof=indeed linkedin remotive"`
	ResultsWanted   int      `json:"results_wanted" validate:"gte=0,lte=100"`
	HoursOld        int      `json:"hours_old" validate:"gte=0,lte=720"`
	IsRemote        bool     `json:"is_remote"`
	ExperienceLevel string   `json:"experience_level"`
}

// TailorRequest is the body for POST /tailor-cv. The job description can be
// supplied inline or fetched from a posting URL.
type TailorRequest struct {
	JobTitle       string `json:"job_title" validate:"required,min=2"`
	Company        string `json:"company"`
	JobDescription string `json:"job_description" validate:"required_without=JobURL,omitempty,min=20"`
	JobURL         string `json:"job_url" validate:"omitempty,url"`
	CVTemplate     string `json:"cv_template"`
}

// DiscoverRequest is the body for POST /discover.
type DiscoverRequest struct {
	Role              string   `json:"role" validate:"required,min=2"`
	ExperienceYears   int      `json:"experience_years" validate:"gte=0,lte=50"`
	Skills            []string `json:"skills" validate:"max=20"`
	Location          string   `json:"location"`
	MaxResults        int      `json:"max_results" validate:"gte=0,lte=20"`
	IncludeStartups   bool     `json:"include_startups"`
	IncludeEnterprise bool     `json:"include_enterprise"`
	CustomSearchTerms []string `json:"custom_search_terms" validate:"max=10"`
}

// decodeRequest parses and validates a JSON request body into dst. Any
// failure comes back as *ErrValidation so it maps to 400.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return &ErrValidation{Field: "body", Message: err.Error()}
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ErrValidation{
				Field:   fe.Field(),
				Message: "failed on rule " + fe.Tag(),
			}
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}
