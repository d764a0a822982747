// Package insights turns report text into validated structured findings using
// a text-generation model.
package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"marrowai-server/internal/models"
)

// ParseError reports model output that is not a valid insights object.
// Raw holds the text as received.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid insights response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// StripCodeFence removes a surrounding ``` or ```json fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(s[:nl]), "{") {
		// drop the language tag line
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse decodes and validates model output. Nothing is defaulted: missing or
// out-of-range fields produce a *ParseError.
func Parse(raw string) (*models.AIInsights, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return nil, &ParseError{Raw: raw, Err: errors.New("empty response")}
	}

	var payload struct {
		RiskScore       *float64 `json:"riskScore"`
		RiskLevel       string   `json:"riskLevel"`
		WBC             *float64 `json:"wbc"`
		Hemoglobin      *float64 `json:"hemoglobin"`
		Platelets       *float64 `json:"platelets"`
		Recommendations []string `json:"recommendations"`
	}
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&payload); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Raw: raw, Err: errors.New("trailing data after JSON object")}
	}

	for name, v := range map[string]*float64{
		"riskScore":  payload.RiskScore,
		"wbc":        payload.WBC,
		"hemoglobin": payload.Hemoglobin,
		"platelets":  payload.Platelets,
	} {
		if v == nil {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("missing field %s", name)}
		}
	}
	if *payload.RiskScore != float64(int(*payload.RiskScore)) {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("riskScore %v is not an integer", *payload.RiskScore)}
	}

	out := &models.AIInsights{
		SchemaVersion:   models.InsightsSchemaVersion,
		RiskScore:       int(*payload.RiskScore),
		RiskLevel:       strings.ToLower(strings.TrimSpace(payload.RiskLevel)),
		WBC:             *payload.WBC,
		Hemoglobin:      *payload.Hemoglobin,
		Platelets:       *payload.Platelets,
		Recommendations: payload.Recommendations,
	}
	if err := validate.Struct(out); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return out, nil
}
