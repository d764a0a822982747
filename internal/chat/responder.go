// Package chat answers patient questions, either from canned keyword
// responses or through a text-generation model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message is required")

// Responder produces a reply to a user message.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

type rule struct {
	keywords []string
	reply    string
}

const (
	replyCondition  = "Aplastic anemia is a rare but serious blood disorder where your bone marrow doesn't make enough new blood cells. This leads to low counts of red blood cells, white blood cells, and platelets. Early symptoms include fatigue, frequent infections, and easy bruising. Would you like me to help you assess your symptoms or explain your recent test results?"
	replyBloodCount = "Based on your recent CBC results, your blood counts show some concerning values. Your white blood cell count, hemoglobin, and platelet levels are all below normal ranges. This pattern is consistent with your aplastic anemia diagnosis. I recommend discussing these results with your hematologist. Would you like me to explain what each value means?"
	replySymptoms   = "Fatigue is one of the most common symptoms of aplastic anemia, caused by low red blood cell counts (anemia). Other symptoms to watch for include easy bruising, frequent infections, shortness of breath, and pale skin. If you're experiencing severe fatigue or new symptoms, please contact your healthcare provider. Would you like to use our symptom checker tool?"
	replyTreatment  = "Treatment for aplastic anemia depends on the severity and your age. Options include immunosuppressive therapy (like ATG and cyclosporine) or stem cell transplantation. Your medical team will consider factors like your blood counts, age, and availability of donors. It's important to follow all treatment recommendations and report any side effects. Do you have specific questions about your treatment plan?"
	replyDefault    = "I'm here to help you understand your condition and navigate your care. You can ask me about your test results, symptoms, treatment options, or general questions about aplastic anemia. How can I assist you today?"
)

// Rules are checked in order; the first match wins.
var rules = []rule{
	{keywords: []string{"aplastic anemia", "bone marrow"}, reply: replyCondition},
	{keywords: []string{"blood count", "cbc"}, reply: replyBloodCount},
	{keywords: []string{"symptoms", "tired", "fatigue"}, reply: replySymptoms},
	{keywords: []string{"treatment", "therapy"}, reply: replyTreatment},
}

// KeywordResponder matches keywords case-insensitively against canned replies.
type KeywordResponder struct{}

func (KeywordResponder) Respond(_ context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	lower := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply, nil
			}
		}
	}
	return replyDefault, nil
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMResponder forwards messages to a model behind the assistant prompt.
// Model failures are returned to the caller rather than replaced.
type LLMResponder struct {
	gen Generator
}

// NewLLMResponder returns a responder backed by gen.
func NewLLMResponder(gen Generator) *LLMResponder {
	return &LLMResponder{gen: gen}
}

func (r *LLMResponder) Respond(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	reply, err := r.gen.Generate(ctx, BuildPrompt(message))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return reply, nil
}
