package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/guard.txt
	guardRaw string

	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/details.txt
	detailsRaw string

	//go:embed template/recommendation.txt
	recommendationRaw string

	//go:embed template/recommendation_classifier.txt
	recommendationClassifierRaw string

	//go:embed template/order_taking.txt
	orderTakingRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Guard                    string
	Classifier               string
	Details                  string
	Recommendation           string
	RecommendationClassifier string
	OrderTaking              string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Guard:                    strings.TrimSpace(guardRaw),
		Classifier:               strings.TrimSpace(classifierRaw),
		Details:                  strings.TrimSpace(detailsRaw),
		Recommendation:           strings.TrimSpace(recommendationRaw),
		RecommendationClassifier: strings.TrimSpace(recommendationClassifierRaw),
		OrderTaking:              strings.TrimSpace(orderTakingRaw),
	}
}

// Fill substitutes {name} placeholders in a template.
func Fill(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}
	return template
}
