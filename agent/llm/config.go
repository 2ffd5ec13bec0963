package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/merryway/baristabot/agent/contract"
	openrouterx "github.com/merryway/baristabot/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`

	GuardModel          string `envconfig:"GUARD_MODEL" split_words:"true"`
	ClassifierModel     string `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	DetailsModel        string `envconfig:"DETAILS_MODEL" split_words:"true"`
	RecommendationModel string `envconfig:"RECOMMENDATION_MODEL" split_words:"true"`
	OrderModel          string `envconfig:"ORDER_MODEL" split_words:"true"`

	GuardTemperature          float32 `envconfig:"GUARD_TEMPERATURE" split_words:"true" default:"-1"`
	ClassifierTemperature     float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	DetailsTemperature        float32 `envconfig:"DETAILS_TEMPERATURE" split_words:"true" default:"-1"`
	RecommendationTemperature float32 `envconfig:"RECOMMENDATION_TEMPERATURE" split_words:"true" default:"-1"`
	OrderTemperature          float32 `envconfig:"ORDER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model/temperature overrides for one agent
// into a concrete openrouter config.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch agentType {
	case contractx.AgentTypeGuard:
		override(c.GuardModel, c.GuardTemperature)
	case contractx.AgentTypeClassification:
		override(c.ClassifierModel, c.ClassifierTemperature)
	case contractx.AgentTypeDetails:
		override(c.DetailsModel, c.DetailsTemperature)
	case contractx.AgentTypeRecommendation:
		override(c.RecommendationModel, c.RecommendationTemperature)
	case contractx.AgentTypeOrderTaking:
		override(c.OrderModel, c.OrderTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
