package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	controllerx "github.com/merryway/baristabot/agent/agents/controller"
	specialistx "github.com/merryway/baristabot/agent/agents/specialist"
	contractx "github.com/merryway/baristabot/agent/contract"
	knowledgex "github.com/merryway/baristabot/agent/knowledge"
	llmx "github.com/merryway/baristabot/agent/llm"
	menux "github.com/merryway/baristabot/agent/menu"
	recommendx "github.com/merryway/baristabot/agent/recommend"
	configx "github.com/merryway/baristabot/pkg/config"
	logx "github.com/merryway/baristabot/pkg/logger"
	openrouterx "github.com/merryway/baristabot/pkg/openrouter"
	qstashx "github.com/merryway/baristabot/pkg/qstash"
)

type AppConfig struct {
	MenuDSN     string `envconfig:"MENU_DSN"`
	QstashURL   string `envconfig:"QSTASH_URL"`
	QstashToken string `envconfig:"QSTASH_TOKEN"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")
	logx.Init(logx.Config{Debug: appCfg.Debug, PrettyFormat: true})

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")

	ctx := context.Background()

	catalog, engine, err := loadReferenceData(ctx, appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load reference data")
	}

	retriever, err := buildKnowledgeStore(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build knowledge store")
	}

	models, err := specialistx.NewRegistry(ctx, *llmCfg, specialistx.Deps{
		Catalog:   catalog,
		Engine:    engine,
		Retriever: retriever,
		Sink:      buildOrderSink(appCfg),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build agent registry")
	}

	pipeline, err := controllerx.New(models)
	if err != nil {
		log.Fatal().Err(err).Msg("build controller")
	}

	runREPL(ctx, pipeline)
}

func loadReferenceData(ctx context.Context, cfg *AppConfig) (*menux.Catalog, *recommendx.Engine, error) {
	if dsn := strings.TrimSpace(cfg.MenuDSN); dsn != "" {
		store, err := menux.NewPostgresStore(menux.PostgresConfig{DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		defer store.Close()

		catalog, err := store.LoadCatalog(ctx)
		if err != nil {
			return nil, nil, err
		}
		table, err := store.LoadCoOccurrence(ctx)
		if err != nil {
			return nil, nil, err
		}
		popularity, err := store.LoadPopularity(ctx)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Int("items", catalog.Len()).Msg("reference data loaded from postgres")
		return catalog, recommendx.NewEngine(table, popularity), nil
	}

	catalog, err := menux.Default()
	if err != nil {
		return nil, nil, err
	}
	engine, err := recommendx.DefaultEngine()
	if err != nil {
		return nil, nil, err
	}
	log.Info().Int("items", catalog.Len()).Msg("reference data loaded from embedded files")
	return catalog, engine, nil
}

// buildKnowledgeStore indexes the shop snippets for the details agent.
// Without an API key the store is skipped and the details agent answers
// without retrieved context.
func buildKnowledgeStore(ctx context.Context, cfg llmx.Config) (contractx.Retriever, error) {
	sdkClient := openrouterx.NewClient(openrouterx.Config{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		SiteURL:  cfg.SiteURL,
		SiteName: cfg.SiteName,
	})
	if sdkClient == nil {
		log.Warn().Msg("no api key, knowledge store disabled")
		return nil, nil
	}

	embedder, err := openrouterx.NewEmbeddingClient(sdkClient, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	docs, err := knowledgex.DefaultDocuments()
	if err != nil {
		return nil, err
	}
	return knowledgex.NewStore(ctx, docs, embedder.Embed)
}

func buildOrderSink(cfg *AppConfig) specialistx.OrderSink {
	if strings.TrimSpace(cfg.QstashURL) == "" || strings.TrimSpace(cfg.QstashToken) == "" {
		return nil
	}
	client, err := qstashx.NewClient(qstashx.Config{
		URL:   cfg.QstashURL,
		Token: cfg.QstashToken,
	})
	if err != nil {
		log.Warn().Err(err).Msg("qstash disabled")
		return nil
	}
	return qstashx.NewOrderPublisher(client, "orders.finalized")
}

func runREPL(ctx context.Context, pipeline *controllerx.Controller) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("Welcome to Merry's Way coffee shop. Type 'exit' to leave.")

	var messages []contractx.Message
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			log.Error().Err(err).Msg("read input")
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println("Goodbye!")
			return
		}
		line.AppendHistory(input)

		messages = append(messages, contractx.UserMessage(input))
		reply, err := pipeline.Respond(ctx, messages)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		messages = append(messages, reply)
		fmt.Printf("barista> %s\n", reply.Content)
	}
}
