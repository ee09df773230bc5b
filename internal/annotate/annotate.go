// Package annotate fills in missing transaction descriptions and
// categories with an OpenAI-compatible model.
package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bankbook-dev/bankbook/internal/config"
	"github.com/bankbook-dev/bankbook/internal/logging"
	"github.com/bankbook-dev/bankbook/internal/model"
)

// ErrNotConfigured reports a missing API key.
var ErrNotConfigured = errors.New("annotation not configured: set OPENAI_API_KEY")

// Store is the slice of the ledger the annotator needs.
type Store interface {
	Unannotated(ctx context.Context) ([]model.Transaction, error)
	Update(ctx context.Context, id int64, set model.UpdateSet) (bool, error)
}

const systemPrompt = `You are a financial transaction analyzer. Given a bank transaction description, extract:
1. description: A clean, human-readable description of what this transaction is for
2. category: One of: Food, Transport, Shopping, Bills, Transfer, Salary, Entertainment, ATM, Subscription, Government, Other
3. originator_name: The merchant, person, or entity involved (if identifiable)
4. is_taxes: true if this is a tax-related charge, false otherwise

Respond in JSON format only, no other text:
{"description": "...", "category": "...", "originator_name": "...", "is_taxes": false}`

// Annotator asks a chat model to annotate raw statement descriptions.
type Annotator struct {
	client *openai.Client
	model  string
	store  Store
}

// New creates an Annotator, or ErrNotConfigured when no API key is set.
func New(cfg config.OpenAIConfig, store Store) (*Annotator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Annotator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		store:  store,
	}, nil
}

// AnnotateAllUnannotated annotates every transaction still missing a
// description or category. Individual failures are logged and skipped so
// one bad item never aborts the batch. Returns the number of
// transactions annotated.
func (a *Annotator) AnnotateAllUnannotated(ctx context.Context) (int, error) {
	backlog, err := a.store.Unannotated(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing unannotated transactions: %w", err)
	}

	annotated := 0
	for _, txn := range backlog {
		if txn.Annotated() {
			continue
		}

		set, err := a.annotateDescription(ctx, txn.BankStatementDescription)
		if err != nil {
			logging.Logger.WithError(err).WithField("id", txn.ID).Warn("skipping transaction annotation")
			continue
		}

		ok, err := a.store.Update(ctx, txn.ID, set)
		if err != nil {
			logging.Logger.WithError(err).WithField("id", txn.ID).Warn("storing annotation failed")
			continue
		}
		if ok {
			annotated++
		}
	}
	return annotated, nil
}

// annotateDescription asks the model about one raw description.
func (a *Annotator) annotateDescription(ctx context.Context, desc string) (model.UpdateSet, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transaction: " + desc},
		},
	})
	if err != nil {
		return model.UpdateSet{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.UpdateSet{}, errors.New("chat completion returned no choices")
	}

	return parseReply(resp.Choices[0].Message.Content, desc), nil
}

type reply struct {
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	OriginatorName *string `json:"originator_name"`
	IsTaxes        bool    `json:"is_taxes"`
}

// parseReply converts the model's JSON answer into an update set. An
// unparseable reply falls back to the raw description with category
// Other, and an unknown category is coerced to Other.
func parseReply(content, fallbackDesc string) model.UpdateSet {
	var r reply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		desc := fallbackDesc
		cat := model.CategoryOther
		return model.UpdateSet{Description: &desc, Category: &cat}
	}

	if r.Description == "" {
		r.Description = fallbackDesc
	}
	cat, err := model.ParseCategory(r.Category)
	if err != nil {
		cat = model.CategoryOther
	}

	set := model.UpdateSet{
		Description: &r.Description,
		Category:    &cat,
		IsTaxes:     &r.IsTaxes,
	}
	if r.OriginatorName != nil && *r.OriginatorName != "" {
		set.OriginatorName = r.OriginatorName
	}
	return set
}
