package domain

import "strings"

const (
	DefaultModel        = "gpt-4o-mini"
	DefaultSystemPrompt = "You are a helpful assistant for an online store. Help customers find products and answer their questions."
)

// Settings is the store owner's assistant configuration.
type Settings struct {
	APIKey                   string
	Model                    string
	SystemPrompt             string
	WelcomeMessage           string
	EnableProductSuggestions bool
	EnableOrderCreation      bool
	MaxKnowledgeItems        int
	MaxProductItems          int
	CheckoutStrategy         string
	FlatRateCost             Money
	HasFlatRate              bool
	DefaultShippingCost      Money
	Currency                 string
	CurrencySymbol           string
	DefaultCountry           string
}

func DefaultSettings() Settings {
	return Settings{
		Model:                    DefaultModel,
		SystemPrompt:             DefaultSystemPrompt,
		WelcomeMessage:           "Hi! How can I help you today?",
		EnableProductSuggestions: true,
		EnableOrderCreation:      false,
		MaxKnowledgeItems:        20,
		MaxProductItems:          50,
		CheckoutStrategy:         StrategyDeterministic,
		DefaultShippingCost:      500,
		Currency:                 "USD",
		CurrencySymbol:           "$",
		DefaultCountry:           "SI",
	}
}

// HasCredential reports whether a model API key is configured.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.APIKey) != ""
}
