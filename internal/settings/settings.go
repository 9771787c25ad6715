// Package settings loads the store owner's assistant configuration from a
// YAML (or JSON) document kept in SSM Parameter Store or on disk.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"store-assistant/internal/domain"
	"store-assistant/internal/integrations/paramstore"
	logx "store-assistant/pkg/logger"
)

// Getter reads a single named parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Loader produces a fresh settings snapshot.
type Loader func(ctx context.Context) (domain.Settings, error)

type document struct {
	Model                    string `yaml:"model_name"`
	SystemPrompt             string `yaml:"system_prompt"`
	WelcomeMessage           string `yaml:"welcome_message"`
	EnableProductSuggestions bool   `yaml:"enable_product_suggestions"`
	EnableOrderCreation      bool   `yaml:"enable_order_creation"`
	MaxKnowledgeItems        int    `yaml:"max_knowledge_items"`
	MaxProductItems          int    `yaml:"max_product_items"`
	CheckoutStrategy         string `yaml:"checkout_strategy"`
	FlatRateCost             string `yaml:"flat_rate_cost"`
	DefaultShippingCost      string `yaml:"default_shipping_cost"`
	Currency                 string `yaml:"currency"`
	CurrencySymbol           string `yaml:"currency_symbol"`
	DefaultCountry           string `yaml:"default_country"`
	APIKey                   string `yaml:"api_key"`
}

// tokenPayload is the JSON shape of the API token parameter.
type tokenPayload struct {
	Token string `json:"token"`
}

// Decode parses a settings document. Keys that are absent keep their defaults.
func Decode(data []byte) (domain.Settings, error) {
	def := domain.DefaultSettings()
	doc := document{
		Model:                    def.Model,
		SystemPrompt:             def.SystemPrompt,
		WelcomeMessage:           def.WelcomeMessage,
		EnableProductSuggestions: def.EnableProductSuggestions,
		EnableOrderCreation:      def.EnableOrderCreation,
		MaxKnowledgeItems:        def.MaxKnowledgeItems,
		MaxProductItems:          def.MaxProductItems,
		CheckoutStrategy:         def.CheckoutStrategy,
		DefaultShippingCost:      def.DefaultShippingCost.String(),
		Currency:                 def.Currency,
		CurrencySymbol:           def.CurrencySymbol,
		DefaultCountry:           def.DefaultCountry,
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.Settings{}, fmt.Errorf("settings: decode document: %w", err)
		}
	}
	return doc.toSettings()
}

func (d document) toSettings() (domain.Settings, error) {
	s := domain.Settings{
		APIKey:                   strings.TrimSpace(d.APIKey),
		Model:                    strings.TrimSpace(d.Model),
		SystemPrompt:             strings.TrimSpace(d.SystemPrompt),
		WelcomeMessage:           strings.TrimSpace(d.WelcomeMessage),
		EnableProductSuggestions: d.EnableProductSuggestions,
		EnableOrderCreation:      d.EnableOrderCreation,
		MaxKnowledgeItems:        d.MaxKnowledgeItems,
		MaxProductItems:          d.MaxProductItems,
		CheckoutStrategy:         strings.TrimSpace(d.CheckoutStrategy),
		Currency:                 strings.ToUpper(strings.TrimSpace(d.Currency)),
		CurrencySymbol:           d.CurrencySymbol,
		DefaultCountry:           strings.ToUpper(strings.TrimSpace(d.DefaultCountry)),
	}
	if s.Model == "" {
		s.Model = domain.DefaultModel
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = domain.DefaultSystemPrompt
	}
	if s.MaxKnowledgeItems <= 0 || s.MaxProductItems <= 0 {
		return domain.Settings{}, errors.New("settings: max_knowledge_items and max_product_items must be positive")
	}
	switch s.CheckoutStrategy {
	case domain.StrategyDeterministic, domain.StrategyDelegated:
	default:
		return domain.Settings{}, fmt.Errorf("settings: unknown checkout_strategy %q", s.CheckoutStrategy)
	}

	shipping, err := domain.ParseMoney(d.DefaultShippingCost)
	if err != nil || shipping < 0 {
		return domain.Settings{}, fmt.Errorf("settings: invalid default_shipping_cost %q", d.DefaultShippingCost)
	}
	s.DefaultShippingCost = shipping
	if strings.TrimSpace(d.FlatRateCost) != "" {
		flat, err := domain.ParseMoney(d.FlatRateCost)
		if err != nil || flat < 0 {
			return domain.Settings{}, fmt.Errorf("settings: invalid flat_rate_cost %q", d.FlatRateCost)
		}
		s.FlatRateCost, s.HasFlatRate = flat, true
	}
	return s, nil
}

// SSMSource reads "<prefix>/settings" and the API token at
// "<prefix>/open-ai-token". Either parameter may be absent.
func SSMSource(getter Getter, prefix string) (Loader, error) {
	if getter == nil {
		return nil, errors.New("settings: parameter getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("settings: parameter prefix must not be empty")
	}
	return func(ctx context.Context) (domain.Settings, error) {
		raw, err := getter.GetParameter(ctx, prefix+"/settings")
		if err != nil && !errors.Is(err, paramstore.ErrNotFound) {
			return domain.Settings{}, fmt.Errorf("settings: load document: %w", err)
		}
		s, err := Decode([]byte(raw))
		if err != nil {
			return domain.Settings{}, err
		}

		token, err := getter.GetParameter(ctx, prefix+"/open-ai-token")
		switch {
		case errors.Is(err, paramstore.ErrNotFound):
			return s, nil
		case err != nil:
			return domain.Settings{}, fmt.Errorf("settings: load api token: %w", err)
		}
		var tp tokenPayload
		if err := json.Unmarshal([]byte(token), &tp); err != nil {
			return domain.Settings{}, fmt.Errorf("settings: unmarshal api token as JSON: %w", err)
		}
		if key := strings.TrimSpace(tp.Token); key != "" {
			s.APIKey = key
		}
		return s, nil
	}, nil
}

// FileSource reads a settings document from path. A missing file yields
// defaults; apiKey, when set, overrides the document's api_key.
func FileSource(path, apiKey string) Loader {
	return func(context.Context) (domain.Settings, error) {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
		}
		s, err := Decode(data)
		if err != nil {
			return domain.Settings{}, err
		}
		if k := strings.TrimSpace(apiKey); k != "" {
			s.APIKey = k
		}
		return s, nil
	}
}

// Provider caches a Loader's result for ttl. A failed first load is
// retried on the next call; a failed refresh keeps serving the last
// good snapshot.
type Provider struct {
	load Loader
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	loaded   bool
	cached   domain.Settings
	loadedAt time.Time
}

func NewProvider(load Loader, ttl time.Duration) (*Provider, error) {
	if load == nil {
		return nil, errors.New("settings: loader must not be nil")
	}
	return &Provider{load: load, ttl: ttl, now: time.Now}, nil
}

func (p *Provider) fresh() bool {
	return p.loaded && (p.ttl <= 0 || p.now().Sub(p.loadedAt) < p.ttl)
}

func (p *Provider) Load(ctx context.Context) (domain.Settings, error) {
	p.mu.RLock()
	if p.fresh() {
		s := p.cached
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fresh() {
		return p.cached, nil
	}

	s, err := p.load(ctx)
	if err != nil {
		if p.loaded {
			logx.Warn().Err(err).Msg("settings refresh failed, serving cached settings")
			p.loadedAt = p.now()
			return p.cached, nil
		}
		return domain.Settings{}, err
	}
	p.cached, p.loaded, p.loadedAt = s, true, p.now()
	return s, nil
}
