package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"store-assistant/internal/domain"
	logx "store-assistant/pkg/logger"
)

type SettingsProvider interface {
	Load(ctx context.Context) (domain.Settings, error)
}

type KnowledgeSource interface {
	Latest(ctx context.Context, limit int) ([]domain.KnowledgeItem, error)
}

type ProductCatalog interface {
	ProductLookup
	ListPurchasable(ctx context.Context, limit int) ([]domain.Product, error)
}

type ModelClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// DraftStore keeps checkout drafts per session. Load returns (nil, nil)
// when the session has no draft.
type DraftStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Draft, error)
	Save(ctx context.Context, draft domain.Draft) error
	Delete(ctx context.Context, sessionID string) error
}

// modelFailure is implemented by model client errors that know whether
// they came from the transport, the provider or a malformed response.
type modelFailure interface {
	FailureKind() string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatDependencies struct {
	Settings   SettingsProvider
	Knowledge  KnowledgeSource
	Catalog    ProductCatalog
	Model      ModelClient
	Drafts     DraftStore
	Orders     OrderPlacer
	Shipping   ShippingQuoter
	Strategies []CheckoutStrategy
}

// ChatService answers one chat turn: it loads the session's checkout
// draft, lets the configured strategy handle the turn and stores the
// resulting draft.
type ChatService struct {
	settings   SettingsProvider
	knowledge  KnowledgeSource
	catalog    ProductCatalog
	model      ModelClient
	drafts     DraftStore
	parser     *ReplyParser
	shipping   ShippingQuoter
	strategies map[string]CheckoutStrategy
	now        func() time.Time
}

type ChatInput struct {
	SessionID string
	Messages  []domain.Message
	Mode      domain.Mode
	Identity  *domain.Identity
}

type ChatOutput struct {
	Reply         domain.ParsedReply
	Mode          domain.Mode
	CheckoutField string
	Order         *domain.OrderResult
	OrderError    *Error
}

func NewChatService(deps ChatDependencies) (*ChatService, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("usecase: settings provider must not be nil")
	case deps.Knowledge == nil:
		return nil, errors.New("usecase: knowledge source must not be nil")
	case deps.Catalog == nil:
		return nil, errors.New("usecase: catalog must not be nil")
	case deps.Model == nil:
		return nil, errors.New("usecase: model client must not be nil")
	case deps.Drafts == nil:
		return nil, errors.New("usecase: draft store must not be nil")
	}

	parser, err := NewReplyParser(deps.Catalog)
	if err != nil {
		return nil, err
	}
	strategies := deps.Strategies
	if len(strategies) == 0 {
		if deps.Orders == nil {
			return nil, errors.New("usecase: order placer or checkout strategies required")
		}
		det, _ := NewDeterministicCheckout(deps.Orders)
		del, _ := NewDelegatedCheckout(deps.Orders)
		strategies = []CheckoutStrategy{det, del}
	}
	byName := make(map[string]CheckoutStrategy, len(strategies))
	for _, st := range strategies {
		byName[st.Name()] = st
	}
	if _, ok := byName[domain.StrategyDeterministic]; !ok {
		return nil, errors.New("usecase: deterministic checkout strategy is required")
	}

	shipping := deps.Shipping
	if shipping == nil {
		shipping = DefaultShipping
	}
	return &ChatService{
		settings:   deps.Settings,
		knowledge:  deps.Knowledge,
		catalog:    deps.Catalog,
		model:      deps.Model,
		drafts:     deps.Drafts,
		parser:     parser,
		shipping:   shipping,
		strategies: byName,
		now:        time.Now,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if verr := validateMessages(in.Messages); verr != nil {
		return ChatOutput{}, verr
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return ChatOutput{}, newError(ErrorForbidden, ReasonForbidden, nil)
	}
	mode := in.Mode
	if mode != domain.ModeCheckout {
		mode = domain.ModeChat
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, ReasonSettingsUnavailable, err)
	}

	stored, err := s.drafts.Load(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, ReasonDraftStore, err)
	}
	draft := domain.NewDraft(sessionID)
	if stored != nil {
		draft = *stored
	}

	outcome, err := s.strategyFor(settings).Handle(ctx, Turn{
		SessionID: sessionID,
		Settings:  settings,
		Draft:     draft,
		History:   in.Messages,
		Mode:      mode,
		Identity:  in.Identity,
		Converse:  s.converser(settings),
	})
	if err != nil {
		return ChatOutput{}, err
	}

	if err := s.persistDraft(ctx, draft, outcome.Draft); err != nil {
		return ChatOutput{}, newError(ErrorInternal, ReasonDraftStore, err)
	}

	if outcome.Reply.Products == nil {
		outcome.Reply.Products = []domain.ProductCard{}
	}
	return ChatOutput{
		Reply:         outcome.Reply,
		Mode:          outcome.Mode,
		CheckoutField: outcome.CheckoutField,
		Order:         outcome.Order,
		OrderError:    outcome.OrderErr,
	}, nil
}

// Restart discards any checkout in progress for the session.
func (s *ChatService) Restart(ctx context.Context, sessionID string) error {
	if err := s.drafts.Delete(ctx, sessionID); err != nil {
		return newError(ErrorInternal, ReasonDraftStore, err)
	}
	return nil
}

func (s *ChatService) strategyFor(settings domain.Settings) CheckoutStrategy {
	if st, ok := s.strategies[settings.CheckoutStrategy]; ok {
		return st
	}
	return s.strategies[domain.StrategyDeterministic]
}

func (s *ChatService) persistDraft(ctx context.Context, before, after domain.Draft) error {
	if !after.Active() {
		if before.Active() {
			return s.drafts.Delete(ctx, after.SessionID)
		}
		return nil
	}
	after.UpdatedAt = s.now().UTC()
	return s.drafts.Save(ctx, after)
}

func (s *ChatService) converser(settings domain.Settings) Converser {
	return func(ctx context.Context, history []domain.Message, mode domain.Mode) (domain.ParsedReply, error) {
		if !settings.HasCredential() {
			return domain.ParsedReply{}, newError(ErrorConfig, ReasonAPIKeyMissing, nil)
		}

		knowledge, err := s.knowledge.Latest(ctx, settings.MaxKnowledgeItems)
		if err != nil {
			logx.Warn().Err(err).Msg("knowledge base unavailable, continuing without it")
			knowledge = nil
		}
		var products []domain.Product
		if settings.EnableProductSuggestions {
			products, err = s.catalog.ListPurchasable(ctx, settings.MaxProductItems)
			if err != nil {
				logx.Warn().Err(err).Msg("product catalog unavailable, continuing without it")
				products = nil
			}
		}

		system := BuildSystemMessage(PromptInput{
			Settings:  settings,
			Knowledge: knowledge,
			Products:  products,
			Shipping:  s.shipping(settings),
		})
		raw, err := s.model.Complete(ctx, domain.CompletionRequest{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			System:   system,
			History:  history,
			JSONMode: settings.EnableOrderCreation,
		})
		if err != nil {
			return domain.ParsedReply{}, classifyModelError(err)
		}
		return s.parser.Parse(ctx, raw, mode, settings.CurrencySymbol), nil
	}
}

func classifyModelError(err error) *Error {
	reason := ReasonModelUpstream
	var mf modelFailure
	if errors.As(err, &mf) {
		switch mf.FailureKind() {
		case "transport":
			reason = ReasonModelTransport
		case "malformed":
			reason = ReasonModelMalformed
		}
	}
	ev := logx.Error().Err(err).Str("reason", reason)
	if status, ok := upstreamStatusCode(err); ok {
		ev = ev.Int("provider_status", status)
	}
	ev.Msg("model call failed")
	return newError(ErrorUpstream, reason, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
