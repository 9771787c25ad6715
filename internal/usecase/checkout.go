package usecase

import (
	"context"
	"strconv"
	"strings"

	"store-assistant/internal/domain"
)

const recentProductMessages = 5

const (
	msgStartCheckout = "Great! I'll prepare your order. First, what is your email address?"
	msgNeedProducts  = "I need to know which products you'd like to order. Could you please tell me?"
	msgCancelled     = "No problem! If you change your mind, just let me know."
	msgConfirmPrompt = "Should I create your order now? (Yes/No)"
	msgRetryOrder    = `Reply "yes" to try again or anything else to cancel.`
)

var orderIntentKeywords = []string{
	"order", "buy", "purchase", "checkout", "place order",
	"i want to order", "i'd like to order", "order now",
	"order these", "order this", "proceed with order",
}

var confirmKeywords = []string{"yes", "yep", "yeah", "ok", "okay", "sure", "create", "proceed", "go ahead"}

var cancelKeywords = []string{"cancel", "stop", "never mind", "nevermind"}

// Converser runs one model round trip and returns the parsed reply.
type Converser func(ctx context.Context, history []domain.Message, mode domain.Mode) (domain.ParsedReply, error)

// OrderPlacer places orders on behalf of a checkout strategy.
type OrderPlacer interface {
	Place(ctx context.Context, in PlaceOrderInput) (domain.OrderResult, error)
}

// Turn is the input of one checkout strategy step. The draft is passed by
// value and the strategy returns its replacement in Outcome.
type Turn struct {
	SessionID string
	Settings  domain.Settings
	Draft     domain.Draft
	History   []domain.Message
	Mode      domain.Mode
	Identity  *domain.Identity
	Converse  Converser
}

type Outcome struct {
	Reply         domain.ParsedReply
	Draft         domain.Draft
	Mode          domain.Mode
	CheckoutField string
	Order         *domain.OrderResult
	OrderErr      *Error
}

// CheckoutStrategy decides how a turn is answered: locally by the state
// machine, or by the model.
type CheckoutStrategy interface {
	Name() string
	Handle(ctx context.Context, turn Turn) (Outcome, error)
}

func textReply(text string) domain.ParsedReply {
	return domain.ParsedReply{AssistantReply: text, Products: []domain.ProductCard{}}
}

func lastUserMessage(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

func normalizeAnswer(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), ".!?, ")
}

func hasOrderIntent(text string) bool {
	return containsAny(strings.ToLower(text), orderIntentKeywords)
}

// isCancelAnswer reports whether the whole answer is a cancel keyword, so
// free-text answers such as "Stop Lane 4" are still treated as field values.
func isCancelAnswer(text string) bool {
	text = normalizeAnswer(text)
	for _, k := range cancelKeywords {
		if text == k {
			return true
		}
	}
	return false
}

// matchesKeyword reports whether text equals a keyword or starts with one
// followed by a space.
func matchesKeyword(text string, keywords []string) bool {
	text = normalizeAnswer(text)
	for _, k := range keywords {
		if text == k || strings.HasPrefix(text, k+" ") {
			return true
		}
	}
	return false
}

// recoverProducts collects product ids suggested by the assistant in the
// most recent messages, oldest first, without duplicates.
func recoverProducts(history []domain.Message) []domain.ProductRef {
	start := len(history) - recentProductMessages
	if start < 0 {
		start = 0
	}
	seen := make(map[int64]bool)
	var refs []domain.ProductRef
	for _, m := range history[start:] {
		if m.Role != domain.RoleAssistant {
			continue
		}
		for _, p := range m.Products {
			if p.ID <= 0 || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			refs = append(refs, domain.ProductRef{ID: p.ID, Quantity: 1})
		}
	}
	return refs
}

func cardsToRefs(cards []domain.ProductCard) []domain.ProductRef {
	refs := make([]domain.ProductRef, 0, len(cards))
	for _, c := range cards {
		refs = append(refs, domain.ProductRef{ID: c.ID, Quantity: 1})
	}
	return refs
}

func resetDraft(d domain.Draft) domain.Draft {
	return domain.NewDraft(d.SessionID)
}

func orderSuccessMessage(res domain.OrderResult, email string) string {
	sym := res.CurrencySymbol
	lines := []string{
		"Your order #" + strconv.FormatInt(res.OrderID, 10) + " has been created!",
		"",
		"Subtotal: " + res.Subtotal.Format(sym),
	}
	if res.ShippingTotal > 0 {
		lines = append(lines, "Shipping: "+res.ShippingTotal.Format(sym))
	}
	lines = append(lines,
		"Total: "+res.Total.Format(sym),
		"Payment: "+domain.PaymentMethodCODTitle,
	)
	if email != "" {
		lines = append(lines, "", "A confirmation will be sent to "+email+".")
	}
	return strings.Join(lines, "\n")
}

func orderFailureMessage(reason string) string {
	switch reason {
	case ReasonNoProducts, ReasonInvalidProducts:
		return "Sorry, none of the selected products are available right now."
	case ReasonInvalidEmail, ReasonInvalidPhone, ReasonInvalidAddress,
		ReasonInvalidName, ReasonInvalidCity, ReasonInvalidPostcode:
		return "Sorry, I couldn't create the order. " + UserMessage(reason)
	case ReasonCalculationFailed:
		return "Sorry, I couldn't calculate the order total."
	case ReasonFeatureDisabled:
		return "Sorry, ordering through the chat is not available right now."
	}
	return "Sorry, something went wrong while creating your order."
}
