package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"store-assistant/internal/domain"
	"store-assistant/internal/sanitize"
	logx "store-assistant/pkg/logger"
)

var (
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	fencedArrayPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	bracesPattern       = regexp.MustCompile(`(?s)\{.*\}`)
	fenceBlockPattern   = regexp.MustCompile("(?s)```.*?```")
)

var suggestCheckoutKeywords = []string{"order", "checkout", "buy", "purchase", "proceed"}

// ProductLookup resolves catalog products by id. A missing product is
// reported as (nil, nil).
type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// extraction is the outcome of pulling a JSON object out of model text:
// either a structuredReply or a plainTextReply.
type extraction interface {
	isExtraction()
}

type structuredReply struct {
	fields map[string]any
}

type plainTextReply struct {
	text string
}

func (structuredReply) isExtraction() {}
func (plainTextReply) isExtraction()  {}

// candidateStrategies are tried in order; the first match wins.
var candidateStrategies = []func(string) (string, bool){
	submatch(fencedObjectPattern),
	submatch(fencedArrayPattern),
	func(s string) (string, bool) {
		m := bracesPattern.FindString(s)
		return m, m != ""
	},
}

// decodeStrategies are tried against the candidate in order.
var decodeStrategies = []func(string) (map[string]any, bool){
	decodeObject,
	func(s string) (map[string]any, bool) {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return nil, false
		}
		return decodeObject(s[start : end+1])
	},
}

func submatch(re *regexp.Regexp) func(string) (string, bool) {
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	}
}

func extract(raw string) extraction {
	trimmed := strings.TrimSpace(raw)
	candidate := trimmed
	for _, find := range candidateStrategies {
		if c, ok := find(trimmed); ok {
			candidate = c
			break
		}
	}
	for _, decode := range decodeStrategies {
		if obj, ok := decode(candidate); ok {
			return structuredReply{fields: obj}
		}
	}
	return plainTextReply{text: raw}
}

func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ReplyParser turns raw model output into a ParsedReply. It never fails:
// anything it cannot interpret degrades to a plain-text reply.
type ReplyParser struct {
	catalog ProductLookup
}

func NewReplyParser(catalog ProductLookup) (*ReplyParser, error) {
	if catalog == nil {
		return nil, errors.New("usecase: product lookup must not be nil")
	}
	return &ReplyParser{catalog: catalog}, nil
}

func (p *ReplyParser) Parse(ctx context.Context, raw string, mode domain.Mode, currencySymbol string) domain.ParsedReply {
	reply := domain.ParsedReply{Products: []domain.ProductCard{}}

	switch r := extract(raw).(type) {
	case plainTextReply:
		reply.AssistantReply = strings.TrimSpace(r.text)
	case structuredReply:
		reply.AssistantReply = replyText(r.fields, raw)
		reply.Products = p.productCards(ctx, r.fields["products"], currencySymbol)
		reply.Order = p.validatedOrder(ctx, r.fields["order"])
	}

	reply.SuggestCheckout = mode != domain.ModeCheckout &&
		len(reply.Products) > 0 &&
		containsAny(strings.ToLower(reply.AssistantReply), suggestCheckoutKeywords)
	return reply
}

func replyText(fields map[string]any, raw string) string {
	if s, ok := fields["assistant_reply"].(string); ok && strings.TrimSpace(s) != "" {
		return sanitize.Text(s)
	}
	recovered := fenceBlockPattern.ReplaceAllString(raw, "")
	recovered = bracesPattern.ReplaceAllString(recovered, "")
	recovered = strings.TrimSpace(recovered)
	if recovered == "" {
		recovered = raw
	}
	return sanitize.Text(recovered)
}

func (p *ReplyParser) productCards(ctx context.Context, v any, symbol string) []domain.ProductCard {
	cards := []domain.ProductCard{}
	entries, ok := v.([]any)
	if !ok {
		return cards
	}
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, ok := positiveInt(obj["id"])
		if !ok || seen[id] {
			continue
		}
		product := p.purchasable(ctx, id)
		if product == nil {
			continue
		}
		seen[id] = true
		cards = append(cards, product.Card(symbol))
	}
	return cards
}

// validatedOrder accepts an order object only when it carries products,
// a valid email, a phone and an address, and at least one product line
// survives catalog resolution.
func (p *ReplyParser) validatedOrder(ctx context.Context, v any) *domain.ValidatedOrder {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	email, _ := obj["email"].(string)
	phone, _ := obj["phone"].(string)
	address, _ := obj["address"].(string)
	email, phone, address = strings.TrimSpace(email), strings.TrimSpace(phone), strings.TrimSpace(address)
	if !validEmail(email) || phone == "" || address == "" {
		return nil
	}
	entries, ok := obj["products"].([]any)
	if !ok || len(entries) == 0 {
		return nil
	}

	refs := make([]domain.ProductRef, 0, len(entries))
	for _, e := range entries {
		line, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, ok := positiveInt(line["id"])
		if !ok {
			continue
		}
		qty, ok := positiveInt(line["qty"])
		if !ok || qty > math.MaxInt32 {
			continue
		}
		if p.purchasable(ctx, id) == nil {
			continue
		}
		refs = append(refs, domain.ProductRef{ID: id, Quantity: int(qty)})
	}
	if len(refs) == 0 {
		return nil
	}
	return &domain.ValidatedOrder{
		Products: refs,
		Email:    email,
		Phone:    sanitize.Text(phone),
		Address:  sanitize.Text(address),
	}
}

func (p *ReplyParser) purchasable(ctx context.Context, id int64) *domain.Product {
	product, err := p.catalog.GetByID(ctx, id)
	if err != nil {
		logx.Warn().Err(err).Int64("product_id", id).Msg("catalog lookup failed while parsing reply")
		return nil
	}
	if product == nil || !product.Purchasable() {
		return nil
	}
	return product
}

func positiveInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, i > 0
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || f <= 0 || f > math.MaxInt64/2 {
			return 0, false
		}
		return int64(f), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, i > 0
	}
	return 0, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
