package usecase

import (
	"fmt"
	"strings"

	"store-assistant/internal/domain"
	"store-assistant/internal/sanitize"
)

const maxDescriptionRunes = 200

// PromptInput is everything the system message is assembled from.
type PromptInput struct {
	Settings  domain.Settings
	Knowledge []domain.KnowledgeItem
	Products  []domain.Product
	Shipping  domain.ShippingLine
}

// BuildSystemMessage assembles the system message: persona, knowledge,
// product catalog, response format and, when orders are enabled, the
// order creation instructions. It has no side effects.
func BuildSystemMessage(in PromptInput) string {
	s := in.Settings
	var b strings.Builder

	persona := strings.TrimSpace(s.SystemPrompt)
	if persona == "" {
		persona = domain.DefaultSystemPrompt
	}
	b.WriteString(persona)

	if kb := knowledgeContext(in.Knowledge, s.MaxKnowledgeItems); kb != "" {
		b.WriteString("\n\n## Knowledge Base:\n")
		b.WriteString(kb)
	}

	if s.EnableProductSuggestions {
		if pc := productContext(in.Products, s.MaxProductItems, s.CurrencySymbol); pc != "" {
			b.WriteString("\n\n## Available Products:\n")
			b.WriteString(pc)
		}
	}

	b.WriteString("\n\n## Response Format:\n")
	b.WriteString(responseFormat(s.EnableProductSuggestions, s.EnableOrderCreation))

	if s.EnableOrderCreation {
		b.WriteString("\n\n## Order Creation:\n")
		b.WriteString(orderInstructions(s, in.Shipping))
	}
	return b.String()
}

func knowledgeContext(items []domain.KnowledgeItem, limit int) string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	entries := make([]string, 0, len(items))
	for _, it := range items {
		body := sanitize.Text(it.Body)
		if body == "" {
			continue
		}
		entries = append(entries, "## "+sanitize.Text(it.Title)+"\n"+body)
	}
	return strings.Join(entries, "\n\n")
}

func productContext(products []domain.Product, limit int, symbol string) string {
	entries := make([]string, 0, len(products))
	for _, p := range products {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if !p.Purchasable() {
			continue
		}
		entries = append(entries, fmt.Sprintf("ID: %d\nName: %s\nPrice: %s\nDescription: %s\nURL: %s",
			p.ID,
			sanitize.Text(p.Name),
			p.Price.Format(symbol),
			sanitize.Truncate(sanitize.Text(p.Description), maxDescriptionRunes),
			p.URL,
		))
	}
	return strings.Join(entries, "\n\n---\n\n")
}

func responseFormat(products, orders bool) string {
	shape := []string{`"assistant_reply": "your message to the customer"`}
	fields := []string{`- "assistant_reply" (string, required): your reply to the customer in plain text.`}
	if products {
		shape = append(shape, `"products": [{"id": 123}]`)
		fields = append(fields, `- "products" (array): products from Available Products you recommend, referenced by id. Use an empty array when none apply. Never invent ids.`)
	}
	if orders {
		shape = append(shape, `"order": null`)
		fields = append(fields, `- "order" (object or null): see Order Creation. Use null unless instructed otherwise.`)
	}
	return strings.Join([]string{
		"Always respond with a single JSON object and nothing else.",
		"Do not wrap the JSON in code fences and do not add any text before or after it.",
		"Shape: {" + strings.Join(shape, ", ") + "}",
		strings.Join(fields, "\n"),
	}, "\n")
}

func orderInstructions(s domain.Settings, shipping domain.ShippingLine) string {
	shippingNote := "Shipping is free."
	if shipping.Cost > 0 {
		shippingNote = fmt.Sprintf("%s costs %s.", shipping.Title, shipping.Cost.Format(s.CurrencySymbol))
	}
	lines := []string{
		"Customers can order directly in this chat. Payment is " + domain.PaymentMethodCODTitle + ". " + shippingNote,
	}
	if s.CheckoutStrategy == domain.StrategyDelegated {
		lines = append(lines,
			"Required details: email, phone and full delivery address.",
			"When the customer wants to buy, confirm the products and quantities, then ask for the missing details one question at a time.",
			`Once every detail is known and the customer has confirmed, set "order" to {"products": [{"id": 123, "qty": 1}], "email": "...", "phone": "...", "address": "..."}.`,
			`Until then keep "order" null.`,
		)
	} else {
		lines = append(lines,
			"Required details: email, phone, first name, last name, street address, city and postal code.",
			`When the customer wants to buy, list the products they want in "products" and tell them a short checkout will collect their details.`,
			`Do NOT ask for personal details yourself and always keep "order" null.`,
		)
	}
	return strings.Join(lines, "\n")
}
