package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"store-assistant/internal/domain"
)

func promptInput(products, orders bool) PromptInput {
	s := domain.DefaultSettings()
	s.EnableProductSuggestions = products
	s.EnableOrderCreation = orders
	mug := product(7, 1000, "mug")
	mug.Description = "<p>A sturdy <b>ceramic</b> mug.</p>"
	return PromptInput{
		Settings: s,
		Knowledge: []domain.KnowledgeItem{
			{Title: "Shipping", Body: "<p>We ship within 2 days.</p>"},
			{Title: "Empty", Body: "<p> </p>"},
			{Title: "Returns", Body: "30 day returns."},
		},
		Products: []domain.Product{mug},
		Shipping: DefaultShipping(s),
	}
}

func TestBuildSystemMessage_SectionOrder(t *testing.T) {
	msg := BuildSystemMessage(promptInput(true, true))

	persona := strings.Index(msg, domain.DefaultSystemPrompt)
	kb := strings.Index(msg, "## Knowledge Base:")
	products := strings.Index(msg, "## Available Products:")
	format := strings.Index(msg, "## Response Format:")
	order := strings.Index(msg, "## Order Creation:")

	require.Equal(t, 0, persona)
	require.Greater(t, kb, persona)
	require.Greater(t, products, kb)
	require.Greater(t, format, products)
	require.Greater(t, order, format)
}

func TestBuildSystemMessage_KnowledgeEntries(t *testing.T) {
	msg := BuildSystemMessage(promptInput(true, false))
	require.Contains(t, msg, "## Knowledge Base:\n## Shipping\nWe ship within 2 days.\n\n## Returns\n30 day returns.")
	require.NotContains(t, msg, "## Empty")
}

func TestBuildSystemMessage_ProductEntries(t *testing.T) {
	in := promptInput(true, false)
	long := product(8, 250, "spoon")
	long.Description = strings.Repeat("x", 250)
	hidden := product(9, 100, "sold-out")
	hidden.InStock = false
	in.Products = append(in.Products, long, hidden)

	msg := BuildSystemMessage(in)
	require.Contains(t, msg, "ID: 7\nName: mug\nPrice: $10.00\nDescription: A sturdy ceramic mug.\nURL: https://shop.example/p/mug")
	require.Contains(t, msg, "\n\n---\n\nID: 8\n")
	require.Contains(t, msg, "Description: "+strings.Repeat("x", 200)+"\nURL:")
	require.NotContains(t, msg, "ID: 9")
}

func TestBuildSystemMessage_ProductLimit(t *testing.T) {
	in := promptInput(true, false)
	in.Settings.MaxProductItems = 1
	in.Products = append(in.Products, product(8, 250, "spoon"))
	msg := BuildSystemMessage(in)
	require.Contains(t, msg, "ID: 7")
	require.NotContains(t, msg, "ID: 8")
}

func TestBuildSystemMessage_ProductSuggestionsDisabled(t *testing.T) {
	msg := BuildSystemMessage(promptInput(false, false))
	require.NotContains(t, msg, "## Available Products:")
	require.NotContains(t, msg, `"products"`)
}

func TestBuildSystemMessage_OrderFlagOnlyChangesFormatAndOrderSection(t *testing.T) {
	off := BuildSystemMessage(promptInput(true, false))
	on := BuildSystemMessage(promptInput(true, true))

	cut := func(s string) string { return s[:strings.Index(s, "## Response Format:")] }
	require.Equal(t, cut(off), cut(on))
	require.NotContains(t, off, "## Order Creation:")
	require.Contains(t, on, "## Order Creation:")
	require.Contains(t, on, `"order": null`)
	require.NotContains(t, off, `"order"`)
}

func TestBuildSystemMessage_DirectiveVariants(t *testing.T) {
	seen := map[string]bool{}
	for _, products := range []bool{false, true} {
		for _, orders := range []bool{false, true} {
			msg := BuildSystemMessage(promptInput(products, orders))
			format := msg[strings.Index(msg, "## Response Format:"):]
			if i := strings.Index(format, "## Order Creation:"); i >= 0 {
				format = format[:i]
			}
			require.Contains(t, format, "Do not wrap the JSON in code fences")
			require.Contains(t, format, `"assistant_reply"`)
			seen[format] = true
		}
	}
	require.Len(t, seen, 4)
}

func TestBuildSystemMessage_OrderInstructionsPerStrategy(t *testing.T) {
	in := promptInput(true, true)
	det := BuildSystemMessage(in)
	require.Contains(t, det, "Do NOT ask for personal details")
	require.Contains(t, det, "Cash on Delivery")
	require.Contains(t, det, "Standard Shipping costs $5.00.")

	in.Settings.CheckoutStrategy = domain.StrategyDelegated
	del := BuildSystemMessage(in)
	require.Contains(t, del, `set "order" to`)
	require.NotContains(t, del, "Do NOT ask for personal details")
}

func TestBuildSystemMessage_FreeShippingAndDefaultPersona(t *testing.T) {
	in := promptInput(false, true)
	in.Settings.SystemPrompt = "   "
	in.Shipping = domain.ShippingLine{MethodID: "free", Title: "Free"}
	msg := BuildSystemMessage(in)
	require.True(t, strings.HasPrefix(msg, domain.DefaultSystemPrompt))
	require.Contains(t, msg, "Shipping is free.")
}
