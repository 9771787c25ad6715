package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"store-assistant/internal/domain"
	logx "store-assistant/pkg/logger"
)

// DeterministicCheckout collects customer details itself, one validated
// field per turn, and only consults the model while idle.
type DeterministicCheckout struct {
	orders OrderPlacer
}

func NewDeterministicCheckout(orders OrderPlacer) (*DeterministicCheckout, error) {
	if orders == nil {
		return nil, errors.New("usecase: order placer must not be nil")
	}
	return &DeterministicCheckout{orders: orders}, nil
}

func (c *DeterministicCheckout) Name() string { return domain.StrategyDeterministic }

func (c *DeterministicCheckout) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	text := lastUserMessage(turn.History)
	draft := turn.Draft

	switch draft.State {
	case domain.CheckoutCollecting:
		if len(draft.Products) > 0 && draft.Step < len(checkoutFields) {
			return c.collect(draft, text), nil
		}
		if len(draft.Products) > 0 {
			draft.State = domain.CheckoutConfirming
			return c.confirmation(draft), nil
		}
		draft = resetDraft(draft)
	case domain.CheckoutConfirming:
		return c.confirm(ctx, turn, draft, text), nil
	}

	if turn.Settings.EnableOrderCreation && hasOrderIntent(text) {
		products := recoverProducts(turn.History)
		if len(products) == 0 {
			return Outcome{Reply: textReply(msgNeedProducts), Draft: draft, Mode: domain.ModeChat}, nil
		}
		return c.start(turn, draft, products, textReply(msgStartCheckout)), nil
	}

	reply, err := turn.Converse(ctx, turn.History, turn.Mode)
	if err != nil {
		return Outcome{}, err
	}
	if reply.SuggestCheckout && turn.Settings.EnableOrderCreation {
		reply.AssistantReply = strings.TrimSpace(reply.AssistantReply + "\n\n" + msgStartCheckout)
		return c.start(turn, draft, cardsToRefs(reply.Products), reply), nil
	}
	return Outcome{Reply: reply, Draft: draft, Mode: domain.ModeChat}, nil
}

func (c *DeterministicCheckout) start(turn Turn, draft domain.Draft, products []domain.ProductRef, reply domain.ParsedReply) Outcome {
	draft = domain.Draft{
		SessionID: draft.SessionID,
		ID:        newUUID(),
		State:     domain.CheckoutCollecting,
		Products:  products,
		Customer:  domain.CustomerInfo{Country: turn.Settings.DefaultCountry},
	}
	return Outcome{Reply: reply, Draft: draft, Mode: domain.ModeCheckout, CheckoutField: checkoutFields[0].key}
}

func (c *DeterministicCheckout) collect(draft domain.Draft, text string) Outcome {
	if isCancelAnswer(text) {
		return Outcome{Reply: textReply(msgCancelled), Draft: resetDraft(draft), Mode: domain.ModeChat}
	}

	field := checkoutFields[draft.Step]
	if !field.valid(text) {
		msg := fmt.Sprintf("Please provide a valid %s. %s", field.label, field.question)
		return Outcome{Reply: textReply(msg), Draft: draft, Mode: domain.ModeCheckout, CheckoutField: field.key}
	}

	field.assign(&draft.Customer, strings.TrimSpace(text))
	draft.Step++
	if draft.Step == len(checkoutFields) {
		draft.State = domain.CheckoutConfirming
		return c.confirmation(draft)
	}
	next := checkoutFields[draft.Step]
	return Outcome{Reply: textReply("Thanks! " + next.question), Draft: draft, Mode: domain.ModeCheckout, CheckoutField: next.key}
}

func (c *DeterministicCheckout) confirmation(draft domain.Draft) Outcome {
	cust := draft.Customer
	items := 0
	for _, p := range draft.Products {
		items += max(p.Quantity, 1)
	}
	summary := strings.Join([]string{
		"Please confirm your order details:",
		"",
		"Items: " + strconv.Itoa(items),
		"Name: " + strings.TrimSpace(cust.FirstName+" "+cust.LastName),
		"Email: " + cust.Email,
		"Phone: " + cust.Phone,
		"Address: " + cust.Address1 + ", " + cust.Postcode + " " + cust.City,
		"Payment: " + domain.PaymentMethodCODTitle,
		"",
		msgConfirmPrompt,
	}, "\n")
	return Outcome{Reply: textReply(summary), Draft: draft, Mode: domain.ModeCheckout, CheckoutField: "confirm"}
}

func (c *DeterministicCheckout) confirm(ctx context.Context, turn Turn, draft domain.Draft, text string) Outcome {
	if !matchesKeyword(text, confirmKeywords) {
		return Outcome{Reply: textReply(msgCancelled), Draft: resetDraft(draft), Mode: domain.ModeChat}
	}

	res, err := c.orders.Place(ctx, PlaceOrderInput{
		Products:            draft.Products,
		Customer:            draft.Customer,
		Identity:            turn.Identity,
		IdempotencyKey:      "checkout:" + draft.ID,
		RequireFullCustomer: true,
	})
	if err != nil {
		ue := AsError(err)
		logx.Warn().Err(err).Str("session_id", draft.SessionID).Str("reason", ue.Reason).Msg("checkout order failed")
		msg := orderFailureMessage(ue.Reason) + " " + msgRetryOrder
		return Outcome{Reply: textReply(msg), Draft: draft, Mode: domain.ModeCheckout, CheckoutField: "confirm", OrderErr: ue}
	}

	return Outcome{
		Reply: textReply(orderSuccessMessage(res, draft.Customer.Email)),
		Draft: resetDraft(draft),
		Mode:  domain.ModeChat,
		Order: &res,
	}
}
