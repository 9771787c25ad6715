package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"store-assistant/internal/domain"
	logx "store-assistant/pkg/logger"
)

// DelegatedCheckout lets the model collect customer details and places the
// order once the model emits a complete order object.
type DelegatedCheckout struct {
	orders OrderPlacer
}

func NewDelegatedCheckout(orders OrderPlacer) (*DelegatedCheckout, error) {
	if orders == nil {
		return nil, errors.New("usecase: order placer must not be nil")
	}
	return &DelegatedCheckout{orders: orders}, nil
}

func (c *DelegatedCheckout) Name() string { return domain.StrategyDelegated }

func (c *DelegatedCheckout) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	mode := turn.Mode
	if mode == "" {
		mode = domain.ModeChat
	}
	ordering := turn.Settings.EnableOrderCreation
	if ordering && hasOrderIntent(lastUserMessage(turn.History)) {
		if len(recoverProducts(turn.History)) == 0 {
			return Outcome{Reply: textReply(msgNeedProducts), Draft: turn.Draft, Mode: domain.ModeChat}, nil
		}
		mode = domain.ModeCheckout
	}

	reply, err := turn.Converse(ctx, turn.History, mode)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Reply: reply, Draft: turn.Draft, Mode: mode}
	if reply.Order == nil || !ordering {
		return out, nil
	}

	order := reply.Order
	res, err := c.orders.Place(ctx, PlaceOrderInput{
		Products: order.Products,
		Customer: domain.CustomerInfo{
			Email:    order.Email,
			Phone:    order.Phone,
			Address1: order.Address,
			Country:  turn.Settings.DefaultCountry,
		},
		Identity:       turn.Identity,
		IdempotencyKey: delegatedOrderKey(turn.SessionID, order),
	})
	if err != nil {
		ue := AsError(err)
		logx.Warn().Err(err).Str("session_id", turn.SessionID).Str("reason", ue.Reason).Msg("delegated order failed")
		out.Reply.AssistantReply += "\n\n" + orderFailureMessage(ue.Reason)
		out.OrderErr = ue
		return out, nil
	}
	out.Reply.AssistantReply += "\n\n" + orderSuccessMessage(res, order.Email)
	out.Order = &res
	out.Mode = domain.ModeChat
	return out, nil
}

// delegatedOrderKey derives an idempotency key from the session and the
// order content, so a model repeating the same order does not duplicate it.
func delegatedOrderKey(sessionID string, order *domain.ValidatedOrder) string {
	b, _ := json.Marshal(order)
	sum := sha256.Sum256(append([]byte(sessionID+"\x00"), b...))
	return "delegated:" + hex.EncodeToString(sum[:])
}
