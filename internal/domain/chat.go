package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Mode is the conversational mode a turn runs in.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeCheckout Mode = "checkout"
)

// Message is one entry of the client-owned conversation history. Assistant
// messages may echo the product cards they suggested so later turns can
// recover what the customer was looking at.
type Message struct {
	Role     Role         `json:"role"`
	Content  string       `json:"content"`
	Products []ProductRef `json:"products,omitempty"`
}

// CompletionRequest is everything the model client needs for one call.
type CompletionRequest struct {
	APIKey   string
	Model    string
	System   string
	History  []Message
	JSONMode bool
}

// ParsedReply is the normalized result of interpreting raw model output.
type ParsedReply struct {
	AssistantReply  string          `json:"assistant_reply"`
	Products        []ProductCard   `json:"products"`
	Order           *ValidatedOrder `json:"order"`
	SuggestCheckout bool            `json:"suggest_checkout"`
}
