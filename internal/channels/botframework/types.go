package botframework

// ChannelAccount identifies a user or bot on the Bot Framework side.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Activity is one inbound event from the bot platform. Only the fields
// the gateway consumes are modeled; Recipient stays untyped because the
// platform sends either an account object or a bare id and the value is
// echoed back verbatim as the reply's "from".
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	Text         string              `json:"text,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    any                 `json:"recipient,omitempty"`
	Conversation ConversationAccount `json:"conversation"`
	ServiceURL   string              `json:"serviceUrl"`
	Attachments  []any               `json:"attachments,omitempty"`
}

const heroCardContentType = "application/vnd.microsoft.card.hero"
