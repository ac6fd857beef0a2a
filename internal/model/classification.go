package model

// ClassificationRecord is one record pulled from the classification service.
// The upstream priority scale is 1..10 and is mapped with MapPriority before
// persistence.
type ClassificationRecord struct {
	ClsID    string `json:"cls_id"`
	MsgID    string `json:"msg_id"`
	Label    Label  `json:"label"`
	Priority int    `json:"priority"`
}

func (r *ClassificationRecord) Validate() error {
	if r.ClsID == "" {
		return &ValidationError{Field: "cls_id", Reason: "must not be empty"}
	}
	if r.MsgID == "" {
		return &ValidationError{Field: "msg_id", Reason: "must not be empty"}
	}
	if !r.Label.Known() {
		return &ValidationError{Field: "label", Reason: "must be one of todo, followup, noise"}
	}
	if r.Priority < 1 || r.Priority > 10 {
		return &ValidationError{Field: "priority", Reason: "must be in [1,10]"}
	}
	return nil
}

// EnrichedMessage is the best-effort message lookup result from the message
// service. Lookup failure yields the zero value with Type email.
type EnrichedMessage struct {
	Sender  string      `json:"sender"`
	Subject *string     `json:"subject,omitempty"`
	Body    *string     `json:"body,omitempty"`
	Type    MessageType `json:"type"`
}

// IncomingMessage is one pre-classified message delivered through the webhook
// or the message queue. Unlike ClassificationRecord it carries the free-form
// task text that the normalization heuristics operate on.
type IncomingMessage struct {
	ID             string      `json:"id"`
	Type           MessageType `json:"type"`
	Subject        *string     `json:"subject,omitempty"`
	Sender         string      `json:"sender"`
	Classification Label       `json:"classification"`
	Task           string      `json:"task"`
	Priority       int         `json:"priority"`
}

func (m *IncomingMessage) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if m.Type != "" {
		if _, err := ParseMessageType(string(m.Type)); err != nil {
			return err
		}
	}
	if m.Task == "" {
		return &ValidationError{Field: "task", Reason: "must not be empty"}
	}
	if m.Priority < 1 || m.Priority > 10 {
		return &ValidationError{Field: "priority", Reason: "must be in [1,10]"}
	}
	return nil
}
