package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ListResponse struct {
	OK     bool `json:"ok"`
	Data   any  `json:"data"`
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
}

// WebhookAck is returned to Paystack for every accepted delivery.
type WebhookAck struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}
