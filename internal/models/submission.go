package models

// SubmissionResult representa o resultado discriminado de uma entrega
// ao webservice da operadora
type SubmissionResult struct {
	Success        bool     `json:"success"`
	ProtocolNumber *string  `json:"protocol_number,omitempty"`
	Message        string   `json:"message"`
	RawResponse    string   `json:"raw_response"`
	HTTPStatus     int      `json:"http_status"`
	Errors         []string `json:"errors,omitempty"`
}
