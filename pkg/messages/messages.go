package messages

// ActionRequest is the body accepted by the switcher's invoke endpoint
type ActionRequest struct {
	Action string `json:"action"`
}

// StatusResponse is returned when the controller completes
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned when the controller fails.
// Stage and Applied are only set for update failures.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Stage   string   `json:"stage,omitempty"`
	Applied []string `json:"applied,omitempty"`
}

const (
	ErrorKindConfiguration = "configuration"
	ErrorKindUpdateFailed  = "update_failed"
	ErrorKindBadRequest    = "bad_request"
	ErrorKindInternal      = "internal"
)
