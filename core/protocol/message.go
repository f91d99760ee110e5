package protocol

import "errors"

// InferenceRequest asks a peer to run one prompt through its local model.
// Model is optional; the serving peer falls back to its configured default.
type InferenceRequest struct {
	Prompt string  `json:"prompt"`
	Model  *string `json:"model,omitempty"`
}

// InferenceResponse carries the outcome of one request. Success and Error are
// mutually consistent: a successful response never carries an error message,
// and a failed one always does.
type InferenceResponse struct {
	Text    string  `json:"text"`
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
}

// ModelOr returns the requested model, or def when the request left it unset.
func (r InferenceRequest) ModelOr(def string) string {
	if r.Model == nil || *r.Model == "" {
		return def
	}
	return *r.Model
}

func NewSuccess(text string) InferenceResponse {
	return InferenceResponse{Text: text, Success: true}
}

func NewFailure(reason string) InferenceResponse {
	return InferenceResponse{Success: false, Error: &reason}
}

// Result collapses the response into the usual Go shape: the answer text on
// success, an error otherwise. A failed response that arrives without an error
// message still yields a non-nil error.
func (r InferenceResponse) Result() (string, error) {
	if r.Success {
		return r.Text, nil
	}
	if r.Error != nil {
		return "", errors.New(*r.Error)
	}
	return "", errors.New("unknown error")
}
