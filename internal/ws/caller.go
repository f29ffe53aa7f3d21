package ws

import "context"

// AcceptingCaller acknowledges every service call without forwarding
// it anywhere. It stands in until a real upstream proxy is wired.
type AcceptingCaller struct{}

func (AcceptingCaller) CallService(ctx context.Context, clientID string, call CallServicePayload) (any, error) {
	return map[string]any{
		"domain":  call.Domain,
		"service": call.Service,
		"status":  "accepted",
	}, nil
}
