package ws

import (
	"encoding/json"
	"time"
)

// Frame types carried over the realtime channel.
const (
	FrameConnected         = "connected"
	FrameAuth              = "auth"
	FrameAuthOK            = "auth_ok"
	FramePing              = "ping"
	FramePong              = "pong"
	FrameSubscribeEntities = "subscribe_entities"
	FrameSubscribed        = "subscribed"
	FrameCallService       = "call_service"
	FrameServiceCallResult = "service_call_result"
	FrameEntityUpdate      = "entity_update"
	FrameError             = "error"
)

type Frame struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type AuthPayload struct {
	ClientID    string `json:"client_id"`
	Certificate string `json:"certificate"`
}

type SubscribeEntitiesPayload struct {
	EntityIDs []string `json:"entity_ids,omitempty"`
}

type CallServicePayload struct {
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      map[string]any `json:"target,omitempty"`
}

type ServiceCallResultPayload struct {
	Success bool `json:"success"`
	Result  any  `json:"result,omitempty"`
}

type EntityUpdatePayload struct {
	EntityID string         `json:"entity_id"`
	State    map[string]any `json:"state"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewFrame(frameType string, payload any) Frame {
	frame := Frame{
		Type:      frameType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, _ := json.Marshal(payload)
		frame.Payload = data
	}
	return frame
}

func ErrorFrame(message string) Frame {
	return NewFrame(FrameError, ErrorPayload{Error: message})
}
