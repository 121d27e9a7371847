package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// MessageModel is the serializable form of a Message. Message itself carries
// interface-typed parts and cannot round-trip through encoding/json directly.
type MessageModel struct {
	Role  Role        `json:"role"`
	Parts []PartModel `json:"parts"`
}

// PartModel is the serializable form of one ContentPart.
type PartModel struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

const (
	partTypeText         = "text"
	partTypeToolCall     = "tool_call"
	partTypeToolResponse = "tool_response"
)

// ConvertMessageToModel converts a Message to its serializable form.
func ConvertMessageToModel(m Message) MessageModel {
	model := MessageModel{
		Role:  m.Role,
		Parts: make([]PartModel, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case TextContent:
			model.Parts = append(model.Parts, PartModel{
				Type: partTypeText,
				Text: typ.Text,
			})
		case ToolCall:
			tc := typ
			model.Parts = append(model.Parts, PartModel{
				Type:     partTypeToolCall,
				ToolCall: &tc,
			})
		case ToolCallResponse:
			tr := typ
			model.Parts = append(model.Parts, PartModel{
				Type:         partTypeToolResponse,
				ToolResponse: &tr,
			})
		}
	}
	return model
}

// ConvertModelToMessage converts the serializable form back to a Message.
func ConvertModelToMessage(model MessageModel) (Message, error) {
	msg := Message{
		Role:  model.Role,
		Parts: make([]ContentPart, 0, len(model.Parts)),
	}
	for _, p := range model.Parts {
		switch p.Type {
		case partTypeText:
			msg.Parts = append(msg.Parts, TextContent{Text: p.Text})
		case partTypeToolCall:
			if p.ToolCall == nil {
				return Message{}, errors.New("tool_call part without tool_call payload")
			}
			msg.Parts = append(msg.Parts, *p.ToolCall)
		case partTypeToolResponse:
			if p.ToolResponse == nil {
				return Message{}, errors.New("tool_response part without tool_response payload")
			}
			msg.Parts = append(msg.Parts, *p.ToolResponse)
		default:
			return Message{}, errors.Newf("unsupported part type: %s", p.Type)
		}
	}
	return msg, nil
}

// MarshalMessage serializes a Message to JSON.
func MarshalMessage(m Message) ([]byte, error) {
	data, err := json.Marshal(ConvertMessageToModel(m))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

// UnmarshalMessage deserializes a Message from JSON.
func UnmarshalMessage(data []byte) (Message, error) {
	var model MessageModel
	if err := json.Unmarshal(data, &model); err != nil {
		return Message{}, errors.Wrap(err, "failed to unmarshal message")
	}
	return ConvertModelToMessage(model)
}
