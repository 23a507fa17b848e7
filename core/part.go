package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ActionCall describes a handler's request to run one of its actions.
type ActionCall struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Request string `json:"request"`
}

// ActionCallPart wraps an ActionCall as a content part.
type ActionCallPart struct {
	ActionCall ActionCall
}

func (ActionCallPart) isPart() {}

// ActionResult describes the outcome of an action call.
type ActionResult struct {
	ID     string `json:"id"`               // Matches originating ActionCall ID
	Name   string `json:"name"`             // Action name
	Result string `json:"result,omitempty"` // Successful result text
	Error  string `json:"error,omitempty"`  // Populated on failure
}

// ActionResultPart wraps an ActionResult as a content part.
type ActionResultPart struct {
	ActionResult ActionResult
}

func (ActionResultPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // user, assistant, tool
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

const (
	partTypeText         = "text"
	partTypeActionCall   = "action_call"
	partTypeActionResult = "action_result"
)

type partJSON struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ActionCall   *ActionCall   `json:"action_call,omitempty"`
	ActionResult *ActionResult `json:"action_result,omitempty"`
}

type contentJSON struct {
	Role  string     `json:"role,omitempty"`
	Parts []partJSON `json:"parts"`
}

// MarshalJSON encodes parts with a type discriminator so durable stores can
// reconstruct the concrete part types.
func (c Content) MarshalJSON() ([]byte, error) {
	out := contentJSON{Role: c.Role, Parts: make([]partJSON, 0, len(c.Parts))}
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			out.Parts = append(out.Parts, partJSON{Type: partTypeText, Text: v.Text})
		case ActionCallPart:
			ac := v.ActionCall
			out.Parts = append(out.Parts, partJSON{Type: partTypeActionCall, ActionCall: &ac})
		case ActionResultPart:
			ar := v.ActionResult
			out.Parts = append(out.Parts, partJSON{Type: partTypeActionResult, ActionResult: &ar})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged part encoding produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var in contentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Role = in.Role
	c.Parts = make([]Part, 0, len(in.Parts))
	for _, p := range in.Parts {
		switch p.Type {
		case partTypeText:
			c.Parts = append(c.Parts, TextPart{Text: p.Text})
		case partTypeActionCall:
			if p.ActionCall == nil {
				return fmt.Errorf("action_call part without payload")
			}
			c.Parts = append(c.Parts, ActionCallPart{ActionCall: *p.ActionCall})
		case partTypeActionResult:
			if p.ActionResult == nil {
				return fmt.Errorf("action_result part without payload")
			}
			c.Parts = append(c.Parts, ActionResultPart{ActionResult: *p.ActionResult})
		default:
			return fmt.Errorf("unknown part type %q", p.Type)
		}
	}
	return nil
}
