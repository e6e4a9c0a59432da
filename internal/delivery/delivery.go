// Package delivery talks to the chat platform: scheduling future announce
// messages, cancelling them, and replacing interactive responses.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// ErrScheduledMessageNotFound is returned by CancelScheduled when the remote
// side no longer knows the message, e.g. because it already fired. Callers
// are expected to treat this as benign.
var ErrScheduledMessageNotFound = errors.New("scheduled message not found")

// Delivery is the outbound message interface consumed by the core services.
type Delivery interface {
	// ScheduleMessage schedules msg for delivery to the tenant's channel
	// at the given instant and returns the remote message id.
	ScheduleMessage(ctx context.Context, tenant *model.Tenant, at time.Time, msg Message) (string, error)

	// CancelScheduled cancels a previously scheduled message.
	CancelScheduled(ctx context.Context, tenant *model.Tenant, messageID string) error

	// PushReplacement replaces an earlier interactive response via its
	// response URL.
	PushReplacement(ctx context.Context, responseURL string, msg Message) error
}

// Message is a chat message payload in Slack block format.
type Message struct {
	Text            string  `json:"text,omitempty"`
	Blocks          []Block `json:"blocks,omitempty"`
	ReplaceOriginal bool    `json:"replace_original,omitempty"`
	ResponseType    string  `json:"response_type,omitempty"`
}

// Block is a single layout block.
type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Elements []Element `json:"elements,omitempty"`
	Fields   []Text    `json:"fields,omitempty"`
}

// Text is a composition text object.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Element is an interactive element inside an actions block.
type Element struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Value    string `json:"value,omitempty"`
	Style    string `json:"style,omitempty"`
}

// ClickActionID identifies the wild button in interaction payloads.
const ClickActionID = "wild_button"

// AnnounceMessage builds the button announcement. The button's value carries
// the event uuid, which doubles as the race's zero-time baseline.
func AnnounceMessage(uuid string) Message {
	return Message{
		Text: "A wild BUTTON appears!",
		Blocks: []Block{
			{
				Type: "section",
				Text: &Text{Type: "mrkdwn", Text: "*A wild BUTTON appears!*"},
			},
			{
				Type: "actions",
				Elements: []Element{
					{
						Type:     "button",
						Text:     &Text{Type: "plain_text", Text: "Click it!", Emoji: true},
						ActionID: ClickActionID,
						Value:    uuid,
						Style:    "primary",
					},
				},
			},
		},
	}
}

// DeterminingMessage replaces the button while the runner-up window elapses.
func DeterminingMessage() Message {
	return Message{
		Text: "A wild BUTTON appears!",
		Blocks: []Block{
			{
				Type: "section",
				Text: &Text{Type: "mrkdwn", Text: "*A wild BUTTON appears!*"},
			},
			{
				Type: "section",
				Text: &Text{Type: "mrkdwn", Text: ":hourglass_flowing_sand: Determining the winner..."},
			},
		},
	}
}

// OutcomeMessage carries the settled race result: the winner line and, when
// there were runners-up, their clause.
func OutcomeMessage(winnerLine, runnersUpLine string) Message {
	blocks := []Block{
		{
			Type: "section",
			Text: &Text{Type: "mrkdwn", Text: "*A wild BUTTON appears!*"},
		},
		{
			Type: "section",
			Text: &Text{Type: "mrkdwn", Text: winnerLine},
		},
	}
	if runnersUpLine != "" {
		blocks = append(blocks, Block{
			Type: "section",
			Text: &Text{Type: "mrkdwn", Text: runnersUpLine},
		})
	}
	return Message{
		Text:   "A wild BUTTON appears!",
		Blocks: blocks,
	}
}
