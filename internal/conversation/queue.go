package conversation

import "context"

// Queue transports serialized conversation jobs between the HTTP layer and
// the dispatcher workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received queue entry.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeStart    jobType = "start"
	jobTypeTurn     jobType = "turn"
	jobTypeFollowup jobType = "followup"
)

// FollowupAction selects one of the channel-choice operations.
type FollowupAction string

const (
	FollowupBook  FollowupAction = "book"
	FollowupEmail FollowupAction = "email"
	FollowupBack  FollowupAction = "back"
)

type startJob struct {
	OrgID string `json:"org_id"`
}

type turnJob struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type followupJob struct {
	SessionID string         `json:"session_id"`
	Action    FollowupAction `json:"action"`
	Email     string         `json:"email,omitempty"`
}

type queuePayload struct {
	ID       string       `json:"id"`
	Kind     jobType      `json:"kind"`
	Start    *startJob    `json:"start,omitempty"`
	Turn     *turnJob     `json:"turn,omitempty"`
	Followup *followupJob `json:"followup,omitempty"`
}
