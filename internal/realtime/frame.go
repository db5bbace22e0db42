package realtime

import (
	"encoding/json"

	"retroboard/internal/retro"
)

// Client to server events.
const (
	EventChangeRetroStage = "changeRetroStage"
	EventIdea             = "idea"
	EventRemoveIdea       = "removeIdea"
	EventUpdateIdea       = "updateIdea"
	EventInitPositions    = "initPositions"
	EventUpdatePosition   = "updatePosition"
	EventInitGroups       = "initGroups"
	EventUpdateGroupName  = "updateGroupName"
	EventVoteAdd          = "voteAdd"
	EventVoteSubstract    = "voteSubstract"
	EventSendActionItem   = "sendActionItem"
	EventRemoveActionItem = "removeActionItem"
	EventUpdateActionItem = "updateActionItem"
	EventUser             = "user"
	EventListRetros       = "upd"
)

// Server to client events.
const (
	EventRetroUpdated = "retroUpdated"
	EventUsers        = "users"
	EventAck          = "ack"
	EventStorage      = "storage"
	EventError        = "error"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UserData is what a connection announces about its human.
type UserData struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type StageInput struct {
	RetroID string `json:"retroId"`
	Stage   string `json:"stage"`
}

type IdeaInput struct {
	RetroID  string `json:"retroId"`
	IdeaID   string `json:"ideaId,omitempty"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

type IdeaRef struct {
	RetroID string `json:"retroId"`
	IdeaID  string `json:"ideaId"`
}

type PositionInput struct {
	RetroID  string   `json:"retroId"`
	IdeaID   string   `json:"ideaId"`
	Position Position `json:"position"`
}

type IdeaPosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type InitPositionsInput struct {
	RetroID string         `json:"retroId"`
	Ideas   []IdeaPosition `json:"ideas"`
}

type InitGroupsInput struct {
	RetroID string              `json:"retroId"`
	Groups  map[string][]string `json:"groups"`
}

type GroupNameInput struct {
	RetroID string `json:"retroId"`
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type VoteInput struct {
	RetroID string `json:"retroId"`
	GroupID string `json:"groupId"`
	Email   string `json:"email"`
}

type ActionItemInput struct {
	RetroID      string `json:"retroId"`
	ActionItemID string `json:"actionItemId,omitempty"`
	Author       string `json:"author,omitempty"`
	Assignee     string `json:"assignee"`
	Text         string `json:"text"`
}

type ActionItemRef struct {
	RetroID      string `json:"retroId"`
	ActionItemID string `json:"actionItemId"`
}

type JoinInput struct {
	RetroID string    `json:"retroId"`
	User    *UserData `json:"user"`
}

type ListRetrosInput struct {
	Email string `json:"email"`
}

type RetroUpdated struct {
	RetroID string       `json:"retroId"`
	Retro   *retro.Retro `json:"retro"`
}

type UsersSnapshot struct {
	RetroID string              `json:"retroId"`
	Users   map[string]UserData `json:"users"`
}

// Ack answers a request. Status follows HTTP codes: 200, 404, 422, 500.
type Ack struct {
	Status int          `json:"status"`
	Retro  *retro.Retro `json:"retro,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type Storage struct {
	Retros []retro.Retro `json:"retros"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newFrame(typ, requestID string, payload any) (Frame, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: typ, RequestID: requestID, Payload: b}, nil
}
