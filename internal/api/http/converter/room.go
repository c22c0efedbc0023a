package converter

import (
	"time"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/internal/service"
)

type RoomResponse struct {
	ID         string            `json:"id"`
	VideoUsers []UserResponse    `json:"video_users"`
	ChatUsers  []UserResponse    `json:"chat_users"`
	Messages   []MessageResponse `json:"messages"`
	CreatedAt  time.Time         `json:"created_at"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomSummaryResponse struct {
	ID           string    `json:"id"`
	VideoCount   int       `json:"video_count"`
	ChatCount    int       `json:"chat_count"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func RoomToApi(r domain.RoomSnapshot) *RoomResponse {
	messages := make([]MessageResponse, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, MessageResponse{
			ID:        m.ID.String(),
			Identity:  m.Identity,
			Text:      m.Text,
			Timestamp: m.CreatedAt,
		})
	}

	return &RoomResponse{
		ID:         r.ID,
		VideoUsers: usersToApi(r.VideoUsers),
		ChatUsers:  usersToApi(r.ChatUsers),
		Messages:   messages,
		CreatedAt:  r.CreatedAt,
	}
}

func SummariesToApi(rooms []service.RoomSummary) []RoomSummaryResponse {
	out := make([]RoomSummaryResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomSummaryResponse{
			ID:           r.ID,
			VideoCount:   r.VideoCount,
			ChatCount:    r.ChatCount,
			MessageCount: r.MessageCount,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}

func usersToApi(users []domain.UserEntry) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{ID: u.ID, Identity: u.Name})
	}
	return out
}

type ICEServerResponse struct {
	URLs []string `json:"urls"`
}

type ICEConfigResponse struct {
	ICEServers []ICEServerResponse `json:"ice_servers"`
}

func ICEServersToApi(stunServers []string) ICEConfigResponse {
	resp := ICEConfigResponse{ICEServers: make([]ICEServerResponse, 0, 1)}
	if len(stunServers) > 0 {
		resp.ICEServers = append(resp.ICEServers, ICEServerResponse{URLs: append([]string(nil), stunServers...)})
	}
	return resp
}
