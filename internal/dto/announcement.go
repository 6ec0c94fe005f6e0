package dto

import (
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// ReviewPostedRequest is sent by the review module when a place is reviewed
type ReviewPostedRequest struct {
	OwnerID  string `json:"owner_id" binding:"required"`
	ReviewID string `json:"review_id" binding:"required"`
	PlaceID  string `json:"place_id" binding:"required"`
	AuthorID string `json:"author_id" binding:"required"`
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
}

// ToReviewData converts the request into notification data
func (r *ReviewPostedRequest) ToReviewData() *domain.ReviewData {
	return &domain.ReviewData{
		ReviewID: r.ReviewID,
		PlaceID:  r.PlaceID,
		Rating:   r.Rating,
		AuthorID: r.AuthorID,
	}
}

// BroadcastRequest is a system message for a list of users
type BroadcastRequest struct {
	BroadcastID string   `json:"broadcast_id" binding:"required"`
	Recipients  []string `json:"recipients" binding:"required,min=1"`
	Severity    string   `json:"severity" binding:"required,oneof=info warning critical"`
	Title       string   `json:"title" binding:"required"`
	Body        string   `json:"body"`
	URL         string   `json:"url"`
}

// ToSystemData converts the request into notification data
func (r *BroadcastRequest) ToSystemData() *domain.SystemData {
	return &domain.SystemData{
		Severity: r.Severity,
		URL:      r.URL,
		Title:    r.Title,
		Body:     r.Body,
	}
}

// AnnouncementResponse acknowledges an accepted event
type AnnouncementResponse struct {
	EventID    string    `json:"event_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Recipients int       `json:"recipients"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// FromEvent converts a published event. A nil event was accepted but produced nothing.
func FromEvent(event *domain.Event) *AnnouncementResponse {
	resp := &AnnouncementResponse{AcceptedAt: time.Now().UTC()}
	if event == nil {
		return resp
	}
	resp.EventID = event.ID
	resp.Kind = string(event.Kind)
	resp.Recipients = 1
	if event.IsBroadcast() {
		resp.Recipients = len(event.Recipients)
	}
	return resp
}
