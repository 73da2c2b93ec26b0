package reviews

import (
	"time"

	"github.com/platinummonkey/verdict/pkg/auth"
)

// Review is one user's scored opinion of a title
type Review struct {
	ID       int64     `json:"id"`
	TitleID  int64     `json:"-"`
	AuthorID int64     `json:"-"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	Score    int       `json:"score"`
	PubDate  time.Time `json:"pub_date"`
}

// OwnerID implements rbac.Owned
func (r *Review) OwnerID() int64 {
	return r.AuthorID
}

// Comment is a reply to a review
type Comment struct {
	ID       int64     `json:"id"`
	ReviewID int64     `json:"-"`
	AuthorID int64     `json:"-"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	PubDate  time.Time `json:"pub_date"`
}

// OwnerID implements rbac.Owned
func (c *Comment) OwnerID() int64 {
	return c.AuthorID
}

// ReviewInput is a review write payload; author and title always come from the request context
type ReviewInput struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

// CommentInput is a comment write payload
type CommentInput struct {
	Text *string `json:"text"`
}

// Page is a limit/offset window
type Page struct {
	Limit  int
	Offset int
}

// ValidationContext carries what review validation needs beyond the payload
type ValidationContext struct {
	Method  string
	TitleID int64
	Actor   *auth.Actor
}
