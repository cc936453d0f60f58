package model

import (
	"strings"
	"time"

	"github.com/iliyamo/title-reviews/internal/apperr"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Review represents a row in the `reviews` table.  An author may review a
// given title at most once.
//
// Fields:
//  ID       – primary key identifier.
//  TitleID  – reviewed title.
//  AuthorID – users.id of the author.
//  Author   – username of the author (joined, read-only).
//  Text     – review body.
//  Score    – integer in MinScore..MaxScore.
//  PubDate  – set once on creation.
type Review struct {
	ID       uint64    // reviews.id
	TitleID  uint64    // reviews.title_id
	AuthorID uint64    // reviews.author_id
	Author   string    // users.username
	Text     string    // reviews.text
	Score    int       // reviews.score
	PubDate  time.Time // reviews.pub_date
}

// Comment represents a row in the `comments` table.
type Comment struct {
	ID       uint64    // comments.id
	ReviewID uint64    // comments.review_id
	AuthorID uint64    // comments.author_id
	Author   string    // users.username
	Text     string    // comments.text
	PubDate  time.Time // comments.pub_date
}

// ValidateScore rejects scores outside MinScore..MaxScore (inclusive).
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.Validation("score", "score must be between 1 and 10")
	}
	return nil
}

// ValidateText rejects blank review/comment bodies.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Validation("text", "text is required")
	}
	return nil
}
