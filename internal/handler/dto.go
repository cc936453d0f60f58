package handler

import (
	"time"

	"github.com/iliyamo/title-reviews/internal/model"
)

// ----- requests -----

type signupReq struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

type tokenReq struct {
	Username         string `json:"username" validate:"required,max=150"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

type userPatchReq struct {
	Username  *string `json:"username" validate:"omitempty,max=150,username"`
	Email     *string `json:"email" validate:"omitempty,max=254,email"`
	Role      *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	Bio       *string `json:"bio"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

func (r userPatchReq) patch() model.UserPatch {
	p := model.UserPatch{
		Username:  r.Username,
		Email:     r.Email,
		Bio:       r.Bio,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
	if r.Role != nil {
		role := model.Role(*r.Role)
		p.Role = &role
	}
	return p
}

type userCreateReq struct {
	Username  string `json:"username" validate:"required,max=150,username"`
	Email     string `json:"email" validate:"required,max=254,email"`
	Role      string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	Bio       string `json:"bio"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type catalogEntryReq struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"omitempty,max=50,slug"`
}

type titleReq struct {
	Name        string   `json:"name" validate:"required,max=256"`
	Year        int      `json:"year" validate:"required"`
	Description string   `json:"description"`
	Genre       []string `json:"genre" validate:"dive,slug"`
	Category    string   `json:"category" validate:"omitempty,slug"`
}

type titlePatchReq struct {
	Name        *string   `json:"name" validate:"omitempty,max=256"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Genre       *[]string `json:"genre" validate:"omitempty,dive,slug"`
	Category    *string   `json:"category" validate:"omitempty,slug"`
}

type reviewReq struct {
	Text  string `json:"text" validate:"required"`
	Score int    `json:"score" validate:"required"`
}

type reviewPatchReq struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

type commentReq struct {
	Text string `json:"text" validate:"required"`
}

type commentPatchReq struct {
	Text *string `json:"text"`
}

// ----- responses -----

type signupResp struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userResp struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

func toUser(u *model.User) userResp {
	return userResp{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      string(u.Role),
	}
}

type entryResp struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func toCategory(c *model.Category) entryResp { return entryResp{Name: c.Name, Slug: c.Slug} }

func toGenre(g *model.Genre) entryResp { return entryResp{Name: g.Name, Slug: g.Slug} }

type titleResp struct {
	ID          uint64      `json:"id"`
	Name        string      `json:"name"`
	Year        int         `json:"year"`
	Rating      *int        `json:"rating"`
	Description string      `json:"description"`
	Genre       []entryResp `json:"genre"`
	Category    *entryResp  `json:"category"`
}

func toTitle(t *model.Title) titleResp {
	out := titleResp{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Rating:      t.Rating,
		Description: t.Description,
		Genre:       make([]entryResp, 0, len(t.Genres)),
	}
	for i := range t.Genres {
		out.Genre = append(out.Genre, toGenre(&t.Genres[i]))
	}
	if t.Category != nil {
		c := toCategory(t.Category)
		out.Category = &c
	}
	return out
}

type reviewResp struct {
	ID      uint64    `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

func toReview(r *model.Review) reviewResp {
	return reviewResp{ID: r.ID, Text: r.Text, Author: r.Author, Score: r.Score, PubDate: r.PubDate}
}

type commentResp struct {
	ID      uint64    `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	PubDate time.Time `json:"pub_date"`
}

func toComment(c *model.Comment) commentResp {
	return commentResp{ID: c.ID, Text: c.Text, Author: c.Author, PubDate: c.PubDate}
}
