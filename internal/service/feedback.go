package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
	"github.com/iliyamo/title-reviews/internal/repository"
)

var errDuplicateReview = apperr.Conflict("you have already reviewed this title")

// timeResolution matches the DATETIME column so stored and returned
// pub dates agree.
const timeResolution = time.Second

// requireTitle reports NotFound for an unknown title id.
func (s *Service) requireTitle(ctx context.Context, titleID uint64) error {
	_, err := s.titles.GetByID(ctx, titleID)
	return storeErr(err, "title")
}

// ListReviews returns a page of a title's reviews, newest first.  A
// non-empty author restricts the page to that username.
func (s *Service) ListReviews(ctx context.Context, a policy.Actor, titleID uint64, author string, page model.Page) (List[*model.Review], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceReview)); err != nil {
		return List[*model.Review]{}, err
	}
	if err := s.requireTitle(ctx, titleID); err != nil {
		return List[*model.Review]{}, err
	}
	page = s.page(page)
	items, total, err := s.reviews.ListByTitle(ctx, titleID, author, page)
	if err != nil {
		return List[*model.Review]{}, storeErr(err, "review")
	}
	return newList(items, total, page), nil
}

// GetReview returns a review of titleID.
func (s *Service) GetReview(ctx context.Context, a policy.Actor, titleID, id uint64) (*model.Review, error) {
	if err := s.authorize(ctx, a, policy.ActionRetrieve, policy.On(policy.ResourceReview)); err != nil {
		return nil, err
	}
	rv, err := s.reviews.Get(ctx, titleID, id)
	return rv, storeErr(err, "review")
}

// CreateReview publishes the actor's review of titleID.  A second review
// by the same author is rejected by a pre-check and, for concurrent
// requests, by the store's uniqueness constraint.
func (s *Service) CreateReview(ctx context.Context, a policy.Actor, titleID uint64, text string, score int) (*model.Review, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceReview)); err != nil {
		return nil, err
	}
	if err := validateReview(text, score); err != nil {
		return nil, err
	}
	if err := s.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	exists, err := s.reviews.Exists(ctx, titleID, a.UserID)
	if err != nil {
		return nil, storeErr(err, "review")
	}
	if exists {
		return nil, errDuplicateReview
	}

	rv := &model.Review{
		TitleID:  titleID,
		AuthorID: a.UserID,
		Author:   a.Username,
		Text:     text,
		Score:    score,
		PubDate:  s.now().UTC().Truncate(timeResolution),
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errDuplicateReview
		}
		return nil, storeErr(err, "title")
	}
	s.metrics.IncrementReviewsCreated()
	return rv, nil
}

// ReviewPatch is a partial update of a review.
type ReviewPatch struct {
	Text  *string
	Score *int
}

// loadOwned fetches a resource for a write, checking authentication first
// so anonymous callers learn nothing about existence.
func loadOwned[T any](ctx context.Context, s *Service, a policy.Actor, act policy.Action, res policy.Resource,
	load func() (T, uint64, error)) (T, error) {
	var zero T
	if !a.IsAuthenticated() {
		return zero, s.authorize(ctx, a, act, policy.On(res))
	}
	v, owner, err := load()
	if err != nil {
		return zero, err
	}
	if err := s.authorize(ctx, a, act, policy.Owned(res, owner)); err != nil {
		return zero, err
	}
	return v, nil
}

func (s *Service) ownedReview(ctx context.Context, a policy.Actor, act policy.Action, titleID, id uint64) (*model.Review, error) {
	return loadOwned(ctx, s, a, act, policy.ResourceReview, func() (*model.Review, uint64, error) {
		rv, err := s.reviews.Get(ctx, titleID, id)
		if err != nil {
			return nil, 0, storeErr(err, "review")
		}
		return rv, rv.AuthorID, nil
	})
}

// UpdateReview edits text and/or score.  Allowed for the author and for
// moderators and admins.
func (s *Service) UpdateReview(ctx context.Context, a policy.Actor, titleID, id uint64, patch ReviewPatch) (*model.Review, error) {
	rv, err := s.ownedReview(ctx, a, policy.ActionUpdate, titleID, id)
	if err != nil {
		return nil, err
	}
	if patch.Text != nil {
		rv.Text = *patch.Text
	}
	if patch.Score != nil {
		rv.Score = *patch.Score
	}
	if err := validateReview(rv.Text, rv.Score); err != nil {
		return nil, err
	}
	if err := s.reviews.Update(ctx, rv); err != nil {
		return nil, storeErr(err, "review")
	}
	return rv, nil
}

// DeleteReview removes a review and its comments.
func (s *Service) DeleteReview(ctx context.Context, a policy.Actor, titleID, id uint64) error {
	rv, err := s.ownedReview(ctx, a, policy.ActionDelete, titleID, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, rv.ID); err != nil {
		return storeErr(err, "review")
	}
	if rv.AuthorID != a.UserID {
		s.logger.InfoContext(ctx, "review removed by moderator",
			"review_id", rv.ID,
			"author", rv.Author,
			"by", a.Username,
		)
	}
	return nil
}

func validateReview(text string, score int) error {
	fields := map[string]string{}
	if err := model.ValidateText(text); err != nil {
		fields["text"] = err.(*apperr.Error).Message
	}
	if err := model.ValidateScore(score); err != nil {
		fields["score"] = err.(*apperr.Error).Message
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// requireReview reports NotFound unless reviewID is a review of titleID.
func (s *Service) requireReview(ctx context.Context, titleID, reviewID uint64) error {
	_, err := s.reviews.Get(ctx, titleID, reviewID)
	return storeErr(err, "review")
}

// ListComments returns a page of a review's comments, newest first.
func (s *Service) ListComments(ctx context.Context, a policy.Actor, titleID, reviewID uint64, page model.Page) (List[*model.Comment], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceComment)); err != nil {
		return List[*model.Comment]{}, err
	}
	if err := s.requireReview(ctx, titleID, reviewID); err != nil {
		return List[*model.Comment]{}, err
	}
	page = s.page(page)
	items, total, err := s.comments.ListByReview(ctx, reviewID, page)
	if err != nil {
		return List[*model.Comment]{}, storeErr(err, "comment")
	}
	return newList(items, total, page), nil
}

// GetComment returns a comment on reviewID, itself a review of titleID.
func (s *Service) GetComment(ctx context.Context, a policy.Actor, titleID, reviewID, id uint64) (*model.Comment, error) {
	if err := s.authorize(ctx, a, policy.ActionRetrieve, policy.On(policy.ResourceComment)); err != nil {
		return nil, err
	}
	if err := s.requireReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	c, err := s.comments.Get(ctx, reviewID, id)
	return c, storeErr(err, "comment")
}

// CreateComment adds the actor's comment to a review.
func (s *Service) CreateComment(ctx context.Context, a policy.Actor, titleID, reviewID uint64, text string) (*model.Comment, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceComment)); err != nil {
		return nil, err
	}
	if err := model.ValidateText(text); err != nil {
		return nil, err
	}
	if err := s.requireReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	c := &model.Comment{
		ReviewID: reviewID,
		AuthorID: a.UserID,
		Author:   a.Username,
		Text:     text,
		PubDate:  s.now().UTC().Truncate(timeResolution),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, storeErr(err, "review")
	}
	return c, nil
}

func (s *Service) ownedComment(ctx context.Context, a policy.Actor, act policy.Action, titleID, reviewID, id uint64) (*model.Comment, error) {
	return loadOwned(ctx, s, a, act, policy.ResourceComment, func() (*model.Comment, uint64, error) {
		if err := s.requireReview(ctx, titleID, reviewID); err != nil {
			return nil, 0, err
		}
		c, err := s.comments.Get(ctx, reviewID, id)
		if err != nil {
			return nil, 0, storeErr(err, "comment")
		}
		return c, c.AuthorID, nil
	})
}

// UpdateComment edits the text of a comment.
func (s *Service) UpdateComment(ctx context.Context, a policy.Actor, titleID, reviewID, id uint64, text *string) (*model.Comment, error) {
	c, err := s.ownedComment(ctx, a, policy.ActionUpdate, titleID, reviewID, id)
	if err != nil {
		return nil, err
	}
	if text != nil {
		if err := model.ValidateText(*text); err != nil {
			return nil, err
		}
		c.Text = *text
	}
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, storeErr(err, "comment")
	}
	return c, nil
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, a policy.Actor, titleID, reviewID, id uint64) error {
	c, err := s.ownedComment(ctx, a, policy.ActionDelete, titleID, reviewID, id)
	if err != nil {
		return err
	}
	return storeErr(s.comments.Delete(ctx, c.ID), "comment")
}
