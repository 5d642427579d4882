package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"skillswap_server/services"
)

// RatingController serves partner ratings.
type RatingController struct {
	Ratings *services.RatingService
	Timeout time.Duration
	Log     *zap.Logger
}

// NewRatingController initializes the rating controller
func NewRatingController(ratings *services.RatingService, timeout time.Duration, log *zap.Logger) *RatingController {
	return &RatingController{Ratings: ratings, Timeout: timeout, Log: log}
}

// Rate records the caller's rating of the member in the path.
func (c *RatingController) Rate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stars int `json:"stars" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	rating, err := c.Ratings.Rate(ctx, ActorFrom(r.Context()), mux.Vars(r)["memberId"], req.Stars)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// Summary returns the member's average rating and rating count.
func (c *RatingController) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	summary, err := c.Ratings.Summary(ctx, mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
