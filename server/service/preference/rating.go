package preference

import (
	"math"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
)

// MaxHalfStars is a five star rating expressed in half stars.
const MaxHalfStars HalfStars = 10

// HalfStars is a rating counted in half stars, 1 (0.5) through 10 (5.0).
type HalfStars int

// Float returns the rating in stars.
func (h HalfStars) Float() float64 {
	return float64(h) / 2
}

// HalfStarsOf converts a stored star rating, rounding to the nearest half star.
func HalfStarsOf(rating float64) HalfStars {
	return HalfStars(math.Round(rating * 2))
}

// Mutation is a change to a single game's rating: either RateMutation or ClearMutation.
type Mutation interface {
	isMutation()
}

// RateMutation sets the rating of a game.
type RateMutation struct {
	Stars HalfStars
}

// ClearMutation removes the rating of a game.
type ClearMutation struct{}

func (RateMutation) isMutation()  {}
func (ClearMutation) isMutation() {}

// ParseRating turns a client supplied rating into a mutation. Zero clears the rating.
func ParseRating(rating float64) (Mutation, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	stars := HalfStarsOf(rating)
	if stars == 0 {
		return ClearMutation{}, nil
	}
	return RateMutation{Stars: stars}, nil
}

func validateRating(rating float64) error {
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return apperrors.InvalidArgument("Rating must be a number")
	}
	if rating < 0 || rating > MaxHalfStars.Float() {
		return apperrors.InvalidArgument("Rating must be between 0 and 5")
	}
	if doubled := rating * 2; doubled != math.Trunc(doubled) {
		return apperrors.InvalidArgument("Rating must be in half-star increments")
	}
	return nil
}
