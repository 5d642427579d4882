package models

import "time"

// Rating stars
const (
	MinStars = 1
	MaxStars = 5
)

// Rating is one member's score for a partner. A rater holds at most one rating per partner;
// rating again replaces it.
type Rating struct {
	MemberID string    `dynamodbav:"memberId" json:"memberId"` // Partition Key: the rated member
	RatedBy  string    `dynamodbav:"ratedBy" json:"ratedBy"`   // Sort Key
	Stars    int       `dynamodbav:"stars" json:"stars"`
	At       time.Time `dynamodbav:"at" json:"at"`
}

// RatingSummary is the aggregate shown on a member's profile.
type RatingSummary struct {
	MemberID string  `json:"memberId"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// Summarize averages ratings for one member. No ratings gives a zero average.
func Summarize(memberID string, ratings []Rating) RatingSummary {
	sum := RatingSummary{MemberID: memberID, Count: len(ratings)}
	if len(ratings) == 0 {
		return sum
	}
	total := 0
	for _, r := range ratings {
		total += r.Stars
	}
	sum.Average = float64(total) / float64(len(ratings))
	return sum
}
