package models

// SourceUserProfile marks user-based results.
const SourceUserProfile = "user-profile"

// MessageNoActivity is returned with an empty result when a user has no usable activity.
const MessageNoActivity = "no activity found for user"

// Recommendation is one ranked result.
type Recommendation struct {
	ID      int64          `json:"id"`
	Score   float64        `json:"score"`
	Payload ProductPayload `json:"payload"`
}

// ProductRecommendations is the response for similar-product recommendations.
type ProductRecommendations struct {
	ProductID       int64            `json:"product_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Error           string           `json:"error,omitempty"`
}

// UserRecommendations is the response for user-profile recommendations.
type UserRecommendations struct {
	UserID          int64            `json:"user_id"`
	Source          string           `json:"source"`
	Recommendations []Recommendation `json:"recommendations"`
	Message         string           `json:"message,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// CategoryWeight is one entry of a user's category preferences.
type CategoryWeight struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
}

// ProfileExplanation describes how a user's profile was derived.
type ProfileExplanation struct {
	UserID                 int64            `json:"user_id"`
	Purchases              []int64          `json:"purchases"`
	Views                  []int64          `json:"views"`
	Excluded               []int64          `json:"excluded"`
	RepresentativeProducts []int64          `json:"representative_products"`
	CategoryPreferences    []CategoryWeight `json:"category_preferences"`
	PreferredTags          []string         `json:"preferred_tags"`
	HasProfileVector       bool             `json:"has_profile_vector"`
}
