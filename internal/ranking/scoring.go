package ranking

import (
	"cmp"
	"math"
	"slices"

	"github.com/formbricks/recommender/internal/models"
)

// ProductScore adjusts a neighbour's similarity for the product-based path.
func (p Params) ProductScore(raw float64, sameCategory bool, sharedTags int) float64 {
	score := raw
	if sameCategory {
		score += p.ProductCategoryBoost
	}

	return score + p.ProductTagBoost*float64(sharedTags)
}

// UserScore adjusts a neighbour's similarity for the user-based path.
// categoryWeight is zero when the candidate's category is not preferred.
func (p Params) UserScore(raw, categoryWeight, maxCategoryWeight float64, sharedTags int) float64 {
	score := raw
	if categoryWeight > 0 && maxCategoryWeight > 0 {
		score *= 1.0 + p.UserCategoryMultiplier*(categoryWeight/maxCategoryWeight)
		score += p.UserCategoryBonus
	}

	return score + p.UserTagBoost*float64(sharedTags)
}

// UserCandidatePool is the neighbour count requested for a user query: max(multiplier*k, floor).
func (p Params) UserCandidatePool(k int) int {
	return max(p.UserCandidateMultiplier*k, p.UserCandidateFloor)
}

// NeedsSupplement reports whether too few preferred-category candidates were found.
func (p Params) NeedsSupplement(preferred, k int) bool {
	return float64(preferred) < p.SupplementThreshold*float64(k)
}

// PreferredSlots is the number of result slots reserved for preferred-category candidates.
func (p Params) PreferredSlots(k int) int {
	return int(math.Floor(p.PreferredShare * float64(k)))
}

// SortByScore sorts descending by score. Equal scores keep their incoming order.
func SortByScore(points []models.ScoredPoint) {
	slices.SortStableFunc(points, func(a, b models.ScoredPoint) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// Compose builds the balanced top-k list from score-sorted preferred and other candidates.
// It takes up to PreferredSlots(k) preferred, fills with other, backfills from the remaining
// preferred then the remaining other, and returns the result sorted by score.
func (p Params) Compose(preferred, other []models.ScoredPoint, k int) []models.ScoredPoint {
	if k <= 0 {
		return []models.ScoredPoint{}
	}

	nPreferred := min(len(preferred), p.PreferredSlots(k))
	nOther := min(len(other), k-nPreferred)

	out := make([]models.ScoredPoint, 0, k)
	out = append(out, preferred[:nPreferred]...)
	out = append(out, other[:nOther]...)

	for _, c := range preferred[nPreferred:] {
		if len(out) >= k {
			break
		}

		out = append(out, c)
	}

	for _, c := range other[nOther:] {
		if len(out) >= k {
			break
		}

		out = append(out, c)
	}

	SortByScore(out)

	if len(out) > k {
		out = out[:k]
	}

	return out
}

// TopCategories returns up to n category ids by descending weight; ties go to the lower id.
func TopCategories(weights map[int64]float64, n int) []int64 {
	ids := make([]int64, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b int64) int {
		if c := cmp.Compare(weights[b], weights[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	if len(ids) > n {
		ids = ids[:n]
	}

	return ids
}

// MaxWeight returns the largest weight, or zero for an empty map.
func MaxWeight(weights map[int64]float64) float64 {
	var m float64
	for _, w := range weights {
		if w > m {
			m = w
		}
	}

	return m
}
