// Package ranking holds the tunable constants and pure scoring functions of the recommendation engine.
package ranking

import (
	"errors"
	"fmt"
)

// Default tuning values. The preferred share and supplement threshold are empirical and meant to be tuned.
const (
	DefaultPurchaseWeight = 2.0
	DefaultViewWeight     = 1.0
	DefaultFallbackWeight = 0.5

	DefaultRepresentativeMax       = 10
	DefaultRepresentativePurchases = 5
	DefaultRepresentativeViews     = 5

	DefaultProductCandidates    = 30
	DefaultProductCategoryBoost = 0.20
	DefaultProductTagBoost      = 0.10

	DefaultPreferencePurchases = 5
	DefaultPreferenceViews     = 10

	DefaultUserCandidateMultiplier = 5
	DefaultUserCandidateFloor      = 100
	DefaultUserCategoryMultiplier  = 1.5
	DefaultUserCategoryBonus       = 0.3
	DefaultUserTagBoost            = 0.15

	DefaultPreferredShare       = 0.8
	DefaultSupplementThreshold  = 0.5
	DefaultSupplementCategories = 3
	DefaultSupplementLimit      = 20

	DefaultK = 10
	MaxK     = 100
)

// Weights is the single source of the purchase/view/fallback weights.
// The profile vector and the category preferences both read from it.
type Weights struct {
	Purchase float64
	View     float64
	Fallback float64
}

// Params configures representative selection, scoring and category balancing.
type Params struct {
	Weights Weights

	RepresentativeMax       int
	RepresentativePurchases int
	RepresentativeViews     int

	ProductCandidates    int
	ProductCategoryBoost float64
	ProductTagBoost      float64

	PreferencePurchases int
	PreferenceViews     int

	UserCandidateMultiplier int
	UserCandidateFloor      int
	UserCategoryMultiplier  float64
	UserCategoryBonus       float64
	UserTagBoost            float64

	// PreferredShare is the fraction of k reserved for preferred-category candidates.
	PreferredShare float64
	// SupplementThreshold triggers filtered category searches when preferred < threshold*k.
	SupplementThreshold  float64
	SupplementCategories int
	SupplementLimit      int
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		Weights: Weights{
			Purchase: DefaultPurchaseWeight,
			View:     DefaultViewWeight,
			Fallback: DefaultFallbackWeight,
		},
		RepresentativeMax:       DefaultRepresentativeMax,
		RepresentativePurchases: DefaultRepresentativePurchases,
		RepresentativeViews:     DefaultRepresentativeViews,
		ProductCandidates:       DefaultProductCandidates,
		ProductCategoryBoost:    DefaultProductCategoryBoost,
		ProductTagBoost:         DefaultProductTagBoost,
		PreferencePurchases:     DefaultPreferencePurchases,
		PreferenceViews:         DefaultPreferenceViews,
		UserCandidateMultiplier: DefaultUserCandidateMultiplier,
		UserCandidateFloor:      DefaultUserCandidateFloor,
		UserCategoryMultiplier:  DefaultUserCategoryMultiplier,
		UserCategoryBonus:       DefaultUserCategoryBonus,
		UserTagBoost:            DefaultUserTagBoost,
		PreferredShare:          DefaultPreferredShare,
		SupplementThreshold:     DefaultSupplementThreshold,
		SupplementCategories:    DefaultSupplementCategories,
		SupplementLimit:         DefaultSupplementLimit,
	}
}

var errInvalidParams = errors.New("invalid ranking parameters")

// Validate checks the parameters for values that would break ranking.
func (p Params) Validate() error {
	switch {
	case p.Weights.Purchase <= 0 || p.Weights.View <= 0 || p.Weights.Fallback <= 0:
		return fmt.Errorf("%w: weights must be positive", errInvalidParams)
	case p.RepresentativeMax <= 0 || p.RepresentativePurchases < 0 || p.RepresentativeViews < 0:
		return fmt.Errorf("%w: representative limits must be positive", errInvalidParams)
	case p.ProductCandidates <= 0 || p.UserCandidateMultiplier <= 0 || p.UserCandidateFloor <= 0:
		return fmt.Errorf("%w: candidate pool sizes must be positive", errInvalidParams)
	case p.PreferredShare < 0 || p.PreferredShare > 1:
		return fmt.Errorf("%w: preferred share must be within [0, 1]", errInvalidParams)
	case p.SupplementThreshold < 0 || p.SupplementThreshold > 1:
		return fmt.Errorf("%w: supplement threshold must be within [0, 1]", errInvalidParams)
	case p.SupplementCategories < 0 || p.SupplementLimit < 0:
		return fmt.Errorf("%w: supplement limits must not be negative", errInvalidParams)
	}

	return nil
}

// ClampK returns k bounded to [1, MaxK], using DefaultK when k is not positive.
func ClampK(k int) int {
	if k <= 0 {
		return DefaultK
	}

	if k > MaxK {
		return MaxK
	}

	return k
}
