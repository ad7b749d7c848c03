package models

import "time"

// ActivityKind distinguishes the two activity logs.
type ActivityKind string

const (
	ActivityView     ActivityKind = "view"
	ActivityPurchase ActivityKind = "purchase"
)

// ActivityRecord is one row of visited_products or purchased_products.
type ActivityRecord struct {
	UserID    int64        `json:"user_id"`
	ProductID int64        `json:"product_id"`
	Kind      ActivityKind `json:"kind"`
	At        time.Time    `json:"at"`
}

// UserActivity is the per-request activity snapshot of one user.
// Purchases and Views keep repeat records and are ordered most recent first.
type UserActivity struct {
	UserID        int64               `json:"user_id"`
	Purchases     []int64             `json:"purchases"`
	Views         []int64             `json:"views"`
	PurchaseDates map[int64]time.Time `json:"purchase_dates"`
	ViewDates     map[int64]time.Time `json:"view_dates"`
}

// NewUserActivity builds a snapshot from newest-first purchase and view records.
// The timestamp maps keep the most recent occurrence of each product.
func NewUserActivity(userID int64, purchases, views []ActivityRecord) *UserActivity {
	a := &UserActivity{
		UserID:        userID,
		Purchases:     make([]int64, 0, len(purchases)),
		Views:         make([]int64, 0, len(views)),
		PurchaseDates: make(map[int64]time.Time, len(purchases)),
		ViewDates:     make(map[int64]time.Time, len(views)),
	}

	for _, r := range purchases {
		a.Purchases = append(a.Purchases, r.ProductID)
		if _, ok := a.PurchaseDates[r.ProductID]; !ok {
			a.PurchaseDates[r.ProductID] = r.At
		}
	}

	for _, r := range views {
		a.Views = append(a.Views, r.ProductID)
		if _, ok := a.ViewDates[r.ProductID]; !ok {
			a.ViewDates[r.ProductID] = r.At
		}
	}

	return a
}

// Empty reports whether the user has neither purchases nor views.
func (a *UserActivity) Empty() bool {
	return a == nil || (len(a.Purchases) == 0 && len(a.Views) == 0)
}

// Purchased reports whether productID appears in the purchase log.
func (a *UserActivity) Purchased(productID int64) bool {
	_, ok := a.PurchaseDates[productID]

	return ok
}

// Viewed reports whether productID appears in the view log.
func (a *UserActivity) Viewed(productID int64) bool {
	_, ok := a.ViewDates[productID]

	return ok
}

// Interacted returns purchases ∪ views as a set.
func (a *UserActivity) Interacted() map[int64]struct{} {
	set := make(map[int64]struct{}, len(a.PurchaseDates)+len(a.ViewDates))
	for id := range a.PurchaseDates {
		set[id] = struct{}{}
	}

	for id := range a.ViewDates {
		set[id] = struct{}{}
	}

	return set
}
