// Package observability provides OpenTelemetry metrics and tracing and the slog trace-context handler
// for the recommender.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests           = "recommender_http_requests_total"
	MetricNameHTTPDuration           = "recommender_http_request_duration_seconds"
	MetricNameRecommendations        = "recommender_recommendations_total"
	MetricNameRecommendationDuration = "recommender_recommendation_duration_seconds"
	MetricNameSupplementSearches     = "recommender_category_supplement_total"
	MetricNameSyncRuns               = "recommender_sync_runs_total"
	MetricNameSyncDuration           = "recommender_sync_duration_seconds"
	MetricNameSyncIndexedProducts    = "recommender_sync_indexed_products"
	MetricNameSyncSkippedProducts    = "recommender_sync_skipped_products"
	MetricNameSyncQueueDepth         = "recommender_sync_queue_depth"
	MetricNameEmbeddingRequests      = "recommender_embedding_requests_total"
	MetricNameEmbeddingDuration      = "recommender_embedding_duration_seconds"
	MetricNameCacheHits              = "recommender_cache_hits_total"
	MetricNameCacheMisses            = "recommender_cache_misses_total"
)

// Attribute keys.
const (
	AttrKind     = "kind"
	AttrOutcome  = "outcome"
	AttrProvider = "provider"
	AttrCache    = "cache"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Recommendation kinds.
const (
	RecommendationKindProduct = "product"
	RecommendationKindUser    = "user"
)

var allowedOutcomes = map[string]bool{
	OutcomeSuccess: true,
	OutcomeEmpty:   true,
	OutcomeError:   true,
}

var allowedKinds = map[string]bool{
	RecommendationKindProduct: true,
	RecommendationKindUser:    true,
}

var allowedProviders = map[string]bool{
	"openai": true,
	"google": true,
	"http":   true,
	"mock":   true,
}

var allowedCaches = map[string]bool{
	"embedding_lru":   true,
	"embedding_redis": true,
}

// NormalizeOutcome returns outcome if known, otherwise "other".
func NormalizeOutcome(outcome string) string {
	return normalize(outcome, allowedOutcomes)
}

// NormalizeKind returns kind if known, otherwise "other".
func NormalizeKind(kind string) string {
	return normalize(kind, allowedKinds)
}

// NormalizeProvider returns provider if known, otherwise "other".
func NormalizeProvider(provider string) string {
	return normalize(provider, allowedProviders)
}

// NormalizeCacheName returns name if known, otherwise "other".
func NormalizeCacheName(name string) string {
	return normalize(name, allowedCaches)
}

func normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
