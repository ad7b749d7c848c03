package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/formbricks/recommender/internal/api/response"
	"github.com/formbricks/recommender/internal/api/validation"
	"github.com/formbricks/recommender/internal/jobs"
	"github.com/formbricks/recommender/internal/recerrors"
	"github.com/formbricks/recommender/internal/service"
)

// Sync response statuses.
const (
	SyncStatusOK     = "ok"
	SyncStatusQueued = "queued"
	SyncStatusError  = "error"
)

// IndexRebuilder runs a full index rebuild.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context) (*service.SyncResult, error)
}

// SyncResponse is the body of POST /v1/sync.
type SyncResponse struct {
	Status  string `json:"status"`
	Indexed *int   `json:"indexed,omitempty"`
	Skipped *int   `json:"skipped,omitempty"`
	JobID   int64  `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncHandler handles POST /v1/sync.
type SyncHandler struct {
	sync     IndexRebuilder
	inserter jobs.JobInserter
}

// NewSyncHandler creates the handler. inserter is nil when the sync queue is disabled;
// ?async=true is then rejected.
func NewSyncHandler(sync IndexRebuilder, inserter jobs.JobInserter) *SyncHandler {
	return &SyncHandler{sync: sync, inserter: inserter}
}

// Sync rebuilds the index inline, or enqueues a rebuild with ?async=true.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var params validation.SyncParams
	if err := validation.ValidateAndDecodeQueryParams(r, &params); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	if params.Async {
		h.enqueue(w, r)

		return
	}

	// A rebuild outlives the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.DebugContext(r.Context(), "sync: cannot clear write deadline", "error", err)
	}

	// A client disconnect must not abort a rebuild that has already recreated the collection.
	result, err := h.sync.RebuildIndex(context.WithoutCancel(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, recerrors.ErrConflict) {
			status = http.StatusConflict
		}

		response.RespondJSON(w, status, SyncResponse{Status: SyncStatusError, Error: err.Error()})

		return
	}

	response.RespondJSON(w, http.StatusOK, SyncResponse{
		Status:  SyncStatusOK,
		Indexed: &result.Indexed,
		Skipped: &result.Skipped,
	})
}

func (h *SyncHandler) enqueue(w http.ResponseWriter, r *http.Request) {
	if h.inserter == nil {
		response.RespondBadRequest(w, "async sync requires SYNC_QUEUE_ENABLED=true")

		return
	}

	jobID, err := h.inserter.InsertSyncJob(r.Context(), jobs.ProductSyncArgs{
		Trigger:     jobs.TriggerAPI,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "sync: enqueue failed", "error", err)
		response.RespondJSON(w, http.StatusInternalServerError, SyncResponse{Status: SyncStatusError, Error: err.Error()})

		return
	}

	response.RespondJSON(w, http.StatusAccepted, SyncResponse{Status: SyncStatusQueued, JobID: jobID})
}
