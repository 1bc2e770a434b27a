package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/astrolab-backend/internal/http/response"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/requestdata"
	"github.com/yungbote/astrolab-backend/internal/services"
)

type EventHandler struct {
	events services.EventService
	queue  *services.BatchQueue
}

func NewEventHandler(events services.EventService, queue *services.BatchQueue) *EventHandler {
	return &EventHandler{events: events, queue: queue}
}

type ingestEventsRequest struct {
	Events []services.EventInput `json:"events"`
}

type ingestBatchResponse struct {
	Success         bool `json:"success"`
	EventsProcessed int  `json:"events_processed"`
}

func fillIdentity(c *gin.Context, in *services.EventInput) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		return
	}
	if strings.TrimSpace(in.UserID) == "" {
		in.UserID = rd.UserID
	}
	if strings.TrimSpace(in.SessionID) == "" {
		in.SessionID = rd.SessionID
	}
}

// POST /api/events
// One tracking call. The event is buffered in the batch queue and persisted
// on the next flush, so the caller gets an immediate acknowledgement.
func (h *EventHandler) Track(c *gin.Context) {
	var in services.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if strings.TrimSpace(in.EventName) == "" ||
		strings.TrimSpace(in.EventCategory) == "" ||
		strings.TrimSpace(in.EventAction) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_event", errs.ErrInvalidArgument)
		return
	}
	fillIdentity(c, &in)
	h.queue.Track(in)
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// POST /api/events/batch
// { "events": [ ... ] } -> { "success": bool, "events_processed": int }
// Invalid items inside the batch are skipped and counted; an empty batch is
// a validation failure.
func (h *EventHandler) IngestBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(raw) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_body", nil)
		return
	}
	var inputs []services.EventInput
	var env ingestEventsRequest
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Events) > 0 {
		inputs = env.Events
	} else {
		var arr []services.EventInput
		if err2 := json.Unmarshal(raw, &arr); err2 != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_json", err2)
			return
		}
		inputs = arr
	}
	for i := range inputs {
		fillIdentity(c, &inputs[i])
	}
	n, err := h.events.IngestBatch(c.Request.Context(), nil, inputs)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_batch", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "event_ingest_failed", err)
		return
	}
	response.RespondOK(c, ingestBatchResponse{Success: true, EventsProcessed: n})
}
