package runs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/ezql/internal/export"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/leapstack-labs/ezql/internal/ui/features/common"
	"github.com/leapstack-labs/ezql/pkg/lineage"
)

const defaultLimit = 20

// Handlers provides HTTP handlers for the runs feature.
type Handlers struct {
	store state.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store state.Store) *Handlers {
	return &Handlers{store: store}
}

// List serves recent runs, newest first. ?limit=N bounds the list.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			common.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, runs)
}

type runDetail struct {
	Run        *state.Run        `json:"run"`
	Procedures export.Grouped    `json:"procedures"`
	Errored    []lineage.Errored `json:"errored"`
}

// Detail serves one stored run with its procedures grouped by path.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, state.ErrRunNotFound) {
		common.WriteError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := h.store.LoadRun(r.Context(), id)
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	errored := result.Errored
	if errored == nil {
		errored = []lineage.Errored{}
	}
	common.WriteJSON(w, http.StatusOK, runDetail{
		Run:        run,
		Procedures: export.Group(result),
		Errored:    errored,
	})
}
