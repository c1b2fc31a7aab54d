package lineage

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/ezql/internal/dag"
	"github.com/leapstack-labs/ezql/internal/export"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/leapstack-labs/ezql/internal/ui/features/common"
	"github.com/leapstack-labs/ezql/internal/ui/notifier"
	"github.com/leapstack-labs/ezql/internal/ui/resources"
	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/starfederation/datastar-go/datastar"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// SessionName is the cookie session that keeps the chart filter.
const SessionName = "ezql"

const (
	keyMode       = "filter_mode"
	keyTables     = "filter_tables"
	keyProcedures = "filter_procedures"
)

// Handlers provides HTTP handlers for the lineage feature.
type Handlers struct {
	snapshot     *common.Snapshot
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	hasRuns      bool
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(snapshot *common.Snapshot, sessionStore sessions.Store, notify *notifier.Notifier, hasRuns bool, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		snapshot:     snapshot,
		sessionStore: sessionStore,
		notifier:     notify,
		hasRuns:      hasRuns,
		logger:       logger,
	}
}

// filterForm is the raw filter as typed by the user: comma separated
// lists.
type filterForm struct {
	Mode       string
	Tables     string
	Procedures string
}

func (f filterForm) options() (filter.Options, error) {
	tables, err := filter.ParseTables(splitList(f.Tables))
	if err != nil {
		return filter.Options{}, err
	}
	opts := filter.Options{
		Mode:       filter.Mode(f.Mode),
		Tables:     tables,
		Procedures: splitList(f.Procedures),
	}
	switch opts.Mode {
	case filter.ModeNone, filter.ModeSimple, filter.ModeRecursive:
	default:
		return filter.Options{}, fmt.Errorf("invalid filter mode %q", opts.Mode)
	}
	if opts.Mode != filter.ModeNone && len(opts.Tables) == 0 {
		return filter.Options{}, fmt.Errorf("filter mode %q needs at least one table", opts.Mode)
	}
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requestFilter reads the saved filter, overridden by mode, tables and
// procedures query parameters.
func (h *Handlers) requestFilter(r *http.Request) filterForm {
	var f filterForm
	if sess, err := h.sessionStore.Get(r, SessionName); err == nil {
		f.Mode, _ = sess.Values[keyMode].(string)
		f.Tables, _ = sess.Values[keyTables].(string)
		f.Procedures, _ = sess.Values[keyProcedures].(string)
	}

	q := r.URL.Query()
	if q.Has("mode") {
		f.Mode = q.Get("mode")
	}
	if q.Has("tables") {
		f.Tables = q.Get("tables")
	}
	if q.Has("procedures") {
		f.Procedures = q.Get("procedures")
	}
	return f
}

func (h *Handlers) filtered(r *http.Request) (lineage.Result, filterForm, error) {
	form := h.requestFilter(r)
	opts, err := form.options()
	if err != nil {
		return lineage.Result{}, form, err
	}
	result, err := filter.Apply(h.snapshot.Result(), opts)
	return result, form, err
}

type pageData struct {
	Title     string
	StylePath string
	Info      common.SnapshotInfo
	Filter    filterForm
	HasRuns   bool
	Tables    int
	Edges     int
	Chart     string
	Errored   []lineage.Errored
}

// ChartPage renders the Mermaid chart of the filtered snapshot.
func (h *Handlers) ChartPage(w http.ResponseWriter, r *http.Request) {
	result, form, err := h.filtered(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g := dag.Build(result)
	data := pageData{
		Title:     "Table lineage",
		StylePath: resources.StaticPath("style.css"),
		Info:      h.snapshot.Info(),
		Filter:    form,
		HasRuns:   h.hasRuns,
		Tables:    g.NodeCount(),
		Edges:     g.EdgeCount(),
		Chart:     export.Mermaid(result),
		Errored:   result.Errored,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render chart page", "error", err)
	}
}

// SaveFilter stores the submitted filter in the session and redirects to
// the chart.
func (h *Handlers) SaveFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := filterForm{
		Mode:       r.PostForm.Get("mode"),
		Tables:     r.PostForm.Get("tables"),
		Procedures: r.PostForm.Get("procedures"),
	}
	if _, err := form.options(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, _ := h.sessionStore.Get(r, SessionName)
	sess.Values[keyMode] = form.Mode
	sess.Values[keyTables] = form.Tables
	sess.Values[keyProcedures] = form.Procedures
	if err := sess.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Updates is the long-lived SSE endpoint of the chart page. Each new
// snapshot makes the browser reload.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	ctx := r.Context()
	updates := h.notifier.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case gen, ok := <-updates:
			if !ok {
				return
			}
			h.logger.Debug("pushing reload", "generation", gen)
			if err := sse.ExecuteScript("window.location.reload()"); err != nil {
				return
			}
		}
	}
}

// Procedures serves the filtered procedures grouped by path.
func (h *Handlers) Procedures(w http.ResponseWriter, r *http.Request) {
	result, _, err := h.filtered(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, export.Group(result))
}

// Errored serves the errored records of the snapshot.
func (h *Handlers) Errored(w http.ResponseWriter, _ *http.Request) {
	errored := h.snapshot.Result().Errored
	if errored == nil {
		errored = []lineage.Errored{}
	}
	common.WriteJSON(w, http.StatusOK, errored)
}

type graphNode struct {
	ID       string   `json:"id"`
	Schema   string   `json:"schema"`
	Name     string   `json:"name"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

type graphResponse struct {
	Nodes  []graphNode `json:"nodes"`
	Edges  []dag.Edge  `json:"edges"`
	Cycle  []string    `json:"cycle,omitempty"`
	Levels [][]string  `json:"levels,omitempty"`
}

// Graph serves the table graph of the filtered snapshot.
func (h *Handlers) Graph(w http.ResponseWriter, r *http.Request) {
	opts, err := h.requestFilter(r).options()
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}
	g, err := filter.Graph(h.snapshot.Result(), opts)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	resp := graphResponse{Nodes: []graphNode{}, Edges: g.Edges()}
	for _, n := range g.Nodes() {
		resp.Nodes = append(resp.Nodes, graphNode{
			ID:       n.ID,
			Schema:   n.Table.Schema,
			Name:     n.Table.Name,
			Parents:  orEmpty(g.Parents(n.ID)),
			Children: orEmpty(g.Children(n.ID)),
		})
	}
	if cyclic, path := g.HasCycle(); cyclic {
		resp.Cycle = path
	} else if levels, err := g.Levels(); err == nil {
		resp.Levels = levels
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Health reports the snapshot summary.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		common.SnapshotInfo
	}{"ok", h.snapshot.Info()})
}
