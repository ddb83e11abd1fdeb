package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agrof66/machine-dashboard/internal/audit"
	"github.com/agrof66/machine-dashboard/internal/auth"
	"github.com/agrof66/machine-dashboard/internal/chart"
	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/export"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/internal/source"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/validation"
	"go.uber.org/zap"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// view is the data set as one request sees it.
type view struct {
	ds *sheet.Dataset
	// scoped holds every machine the user may see, machines the filtered subset.
	scoped   []sheet.Machine
	machines []sheet.Machine
	filter   dashboard.Filter

	topKey     dashboard.SortKey
	worstKey   dashboard.SortKey
	productKey dashboard.SortKey
	groupKey   dashboard.SortKey
	n          int
	share      float64
}

func (h *handler) view(r *http.Request, sess *auth.Session) (*view, error) {
	ds, err := h.dataset(r.Context(), sess)
	if err != nil {
		return nil, err
	}

	user := datasetUser(sess.User, ds)
	v := &view{
		ds:     ds,
		scoped: dashboard.RestrictBranches(ds.Machines, user.Branches),
		n:      constants.DefaultRankingSize,
		share:  constants.ParetoShare,
	}

	q := r.URL.Query()
	if b := strings.TrimSpace(q.Get("branch")); b != "" && b != constants.BranchAll {
		branch, _ := dashboard.NormalizeBranch(b, dashboard.Branches(ds.Machines))
		if !user.MayView(branch) {
			return nil, fmt.Errorf("%w: %s", errForbidden, branch)
		}
		v.filter.Branch = branch
	}
	v.filter.Family = strings.TrimSpace(q.Get("family"))
	v.filter.Group = strings.TrimSpace(q.Get("group"))
	if a := q.Get("active"); a != "" {
		if v.filter.ActiveOnly, err = strconv.ParseBool(a); err != nil {
			return nil, fmt.Errorf("%w: invalid active flag %q", errBadRequest, a)
		}
	}

	if v.topKey, err = sortKey(q.Get("top"), dashboard.ByDB, dashboard.RankingKeys...); err != nil {
		return nil, err
	}
	if v.worstKey, err = sortKey(q.Get("worst"), dashboard.ByDB, dashboard.RankingKeys...); err != nil {
		return nil, err
	}
	if v.productKey, err = sortKey(q.Get("products"), dashboard.ByRevenue, dashboard.ProductKeys...); err != nil {
		return nil, err
	}
	if v.groupKey, err = sortKey(q.Get("groups"), dashboard.ByRevenue, dashboard.ProductKeys...); err != nil {
		return nil, err
	}

	if raw := q.Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil {
			err = validation.ValidateRankingSize(n)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		v.n = n
	}
	if raw := q.Get("share"); raw != "" {
		share, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			err = validation.ValidateShare(share)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		v.share = share
	}

	v.machines = v.filter.Apply(v.scoped)
	return v, nil
}

// datasetUser returns u with its directory branches mapped onto the branch
// names of ds, so "NL Leipzig" in the users file grants "Leipzig".
func datasetUser(u auth.User, ds *sheet.Dataset) auth.User {
	u.Branches = dashboard.NormalizeBranches(u.Branches, dashboard.Branches(ds.Machines))
	return u
}

func sortKey(value string, fallback dashboard.SortKey, allowed ...dashboard.SortKey) (dashboard.SortKey, error) {
	if value == "" {
		return fallback, nil
	}
	names := make([]string, len(allowed))
	for i, k := range allowed {
		names[i] = string(k)
	}
	if err := validation.ValidateSortKey(value, names...); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return dashboard.SortKey(value), nil
}

type dashboardResponse struct {
	Source       string                   `json:"source"`
	Branch       string                   `json:"branch"`
	Months       []string                 `json:"months"`
	Overview     dashboard.Totals         `json:"overview"`
	Monthly      []dashboard.MonthRow     `json:"monthly"`
	Insights     *dashboard.MonthInsights `json:"insights,omitempty"`
	Top          []sheet.Machine          `json:"top"`
	Worst        []sheet.Machine          `json:"worst"`
	Products     []dashboard.ProductStat  `json:"products,omitempty"`
	Groups       []dashboard.ProductStat  `json:"groups,omitempty"`
	Pareto       dashboard.ParetoResult   `json:"pareto"`
	Families     []string                 `json:"families,omitempty"`
	GroupOptions []string                 `json:"groupOptions,omitempty"`
	Deviations   []dashboard.Deviation    `json:"deviations,omitempty"`
	Duration     string                   `json:"duration"`
}

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleDashboard"
	start := time.Now()

	v, err := h.view(r, sess)
	if err != nil {
		h.fail(w, err, op)
		return
	}

	branch := v.filter.Branch
	if branch == "" {
		branch = constants.BranchAll
	}
	monthly := dashboard.Monthly(v.ds.Months, v.machines)
	scopedSet := *v.ds
	scopedSet.Machines = v.scoped

	resp := dashboardResponse{
		Source:     v.ds.Source,
		Branch:     branch,
		Months:     v.ds.Months,
		Overview:   dashboard.Overview(v.machines),
		Monthly:    monthly,
		Insights:   dashboard.Insights(monthly),
		Top:        dashboard.Top(v.machines, v.topKey, v.n),
		Worst:      dashboard.Worst(v.machines, v.worstKey, v.n),
		Pareto:     dashboard.Pareto(v.machines, v.share),
		Deviations: dashboard.CheckConsistency(&scopedSet, constants.ConsistencyTolerance),
	}
	if v.ds.HasProducts {
		resp.Products = dashboard.ProductFamilies(v.machines, v.productKey)
		resp.Groups = dashboard.ProductGroups(v.machines, v.groupKey, constants.DefaultGroupLimit)
		resp.Families = dashboard.Families(v.scoped)
		resp.GroupOptions = dashboard.Groups(v.scoped, v.filter.Family)
	}
	resp.Duration = time.Since(start).String()

	h.logger.Debug("dashboard computed",
		zap.String("op", op),
		zap.String("user", sess.User.Email),
		zap.String("branch", branch),
		zap.Int("machines", len(v.machines)),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	Source      string   `json:"source"`
	Machines    int      `json:"machines"`
	Months      []string `json:"months"`
	Columns     []string `json:"columns"`
	HasBranch   bool     `json:"hasBranch"`
	HasProducts bool     `json:"hasProducts"`
	Duration    string   `json:"duration"`
}

func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleUpload"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.fail(w, fmt.Errorf("upload exceeds limit of %d bytes: %w", h.maxUploadSize, err), op)
			return
		}
		h.fail(w, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err), op)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, fmt.Errorf("%w: missing file upload: %v", errBadRequest, err), op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, fmt.Errorf("failed to read upload: %w", err), op)
		return
	}

	ds, err := source.UploadSource{Filename: header.Filename, Data: data}.Load(r.Context())
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		h.fail(w, err, op)
		return
	}
	h.sessions.SetUpload(sess.ID, ds)

	h.logger.Info("workbook uploaded",
		zap.String("op", op),
		zap.String("user", sess.User.Email),
		zap.String("file", header.Filename),
		zap.Int("machines", len(ds.Machines)),
		zap.Int("months", len(ds.Months)),
	)
	h.writeJSON(w, http.StatusOK, uploadResponse{
		Source:      ds.Source,
		Machines:    len(ds.Machines),
		Months:      ds.Months,
		Columns:     ds.Columns,
		HasBranch:   ds.HasBranch,
		HasProducts: ds.HasProducts,
		Duration:    time.Since(start).String(),
	})
}

func (h *handler) handleReload(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	h.cache.Reload()
	h.logger.Info("data cache cleared",
		zap.String("op", "server.handleReload"),
		zap.String("user", sess.User.Email),
	)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// splitFile splits "top.xlsx" into "top" and "xlsx".
func splitFile(name string) (string, string, bool) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], strings.ToLower(name[idx+1:]), true
}

func (v *view) table(kind string) (export.Table, error) {
	switch kind {
	case "machines":
		return export.MachineTable(v.machines, v.ds.HasProducts), nil
	case "top":
		return export.MachineTable(dashboard.Top(v.machines, v.topKey, v.n), v.ds.HasProducts), nil
	case "worst":
		return export.MachineTable(dashboard.Worst(v.machines, v.worstKey, v.n), v.ds.HasProducts), nil
	case "monthly":
		return export.MonthlyTable(dashboard.Monthly(v.ds.Months, v.machines)), nil
	case "products", "groups":
		if !v.ds.HasProducts {
			return export.Table{}, fmt.Errorf("%w: workbook has no product columns", errNotFound)
		}
		if kind == "groups" {
			return export.ProductTable(dashboard.ProductGroups(v.machines, v.groupKey, constants.DefaultGroupLimit), "Produktgruppe"), nil
		}
		return export.ProductTable(dashboard.ProductFamilies(v.machines, v.productKey), "Produktfamilie"), nil
	case "pareto":
		return export.ParetoTable(dashboard.Pareto(v.machines, v.share)), nil
	}
	return export.Table{}, fmt.Errorf("%w: unknown export %q", errNotFound, kind)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleExport"

	kind, format, ok := splitFile(r.PathValue("file"))
	if !ok {
		h.fail(w, fmt.Errorf("%w: export %q", errNotFound, r.PathValue("file")), op)
		return
	}
	if err := validation.ValidateExportFormat(format, constants.ExportXLSX, constants.ExportCSV); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", errNotFound, err), op)
		return
	}

	v, err := h.view(r, sess)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	table, err := v.table(kind)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	if sess.User.Role == auth.RoleUser {
		table = export.Redact(table, h.cfg.Export.RedactColumns)
	}

	now := h.now()
	opts := export.Options{Watermark: h.cfg.Export.Watermark, User: sess.User.Email, Now: now}
	var body []byte
	contentType := contentTypeCSV
	if format == constants.ExportXLSX {
		contentType = contentTypeXLSX
		body, err = export.XLSX(table, opts)
	} else {
		body, err = export.CSV(table, opts)
	}
	if err != nil {
		h.fail(w, err, op)
		return
	}

	if h.audit != nil {
		entry := audit.Entry{
			User:   sess.User.Email,
			Kind:   kind,
			Format: format,
			Branch: v.filter.Branch,
			Rows:   len(table.Rows),
			At:     now,
		}
		if err := h.audit.Record(r.Context(), entry); err != nil {
			h.logger.Warn("failed to record download",
				zap.String("op", op),
				zap.Error(err),
			)
		}
	}

	filename := export.Filename(kind, v.filter.Branch, now, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write export",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func (h *handler) handleChart(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleChart"

	name, ext, ok := splitFile(r.PathValue("file"))
	if !ok || ext != "png" {
		h.fail(w, fmt.Errorf("%w: chart %q", errNotFound, r.PathValue("file")), op)
		return
	}

	v, err := h.view(r, sess)
	if err != nil {
		h.fail(w, err, op)
		return
	}

	var img []byte
	switch name {
	case "revenue-cost":
		img, err = chart.MonthlyRevenueCost(dashboard.Monthly(v.ds.Months, v.machines))
	case "db":
		img, err = chart.MonthlyDB(dashboard.Monthly(v.ds.Months, v.machines))
	case "margin":
		img, err = chart.MonthlyMargin(dashboard.Monthly(v.ds.Months, v.machines))
	case "cumulative":
		img, err = chart.Cumulative(dashboard.Monthly(v.ds.Months, v.machines))
	case "top":
		img, err = chart.Ranking("Top Maschinen nach DB", dashboard.Top(v.machines, v.topKey, v.n))
	case "worst":
		img, err = chart.Ranking("Schwächste Maschinen nach DB", dashboard.Worst(v.machines, v.worstKey, v.n))
	default:
		err = fmt.Errorf("%w: chart %q", errNotFound, name)
	}
	if err != nil {
		h.fail(w, err, op)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.logger.Warn("failed to write chart",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *handler) handleChat(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleChat"

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, fmt.Errorf("%w: failed to decode question: %v", errBadRequest, err), op)
		return
	}

	ds, err := h.dataset(r.Context(), sess)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	scoped := dashboard.RestrictBranches(ds.Machines, datasetUser(sess.User, ds).Branches)

	answer, err := h.assistant.Ask(r.Context(), req.Question, ds, scoped)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	const op = "server.handleAudit"
	if !sess.User.Role.IsAdmin() {
		h.fail(w, errAdminOnly, op)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw), op)
			return
		}
		limit = n
	}

	entries := []audit.Entry{}
	if h.audit != nil {
		var err error
		if entries, err = h.audit.Recent(r.Context(), limit); err != nil {
			h.fail(w, err, op)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string][]audit.Entry{"entries": entries})
}
