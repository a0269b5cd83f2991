package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

type PlannerHandler struct {
	planner *service.Planner
	index   domain.ContextIndex
	logger  *zap.Logger
}

// NewPlannerHandler serves the planning API. index may be nil, in which case
// similarity lookups scan episodic memory.
func NewPlannerHandler(planner *service.Planner, index domain.ContextIndex, logger *zap.Logger) *PlannerHandler {
	return &PlannerHandler{planner: planner, index: index, logger: logger}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps planner errors onto HTTP statuses.
func (h *PlannerHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrGoalRequired),
		errors.Is(err, service.ErrInvalidGoal),
		errors.Is(err, domain.ErrPlanGoalEmpty),
		errors.Is(err, domain.ErrPlanNoSteps),
		errors.Is(err, domain.ErrInvalidDependency),
		errors.Is(err, domain.ErrDependencyCycle):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGoalInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEmptyCandidateSet):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

type cycleRequest struct {
	Goal        string   `json:"goal"`
	ContextTags []string `json:"context_tags"`
	Aggressive  bool     `json:"aggressive,omitempty"`
}

func (h *PlannerHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.planner.RunCycle(r.Context(), service.CycleInput{
		Goal:        req.Goal,
		ContextTags: req.ContextTags,
		Aggressive:  req.Aggressive,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to run planning cycle")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type pursueRequest struct {
	Goal        string              `json:"goal"`
	ContextTags []string            `json:"context_tags"`
	Checkpoints []domain.Checkpoint `json:"checkpoints"`
	State       *domain.GoalState   `json:"state,omitempty"`
}

func (h *PlannerHandler) Pursue(w http.ResponseWriter, r *http.Request) {
	var req pursueRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Checkpoints) == 0 {
		writeError(w, http.StatusBadRequest, "at least one checkpoint is required")
		return
	}
	for _, cp := range req.Checkpoints {
		if cp.ExpectedProgress < 0 || cp.ExpectedProgress > 1 {
			writeError(w, http.StatusBadRequest, "expected_progress must be within [0, 1]")
			return
		}
	}

	result, err := h.planner.Pursue(r.Context(), service.PursueInput{
		Goal:        req.Goal,
		ContextTags: req.ContextTags,
		Checkpoints: req.Checkpoints,
		State:       req.State,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to pursue goal")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type planInput struct {
	Goal         string              `json:"goal"`
	ContextTags  []string            `json:"context_tags"`
	Steps        []string            `json:"steps"`
	Dependencies []domain.Dependency `json:"dependencies"`
	Constraints  []string            `json:"constraints,omitempty"`
}

// toPlan builds a plan; omitted dependencies mean a linear chain.
func (p planInput) toPlan() (domain.Plan, error) {
	deps := p.Dependencies
	if deps == nil {
		deps = domain.LinearDependencies(len(p.Steps))
	}
	plan, err := domain.NewPlan(p.Goal, p.ContextTags, p.Steps, deps, p.Constraints)
	if err != nil {
		return domain.Plan{}, err
	}
	if _, err := plan.TopologicalOrder(); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

type scoreRequest struct {
	Goal        string      `json:"goal,omitempty"`
	ContextTags []string    `json:"context_tags"`
	Plans       []planInput `json:"plans,omitempty"`
}

type scoreResponse struct {
	Candidates []domain.Plan               `json:"candidates"`
	Scores     []domain.PlanScoreBreakdown `json:"scores"`
	BestIndex  int                         `json:"best_index"`
}

// Score ranks the given plans, or the generated candidates for goal, without
// executing anything.
func (h *PlannerHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}

	var candidates []domain.Plan
	if len(req.Plans) > 0 {
		for _, p := range req.Plans {
			plan, err := p.toPlan()
			if err != nil {
				h.writeServiceError(w, err, "invalid plan")
				return
			}
			candidates = append(candidates, plan)
		}
	} else {
		var err error
		candidates, err = h.planner.Generator().Candidates(r.Context(), service.CandidateInput{
			Goal:          req.Goal,
			ContextTags:   req.ContextTags,
			FailureMemory: h.planner.FailureMemory(),
		})
		if err != nil {
			h.writeServiceError(w, err, "failed to generate candidates")
			return
		}
	}
	if len(candidates) == 0 {
		h.writeServiceError(w, service.ErrEmptyCandidateSet, "")
		return
	}

	scores := h.planner.Scorer().ScoreAll(candidates, req.ContextTags)
	writeJSON(w, http.StatusOK, scoreResponse{
		Candidates: candidates,
		Scores:     scores,
		BestIndex:  service.ArgMax(service.FinalScores(scores)),
	})
}

type mutateRequest struct {
	Plan       planInput `json:"plan"`
	Aggressive bool      `json:"aggressive,omitempty"`
}

func (h *PlannerHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	var req mutateRequest
	if !decode(w, r, &req) {
		return
	}

	plan, err := req.Plan.toPlan()
	if err != nil {
		h.writeServiceError(w, err, "invalid plan")
		return
	}

	mutated, err := h.planner.Generator().Mutate(r.Context(), plan, h.planner.FailureMemory(), service.MutateOptions{Aggressive: req.Aggressive})
	if err != nil {
		h.writeServiceError(w, err, "failed to mutate plan")
		return
	}

	writeJSON(w, http.StatusOK, mutated)
}

type evidenceResponse struct {
	Evidence  domain.MemoryEvidence   `json:"evidence"`
	Aggregate *domain.MemoryAggregate `json:"aggregate,omitempty"`
}

func (h *PlannerHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		writeError(w, http.StatusBadRequest, "fingerprint is required")
		return
	}

	resp := evidenceResponse{
		Evidence: h.planner.Memory().Evidence(fp, splitTags(r.URL.Query().Get("tags"))),
	}
	if agg, ok := h.planner.Memory().Aggregate(fp); ok {
		resp.Aggregate = &agg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PlannerHandler) Similar(w http.ResponseWriter, r *http.Request) {
	tags := splitTags(r.URL.Query().Get("tags"))
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	if h.index != nil {
		matches, err := h.index.Nearest(r.Context(), tags, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
			return
		}
		h.logger.Warn("context index lookup failed, scanning memory", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": h.planner.Memory().SimilarFingerprints(tags, limit)})
}

func (h *PlannerHandler) Report(w http.ResponseWriter, r *http.Request) {
	top := 5
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid top")
			return
		}
		top = n
	}

	report, err := h.planner.Report(r.Context(), top)
	if err != nil {
		h.writeServiceError(w, err, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
