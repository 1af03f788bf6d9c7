// Package workflows implements the workflow-execution surface from
// spec.md §6.1 (execute/status/cancel/list) plus the SPEC_FULL.md
// §4.4 registry CRUD, backed directly by the repository kernel's
// type=workflow documents rather than a dedicated store.
package workflows

import (
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/repository"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/internal/platform/workflow"
	"github.com/inspectra/platform-core/internal/routes/httpkit"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

const workflowType = "workflow"

type Dependencies struct {
	DB     *mongo.Database
	Trail  audit.Trail
	Engine *workflow.Engine
}

var deps *Dependencies

func Configure(d Dependencies) {
	deps = &d
}

func registryRepo(r *http.Request) *repository.Repository {
	rc := tenancy.MustFromContext(r.Context())
	return repository.New(deps.DB, workflowType, deps.Trail, rc)
}

func init() {
	router.Register(router.Module{
		Name:   "workflows",
		Prefix: "/api/workflows",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/", Policy: router.PolicyRequireAuth, Handler: handleListWorkflows},
			{Method: http.MethodGet, Path: "/{id}", Policy: router.PolicyRequireAuth, Handler: handleGetWorkflow},
			{Method: http.MethodPut, Path: "/{id}/status", Policy: router.PolicyRequireAuth, Handler: handleSetWorkflowStatus},
			{Method: http.MethodPost, Path: "/{workflowId}/execute", Policy: router.PolicyRequireAuth, Handler: handleExecute},
		},
	})

	router.Register(router.Module{
		Name:   "executions",
		Prefix: "/api/executions",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/", Policy: router.PolicyRequireAuth, Handler: handleListExecutions},
			{Method: http.MethodGet, Path: "/{executionId}", Policy: router.PolicyRequireAuth, Handler: handleGetExecution},
			{Method: http.MethodPost, Path: "/{executionId}/cancel", Policy: router.PolicyRequireAuth, Handler: handleCancelExecution},
		},
	})
}

// handleListWorkflows implements `GET /api/workflows` (SPEC_FULL.md §4.4
// expansion): a thin paginated list over type=workflow documents.
func handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	page := httpkit.QueryInt(r, "page", 1)
	limit := httpkit.QueryInt(r, "limit", 20)

	result, err := registryRepo(r).FindWithPagination(r.Context(), nil, document.PageRequest{Page: page, Limit: limit})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"data": result.Data, "total": result.Total, "page": result.Page, "limit": result.Limit, "pages": result.Pages,
	})
}

// handleGetWorkflow implements `GET /api/workflows/{id}`.
func handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	doc, err := registryRepo(r).FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, doc)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active archived"`
}

// handleSetWorkflowStatus implements `PUT /api/workflows/{id}/status`.
func handleSetWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	updated, err := registryRepo(r).Update(r.Context(), chi.URLParam(r, "id"), map[string]interface{}{"status": req.Status})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

type executeRequest struct {
	Metadata workflow.Metadata      `json:"metadata" validate:"required"`
	Inputs   map[string]interface{} `json:"inputs"`
}

// handleExecute implements `POST /api/workflows/{workflowId}/execute`.
// The workflow graph definition is supplied inline by the caller rather
// than re-read from the registry document, so a client can dry-run a
// draft definition before it is saved.
func handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	rc := tenancy.MustFromContext(r.Context())
	exec, err := deps.Engine.ExecuteWorkflow(r.Context(), chi.URLParam(r, "workflowId"), req.Metadata, req.Inputs, rc)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Accepted(w, exec)
}

// handleGetExecution implements `GET /api/executions/{executionId}`.
func handleGetExecution(w http.ResponseWriter, r *http.Request) {
	rc := tenancy.MustFromContext(r.Context())
	exec, found, err := deps.Engine.GetExecutionStatus(r.Context(), chi.URLParam(r, "executionId"), rc)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !found {
		response.Error(w, errors.ErrNotFound("execution"))
		return
	}
	response.OK(w, exec)
}

// handleCancelExecution implements `POST /api/executions/{executionId}/cancel`.
func handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	ok, err := deps.Engine.CancelExecution(chi.URLParam(r, "executionId"))
	if err != nil {
		response.Error(w, err)
		return
	}
	if !ok {
		response.Error(w, errors.ErrNotFound("execution"))
		return
	}
	response.OK(w, map[string]bool{"cancelled": true})
}

// handleListExecutions implements `GET /api/executions`.
func handleListExecutions(w http.ResponseWriter, r *http.Request) {
	rc := tenancy.MustFromContext(r.Context())
	filter := map[string]interface{}{}
	if status := httpkit.QueryString(r, "status", ""); status != "" {
		filter["status"] = status
	}
	if workflowID := httpkit.QueryString(r, "workflowId", ""); workflowID != "" {
		filter["attributes.workflowId"] = workflowID
	}

	page := httpkit.QueryInt(r, "page", 1)
	limit := httpkit.QueryInt(r, "limit", 20)

	execs, total, err := deps.Engine.ListExecutions(r.Context(), filter, document.PageRequest{Page: page, Limit: limit}, rc)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"data": execs, "total": total, "page": page, "limit": limit})
}
