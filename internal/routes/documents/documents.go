// Package documents implements the generic document CRUD, search, and
// aggregation HTTP surface from spec.md §6.1/§4.3: one set of routes over
// the polymorphic repository kernel, parameterized by the `{type}` path
// segment rather than one handler per document type.
package documents

import (
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/repository"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/internal/routes/httpkit"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

type Dependencies struct {
	DB    *mongo.Database
	Trail audit.Trail
}

var deps *Dependencies

func Configure(d Dependencies) {
	deps = &d
}

func repo(r *http.Request, docType string) *repository.Repository {
	rc := tenancy.MustFromContext(r.Context())
	return repository.New(deps.DB, docType, deps.Trail, rc)
}

func init() {
	router.Register(router.Module{
		Name:   "documents",
		Prefix: "/api/documents",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/{type}/stats", Policy: router.PolicyRequireAuth, Handler: handleStats},
			{Method: http.MethodGet, Path: "/{type}", Policy: router.PolicyRequireAuth, Handler: handleList},
			{Method: http.MethodPost, Path: "/{type}", Policy: router.PolicyRequireAuth, Handler: handleCreate},
			{Method: http.MethodGet, Path: "/{type}/{id}", Policy: router.PolicyRequireAuth, Handler: handleGet},
			{Method: http.MethodPut, Path: "/{type}/{id}", Policy: router.PolicyRequireAuth, Handler: handleUpdate},
			{Method: http.MethodDelete, Path: "/{type}/{id}", Policy: router.PolicyRequireAuth, Handler: handleDelete},
		},
	})

	router.Register(router.Module{
		Name:   "search",
		Prefix: "/api/search",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/hierarchy", Policy: router.PolicyRequireAuth, Handler: handleSearchHierarchy},
		},
	})

	router.Register(router.Module{
		Name:   "aggregation",
		Prefix: "/api/aggregation",
		Routes: []router.Route{
			{Method: http.MethodPost, Path: "/", Policy: router.PolicyRequireAuth, Handler: handleAggregate},
		},
	})
}

type pageResponse struct {
	Data  []document.Document `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Pages int                  `json:"pages"`
}

// handleList implements `GET /api/documents/{type}?…pagination,filter`.
// Filter fields are passed through as `attributes.<field>=value` equality
// matches plus the reserved `status`/`tags`/`ownerId`/`q` query parameters;
// a present `q` routes through the ranked Search path instead of Find.
func handleList(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	docs := repo(r, docType)

	reqPage := httpkit.QueryInt(r, "page", 1)
	limit := httpkit.QueryInt(r, "limit", 20)
	q := httpkit.QueryString(r, "q", "")

	if q != "" {
		matches, err := docs.Search(r.Context(), q, document.FindOptions{Limit: int64(limit)})
		if err != nil {
			response.Error(w, err)
			return
		}
		response.OK(w, pageResponse{Data: matches, Total: int64(len(matches)), Page: 1, Limit: limit, Pages: 1})
		return
	}

	page, err := docs.FindWithPagination(r.Context(), listFilter(r), document.PageRequest{Page: reqPage, Limit: limit})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, pageResponse{Data: page.Data, Total: page.Total, Page: page.Page, Limit: page.Limit, Pages: page.Pages})
}

func listFilter(r *http.Request) map[string]interface{} {
	filter := map[string]interface{}{}
	if status := httpkit.QueryString(r, "status", ""); status != "" {
		filter["status"] = status
	}
	if owner := httpkit.QueryString(r, "ownerId", ""); owner != "" {
		filter["owner_id"] = owner
	}
	if tags := httpkit.QueryStringSlice(r, "tags"); len(tags) > 0 {
		filter["tags"] = bsonIn(tags)
	}
	// Any other query parameter is treated as an equality filter on a
	// type-specific field, stored under the document's open attributes map.
	for key, values := range r.URL.Query() {
		if reserved[key] || len(values) == 0 || values[0] == "" {
			continue
		}
		filter["attributes."+key] = values[0]
	}
	return filter
}

var reserved = map[string]bool{
	"page": true, "limit": true, "q": true, "status": true, "ownerId": true, "tags": true, "sort": true,
}

func bsonIn(values []string) map[string]interface{} {
	anyValues := make([]interface{}, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return map[string]interface{}{"$in": anyValues}
}

func handleGet(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	doc, err := repo(r, docType).FindByID(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, doc)
}

func handleCreate(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")

	var data map[string]interface{}
	if err := httpkit.DecodeJSON(r, &data); err != nil {
		response.Error(w, err)
		return
	}

	created, err := repo(r, docType).Create(r.Context(), data)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, created)
}

func handleUpdate(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	var patch map[string]interface{}
	if err := httpkit.DecodeJSON(r, &patch); err != nil {
		response.Error(w, err)
		return
	}

	updated, err := repo(r, docType).Update(r.Context(), id, patch)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

func handleDelete(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	if err := repo(r, docType).Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")

	stats, err := repo(r, docType).GetStats(r.Context(), nil)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

type hierarchyMatch struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Title      string           `json:"title"`
	Status     string           `json:"status"`
	ParentPath []hierarchyCrumb `json:"parentPath"`
}

type hierarchyCrumb struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

const maxHierarchyDepth = 10

// handleSearchHierarchy implements
// `GET /api/search/hierarchy?q=…&types=… -> matches with parent path for
// tree expansion` (spec.md §6.1): for each requested document type, run a
// ranked Search and, for every hit, walk its attributes.parentId chain
// within the same type so the client can expand the tree down to the
// match without a second round trip.
func handleSearchHierarchy(w http.ResponseWriter, r *http.Request) {
	q := httpkit.QueryString(r, "q", "")
	if q == "" {
		response.Error(w, errors.ErrBadRequest("q query parameter is required"))
		return
	}
	types := httpkit.QueryStringSlice(r, "types")
	if len(types) == 0 {
		response.Error(w, errors.ErrBadRequest("types query parameter is required"))
		return
	}

	var matches []hierarchyMatch
	for _, docType := range types {
		typeRepo := repo(r, docType)
		docs, err := typeRepo.Search(r.Context(), q, document.FindOptions{Limit: 25})
		if err != nil {
			response.Error(w, err)
			return
		}
		for _, d := range docs {
			path, err := parentPath(r, typeRepo, d)
			if err != nil {
				response.Error(w, err)
				return
			}
			matches = append(matches, hierarchyMatch{ID: d.ID, Type: d.Type, Title: d.Title, Status: d.Status, ParentPath: path})
		}
	}
	response.OK(w, map[string]interface{}{"matches": matches})
}

func parentPath(r *http.Request, typeRepo *repository.Repository, d document.Document) ([]hierarchyCrumb, error) {
	var path []hierarchyCrumb
	current := d
	for depth := 0; depth < maxHierarchyDepth; depth++ {
		parentID, ok := current.Attributes["parentId"].(string)
		if !ok || parentID == "" {
			break
		}
		parent, err := typeRepo.FindByID(r.Context(), parentID)
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeNotFound {
				break
			}
			return nil, err
		}
		path = append([]hierarchyCrumb{{ID: parent.ID, Title: parent.Title}}, path...)
		current = *parent
	}
	return path, nil
}

type aggregationRequest struct {
	Type   string `json:"type" validate:"required"`
	Config struct {
		BaseFilter map[string]interface{} `json:"baseFilter"`
		GroupBy    *struct {
			ID     interface{}            `json:"id"`
			Fields map[string]interface{} `json:"fields"`
		} `json:"groupBy"`
		Sort []struct {
			Field     string `json:"field"`
			Direction int    `json:"direction"`
		} `json:"sort"`
		Limit   int64                  `json:"limit"`
		Project map[string]interface{} `json:"project"`
	} `json:"config" validate:"required"`
}

// handleAggregate implements `POST /api/aggregation {config} -> aggregation
// output` (spec.md §6.1), translating the wire-level config into
// document.AggregationConfig and running it through the repository
// kernel's declarative pipeline (§4.3).
func handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregationRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	cfg := document.AggregationConfig{
		BaseFilter: req.Config.BaseFilter,
		Limit:      req.Config.Limit,
		Project:    req.Config.Project,
	}
	if req.Config.GroupBy != nil {
		cfg.GroupBy = &document.GroupBy{ID: req.Config.GroupBy.ID, Fields: req.Config.GroupBy.Fields}
	}
	for _, s := range req.Config.Sort {
		cfg.Sort = append(cfg.Sort, document.SortSpec{Field: s.Field, Direction: s.Direction})
	}

	results, err := repo(r, req.Type).Aggregate(r.Context(), cfg)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"results": results, "count": len(results)})
}
