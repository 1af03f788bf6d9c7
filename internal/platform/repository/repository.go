// Package repository implements the generic polymorphic document repository
// kernel (spec.md §4.2): every route's only path to the database, with
// tenant scoping, soft-delete filtering, and audit emission enforced as
// structural properties rather than per-handler discipline. The Mongo
// filter-composition style — bson.M builders, options.Find(), mongo.Pipeline
// aggregation, optimistic-version compare-and-swap on update — is grounded
// on the teacher's
// internal/customer/infrastructure/persistence/mongodb/customer_repository.go,
// generalized from one hardcoded "customers" collection into a generic
// "documents" collection parameterized by Document.Type.
package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/pkg/errors"
)

const collectionName = "documents"

// Repository is the generic document store scoped to one tenant context
// and one document type, per spec.md's "new Repository(tenantContext,
// type, requestContext)" construction contract.
type Repository struct {
	collection *mongo.Collection
	docType    string
	trail      audit.Trail
	rc         tenancy.RequestContext
}

// New constructs a Repository for docType scoped to rc's tenant context.
func New(db *mongo.Database, docType string, trail audit.Trail, rc tenancy.RequestContext) *Repository {
	return &Repository{
		collection: db.Collection(collectionName),
		docType:    docType,
		trail:      trail,
		rc:         rc,
	}
}

// EnsureIndexes creates the compound indexes named in spec.md §6.2. It is
// run once at startup against the shared documents collection, following
// pkg/database.MongoDB.CreateIndexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(collectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "type", Value: 1}, {Key: "deleted", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "owner_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "tags", Value: 1}},
		},
	}

	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("creating document indexes: %w", err)
	}
	return nil
}

// buildFilter augments a caller-supplied filter with the kernel's three
// mandatory clauses (invariants 1-3 in spec.md §4.2): tenant scope (omitted
// for a platform admin scoped to all tenants), soft-delete exclusion
// (unless explicitly overridden), and type scope.
func (r *Repository) buildFilter(filter map[string]interface{}, includeDeleted bool) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}

	if !r.rc.Tenant.ScopedToAllTenants() {
		out["tenant_id"] = r.rc.Tenant.TenantID
	}

	out["type"] = r.docType

	if !includeDeleted {
		out["deleted"] = bson.M{"$ne": true}
	}

	return out
}

func findOptionsFor(opts document.FindOptions) *options.FindOptions {
	fo := options.Find()
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			sort = append(sort, bson.E{Key: s.Field, Value: s.Direction})
		}
		fo.SetSort(sort)
	}
	return fo
}

// Find returns matching non-deleted documents of this repository's type in
// tenant scope.
func (r *Repository) Find(ctx context.Context, filter map[string]interface{}, opts document.FindOptions) ([]document.Document, error) {
	f := r.buildFilter(filter, opts.IncludeDeleted)

	cursor, err := r.collection.Find(ctx, f, findOptionsFor(opts))
	if err != nil {
		return nil, errors.ErrDatabase(err, "find")
	}
	defer cursor.Close(ctx)

	var docs []document.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.ErrDatabase(err, "find.decode")
	}
	return docs, nil
}

// FindByID returns the document or nil if not found (or outside scope).
func (r *Repository) FindByID(ctx context.Context, id string) (*document.Document, error) {
	f := r.buildFilter(bson.M{"_id": id}, false)

	var doc document.Document
	err := r.collection.FindOne(ctx, f).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrDatabase(err, "findById")
	}
	return &doc, nil
}

// FindOne returns the first document matching filter, or nil.
func (r *Repository) FindOne(ctx context.Context, filter map[string]interface{}) (*document.Document, error) {
	f := r.buildFilter(filter, false)

	var doc document.Document
	err := r.collection.FindOne(ctx, f).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrDatabase(err, "findOne")
	}
	return &doc, nil
}

// FindWithPagination returns a page of documents with an exact total count.
// limit is capped at 200 per spec.md §4.2. limit == 0 is a valid explicit
// request for an empty page (spec.md §8: "Pagination with limit=0 → empty
// data, total correct"), distinct from an unset limit — defaulting that
// belongs to the route layer, which knows whether the caller omitted the
// field at all.
func (r *Repository) FindWithPagination(ctx context.Context, filter map[string]interface{}, req document.PageRequest) (document.Page, error) {
	if req.Limit < 0 {
		return document.Page{}, errors.ErrValidation("limit must not be negative")
	}
	if req.Limit > 200 {
		return document.Page{}, errors.ErrValidation("limit must not exceed 200")
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	f := r.buildFilter(filter, false)

	total, err := r.collection.CountDocuments(ctx, f)
	if err != nil {
		return document.Page{}, errors.ErrDatabase(err, "findWithPagination.count")
	}

	if req.Limit == 0 {
		return document.Page{Data: nil, Total: total, Page: req.Page, Limit: 0, Pages: 0}, nil
	}

	opts := document.FindOptions{
		Sort:  req.Sort,
		Limit: int64(req.Limit),
		Skip:  int64((req.Page - 1) * req.Limit),
	}
	fo := findOptionsFor(opts)

	cursor, err := r.collection.Find(ctx, f, fo)
	if err != nil {
		return document.Page{}, errors.ErrDatabase(err, "findWithPagination.find")
	}
	defer cursor.Close(ctx)

	var docs []document.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return document.Page{}, errors.ErrDatabase(err, "findWithPagination.decode")
	}

	pages := int(total) / req.Limit
	if int(total)%req.Limit > 0 {
		pages++
	}

	return document.Page{
		Data:  docs,
		Total: total,
		Page:  req.Page,
		Limit: req.Limit,
		Pages: pages,
	}, nil
}

// Create sets id/tenantId/type/deleted/createdAt/updatedAt, persists, and
// writes a CREATE audit event.
func (r *Repository) Create(ctx context.Context, data map[string]interface{}) (document.Document, error) {
	now := time.Now().UTC()

	doc := document.Document{
		ID:        uuid.NewString(),
		TenantID:  r.ownerTenantID(),
		Type:      r.docType,
		Deleted:   false,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		CreatedBy: r.rc.Tenant.UserID,
	}
	applyMutableFields(&doc, data)

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return document.Document{}, errors.ErrDatabase(err, "create")
	}

	r.emit(ctx, audit.EventCreate, doc.ID, nil, toAuditMap(doc))

	return doc, nil
}

// ownerTenantID returns the tenant id a newly created document should carry.
// A platform admin scoped to all tenants has no single tenant to stamp, so
// callers creating on their behalf must scope the request to one tenant
// first (enforced by the route framework, not the kernel).
func (r *Repository) ownerTenantID() string {
	return r.rc.Tenant.TenantID
}

// Update applies patch, rejecting any attempt to touch an immutable field,
// and writes an UPDATE audit event with before/after snapshots. Optimistic
// concurrency follows the teacher's compare-and-swap: the replace filter
// includes the version read at fetch time, and a zero MatchedCount is
// resolved into NotFound vs VersionConflict by re-reading.
func (r *Repository) Update(ctx context.Context, id string, patch map[string]interface{}) (document.Document, error) {
	return r.update(ctx, id, patch, true)
}

// UpdateQuiet applies patch exactly like Update but does not emit an
// audit event. It exists for the workflow engine's checkpoint writes
// (SPEC_FULL.md §4.4): checkpoints are high-frequency progress updates to
// an execution document, and auditing every one of them would flood
// audit_events without adding investigative value — only an execution's
// creation and terminal-state transition go through Update.
func (r *Repository) UpdateQuiet(ctx context.Context, id string, patch map[string]interface{}) (document.Document, error) {
	return r.update(ctx, id, patch, false)
}

func (r *Repository) update(ctx context.Context, id string, patch map[string]interface{}, audited bool) (document.Document, error) {
	for field := range patch {
		if _, immutable := document.ImmutableFields[field]; immutable {
			return document.Document{}, errors.ErrValidation(fmt.Sprintf("field %q is immutable", field))
		}
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	if existing == nil {
		return document.Document{}, errors.ErrNotFound("document")
	}

	before := *existing
	updated := *existing
	applyMutableFields(&updated, patch)
	updated.UpdatedAt = time.Now().UTC()
	updated.UpdatedBy = r.rc.Tenant.UserID
	updated.Version = before.Version + 1

	filter := r.buildFilter(bson.M{"_id": id, "version": before.Version}, false)
	result, err := r.collection.ReplaceOne(ctx, filter, updated)
	if err != nil {
		return document.Document{}, errors.ErrDatabase(err, "update")
	}

	if result.MatchedCount == 0 {
		reread, rerr := r.FindByID(ctx, id)
		if rerr == nil && reread == nil {
			return document.Document{}, errors.ErrNotFound("document")
		}
		return document.Document{}, errors.New(errors.ErrCodeVersionConflict, "document was modified concurrently")
	}

	if audited {
		r.emit(ctx, audit.EventUpdate, id, toAuditMap(before), toAuditMap(updated))
	}

	return updated, nil
}

// Delete soft-deletes: sets deleted=true, deletedAt, deletedBy, writes a
// DELETE audit event.
func (r *Repository) Delete(ctx context.Context, id string) error {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.ErrNotFound("document")
	}

	now := time.Now().UTC()
	filter := r.buildFilter(bson.M{"_id": id}, false)
	update := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"deleted_by": r.rc.Tenant.UserID,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.ErrDatabase(err, "delete")
	}
	if result.MatchedCount == 0 {
		return errors.ErrNotFound("document")
	}

	after := *existing
	after.Deleted = true
	after.DeletedAt = &now
	after.DeletedBy = r.rc.Tenant.UserID

	r.emit(ctx, audit.EventDelete, id, toAuditMap(*existing), toAuditMap(after))
	return nil
}

// HardDelete irreversibly removes the document and writes a HARD_DELETE
// audit event. It is a separate administrative operation from Delete.
func (r *Repository) HardDelete(ctx context.Context, id string) error {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.ErrNotFound("document")
	}

	filter := r.buildFilter(bson.M{"_id": id}, true)
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return errors.ErrDatabase(err, "hardDelete")
	}
	if result.DeletedCount == 0 {
		return errors.ErrNotFound("document")
	}

	r.emit(ctx, audit.EventHardDelete, id, toAuditMap(*existing), nil)
	return nil
}

// searchFields are the text fields a free-text search matches against,
// per spec.md §4.2's search contract.
var searchFields = []string{"title", "name", "code", "description"}

// Search returns documents whose title, name, code, description, or tags
// case-insensitively contain term, ranked by how many fields matched.
// Grounded on the teacher's CustomerRepository.Search, adapted from a
// Mongo text index (this kernel's polymorphic Attributes map can't carry
// a static text index across every possible shape) to an $or regex match
// plus an in-memory match-count rank, acceptable at this system's
// document-volume scale.
func (r *Repository) Search(ctx context.Context, term string, opts document.FindOptions) ([]document.Document, error) {
	f := r.buildFilter(nil, opts.IncludeDeleted)

	if term != "" {
		pattern := caseInsensitiveRegex(term)
		or := bson.A{}
		for _, field := range searchFields {
			or = append(or, bson.M{mongoFieldPath(field): pattern})
		}
		or = append(or, bson.M{"tags": pattern})
		f["$or"] = or
	}

	cursor, err := r.collection.Find(ctx, f, findOptionsFor(opts))
	if err != nil {
		return nil, errors.ErrDatabase(err, "search")
	}
	defer cursor.Close(ctx)

	var docs []document.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.ErrDatabase(err, "search.decode")
	}

	if term != "" {
		sortByMatchCount(docs, term)
	}
	return docs, nil
}

func caseInsensitiveRegex(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

// sortByMatchCount ranks docs by how many of searchFields (plus tags)
// case-insensitively contain term, descending, stable on ties.
func sortByMatchCount(docs []document.Document, term string) {
	lower := strings.ToLower(term)
	containsFold := func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
	score := func(d document.Document) int {
		n := 0
		if containsFold(d.Title) {
			n++
		}
		for _, tag := range d.Tags {
			if containsFold(tag) {
				n++
			}
		}
		if s, ok := d.Attributes["name"].(string); ok && containsFold(s) {
			n++
		}
		if s, ok := d.Attributes["code"].(string); ok && containsFold(s) {
			n++
		}
		if s, ok := d.Attributes["description"].(string); ok && containsFold(s) {
			n++
		}
		return n
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return score(docs[i]) > score(docs[j])
	})
}

// GetOptions returns {label, value} pairs for a select input, drawn from
// the first matching (non-deleted, tenant/type-scoped) documents.
func (r *Repository) GetOptions(ctx context.Context, filter map[string]interface{}, labelField, valueField string) ([]document.Option, error) {
	docs, err := r.Find(ctx, filter, document.FindOptions{Limit: 200})
	if err != nil {
		return nil, err
	}

	options := make([]document.Option, 0, len(docs))
	for _, d := range docs {
		options = append(options, document.Option{
			Label: fieldValue(d, labelField),
			Value: fieldValue(d, valueField),
		})
	}
	return options, nil
}

// GetDistinctValues returns the distinct scalar values of field across
// matching documents.
func (r *Repository) GetDistinctValues(ctx context.Context, field string, filter map[string]interface{}) ([]interface{}, error) {
	f := r.buildFilter(filter, false)
	values, err := r.collection.Distinct(ctx, mongoFieldPath(field), f)
	if err != nil {
		return nil, errors.ErrDatabase(err, "getDistinctValues")
	}
	return values, nil
}

// FindByRelation returns documents where field equals value, a thin
// convenience wrapper over Find for foreign-key-style lookups.
func (r *Repository) FindByRelation(ctx context.Context, field string, value interface{}, opts document.FindOptions) ([]document.Document, error) {
	return r.Find(ctx, bson.M{mongoFieldPath(field): value}, opts)
}

// GetStats returns counts by status and by type across matching
// documents, grounded on the teacher's CountByStatus/GetStats aggregation
// pipelines.
func (r *Repository) GetStats(ctx context.Context, filter map[string]interface{}) (document.Stats, error) {
	f := r.buildFilter(filter, false)

	total, err := r.collection.CountDocuments(ctx, f)
	if err != nil {
		return document.Stats{}, errors.ErrDatabase(err, "getStats.total")
	}

	byStatus, err := r.countBy(ctx, f, "status")
	if err != nil {
		return document.Stats{}, err
	}
	byType, err := r.countBy(ctx, f, "type")
	if err != nil {
		return document.Stats{}, err
	}

	return document.Stats{Total: total, ByStatus: byStatus, ByType: byType}, nil
}

func (r *Repository) countBy(ctx context.Context, filter bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.ErrDatabase(err, "getStats."+field)
	}
	defer cursor.Close(ctx)

	out := map[string]int64{}
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.ErrDatabase(err, "getStats."+field+".decode")
		}
		if row.ID == "" {
			row.ID = "unspecified"
		}
		out[row.ID] = row.Count
	}
	return out, nil
}

// Aggregate composes cfg into a pipeline prefixed by the kernel's
// mandatory tenant/type/deleted filters, per spec.md §4.3. Any filter
// value under a recognized date operator ($gte/$lte/$gt/$lt) that arrives
// as an ISO-8601 string is coerced via $toDate in a leading $addFields
// stage, since the polymorphic Attributes map has no static date type.
func (r *Repository) Aggregate(ctx context.Context, cfg document.AggregationConfig) ([]map[string]interface{}, error) {
	if cfg.Limit > 10000 {
		return nil, errors.ErrValidation("aggregation limit must not exceed 10000")
	}

	match := r.buildFilter(cfg.BaseFilter, false)
	pipeline := mongo.Pipeline{}

	if dateFields := dateCoercionFields(cfg.BaseFilter); len(dateFields) > 0 {
		addFields := bson.M{}
		for _, f := range dateFields {
			addFields[f] = bson.M{"$toDate": "$" + f}
		}
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: addFields}})
	}

	pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})

	if cfg.GroupBy != nil {
		group := bson.M{"_id": cfg.GroupBy.ID}
		for k, v := range cfg.GroupBy.Fields {
			group[k] = v
		}
		pipeline = append(pipeline, bson.D{{Key: "$group", Value: group}})
	}

	if len(cfg.Sort) > 0 {
		sortStage := bson.D{}
		for _, s := range cfg.Sort {
			sortStage = append(sortStage, bson.E{Key: s.Field, Value: s.Direction})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortStage}})
	}

	if cfg.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: cfg.Limit}})
	}

	if cfg.Project != nil {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: cfg.Project}})
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.ErrDatabase(err, "aggregate")
	}
	defer cursor.Close(ctx)

	var results []map[string]interface{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, errors.ErrDatabase(err, "aggregate.decode")
	}
	return results, nil
}

var dateOperators = map[string]struct{}{"$gte": {}, "$lte": {}, "$gt": {}, "$lt": {}}

// dateCoercionFields finds top-level filter fields whose value is a date
// operator map holding an ISO-8601 string, so Aggregate knows which
// fields need a $toDate $addFields stage ahead of the $match.
func dateCoercionFields(filter map[string]interface{}) []string {
	var fields []string
	for field, v := range filter {
		ops, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		for op, val := range ops {
			if _, isDateOp := dateOperators[op]; !isDateOp {
				continue
			}
			if s, ok := val.(string); ok {
				if _, err := time.Parse(time.RFC3339, s); err == nil {
					fields = append(fields, field)
				}
			}
		}
	}
	return fields
}

// BulkCreate inserts docs with per-document success/error reporting;
// partial success is allowed, per spec.md §4.2. Each created document
// still emits a CREATE audit event, matching the invariant that every
// mutation is audited.
func (r *Repository) BulkCreate(ctx context.Context, docs []map[string]interface{}) document.BulkCreateReport {
	report := document.BulkCreateReport{}
	for i, data := range docs {
		created, err := r.Create(ctx, data)
		if err != nil {
			report.Failed = append(report.Failed, document.BulkCreateFailure{Index: i, Error: err.Error()})
			continue
		}
		report.Created = append(report.Created, created)
	}
	return report
}

func fieldValue(d document.Document, field string) interface{} {
	switch field {
	case "id":
		return d.ID
	case "title":
		return d.Title
	case "status":
		return d.Status
	default:
		return d.Attributes[field]
	}
}

func mongoFieldPath(field string) string {
	switch field {
	case "id":
		return "_id"
	case "title", "status", "tags", "ownerId", "owner_id":
		if field == "ownerId" {
			return "owner_id"
		}
		return field
	default:
		return "attributes." + field
	}
}

func (r *Repository) emit(ctx context.Context, eventType audit.EventType, resourceID string, before, after map[string]interface{}) {
	event := audit.NewEventBuilder(r.rc.Tenant.TenantID, eventType).
		WithActor(r.rc.Tenant.UserID).
		WithResource(r.docType, resourceID).
		WithBefore(before).
		WithAfter(after).
		Build()
	r.trail.Append(ctx, event)
}

// applyMutableFields copies every key in data onto the document's
// Attributes map, plus the well-known mutable envelope fields (title,
// status, tags, ownerId) when present, mirroring how the teacher's
// Update flattens a patch onto the aggregate before ReplaceOne.
func applyMutableFields(doc *document.Document, data map[string]interface{}) {
	if doc.Attributes == nil {
		doc.Attributes = map[string]interface{}{}
	}
	for k, v := range data {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				doc.Title = s
			}
		case "status":
			if s, ok := v.(string); ok {
				doc.Status = s
			}
		case "ownerId":
			if s, ok := v.(string); ok {
				doc.OwnerID = s
			}
		case "tags":
			if tags, ok := v.([]string); ok {
				doc.Tags = tags
			}
		default:
			doc.Attributes[k] = v
		}
	}
}

func toAuditMap(doc document.Document) map[string]interface{} {
	return map[string]interface{}{
		"title":      doc.Title,
		"status":     doc.Status,
		"tags":       doc.Tags,
		"ownerId":    doc.OwnerID,
		"attributes": doc.Attributes,
		"deleted":    doc.Deleted,
		"version":    doc.Version,
	}
}
