// Package document defines the polymorphic record shape every repository
// operates on, per the data model's §3.1 Document invariants: a tenantId
// and type fixed at creation, monotonic updatedAt, and soft-delete via
// deleted/deletedAt/deletedBy rather than physical removal.
package document

import "time"

// Document is a polymorphic record. Only the envelope fields are typed;
// everything type-specific lives in Attributes, mirroring the spec's "open
// map" requirement so the kernel never needs to know about inspection
// forms, asset records, or any other concrete shape.
type Document struct {
	ID         string                 `bson:"_id" json:"id"`
	TenantID   string                 `bson:"tenant_id" json:"tenantId"`
	Type       string                 `bson:"type" json:"type"`
	Attributes map[string]interface{} `bson:"attributes" json:"attributes"`
	Tags       []string               `bson:"tags,omitempty" json:"tags,omitempty"`
	Title      string                 `bson:"title,omitempty" json:"title,omitempty"`
	Status     string                 `bson:"status,omitempty" json:"status,omitempty"`
	OwnerID    string                 `bson:"owner_id,omitempty" json:"ownerId,omitempty"`

	Deleted   bool       `bson:"deleted" json:"deleted"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
	CreatedBy string     `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	UpdatedBy string     `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
	DeletedBy string     `bson:"deleted_by,omitempty" json:"deletedBy,omitempty"`

	// Version backs optimistic concurrency on update/delete, following the
	// teacher's CustomerRepository.Update compare-and-swap pattern.
	Version int `bson:"version" json:"version"`
}

// ImmutableFields are the keys a patch must never contain; the kernel
// rejects any update() call whose patch touches one of them.
var ImmutableFields = map[string]struct{}{
	"id":         {},
	"_id":        {},
	"tenantId":   {},
	"tenant_id":  {},
	"type":       {},
	"createdAt":  {},
	"created_at": {},
}

// SortSpec declares a single sort key and direction (1 ascending, -1
// descending), mirroring MongoDB's sort document shape.
type SortSpec struct {
	Field     string
	Direction int
}

// FindOptions configures find/search/list-style reads.
type FindOptions struct {
	Sort  []SortSpec
	Limit int64
	Skip  int64
	// IncludeDeleted overrides the kernel's default soft-delete filter.
	IncludeDeleted bool
}

// PageRequest configures findWithPagination.
type PageRequest struct {
	Page  int
	Limit int
	Sort  []SortSpec
}

// Page is the paginated result envelope; Total is an exact count.
type Page struct {
	Data  []Document
	Total int64
	Page  int
	Limit int
	Pages int
}

// Option is a label/value pair for select inputs, produced by getOptions.
type Option struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// BulkCreateReport is the partial-success report bulkCreate returns: each
// input document either lands in Created (in input order) or Failed with
// its originating index and error message.
type BulkCreateReport struct {
	Created []Document
	Failed  []BulkCreateFailure
}

// BulkCreateFailure records one failed document within a bulkCreate batch.
type BulkCreateFailure struct {
	Index int
	Error string
}

// AggregationConfig is the declarative aggregation shape from §4.3: a base
// filter, an optional grouping, sort, limit, and projection. The repository
// kernel prepends its own mandatory tenant/type/deleted filters ahead of
// BaseFilter.
type AggregationConfig struct {
	BaseFilter map[string]interface{}
	GroupBy    *GroupBy
	Sort       []SortSpec
	Limit      int64
	Project    map[string]interface{}
}

// GroupBy declares a $group stage: the grouping key expression and a set of
// named accumulator expressions (e.g. {"count": {"$sum": 1}}).
type GroupBy struct {
	ID     interface{}
	Fields map[string]interface{}
}

// Stats is the getStats result: counts broken down by status and by type.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
	ByType   map[string]int64 `json:"byType"`
}
