// Package fixtures provides test data fixtures for integration testing.
package fixtures

import (
	"time"

	"github.com/google/uuid"
)

// TestIDs contains commonly used test UUIDs.
var TestIDs = struct {
	TenantID1      uuid.UUID
	TenantID2      uuid.UUID
	UserID1        uuid.UUID
	UserID2        uuid.UUID
	UserID3        uuid.UUID
	MembershipID1  uuid.UUID
	MembershipID2  uuid.UUID
	DocumentID1    uuid.UUID
	DocumentID2    uuid.UUID
	DocumentID3    uuid.UUID
	WorkflowID1    uuid.UUID
	WorkflowID2    uuid.UUID
	ExecutionID1   uuid.UUID
	ExecutionID2   uuid.UUID
	AuditEntryID1  uuid.UUID
	FeatureFlagID1 uuid.UUID
}{
	TenantID1:      uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	TenantID2:      uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	UserID1:        uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
	UserID2:        uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"),
	UserID3:        uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc"),
	MembershipID1:  uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd"),
	MembershipID2:  uuid.MustParse("eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee"),
	DocumentID1:    uuid.MustParse("f1111111-1111-1111-1111-111111111111"),
	DocumentID2:    uuid.MustParse("f2222222-2222-2222-2222-222222222222"),
	DocumentID3:    uuid.MustParse("f3333333-3333-3333-3333-333333333333"),
	WorkflowID1:    uuid.MustParse("90731111-1111-1111-1111-111111111111"),
	WorkflowID2:    uuid.MustParse("90732222-2222-2222-2222-222222222222"),
	ExecutionID1:   uuid.MustParse("e7ec1111-1111-1111-1111-111111111111"),
	ExecutionID2:   uuid.MustParse("e7ec2222-2222-2222-2222-222222222222"),
	AuditEntryID1:  uuid.MustParse("ad171111-1111-1111-1111-111111111111"),
	FeatureFlagID1: uuid.MustParse("f7a91111-1111-1111-1111-111111111111"),
}

// TenantFixture represents a test tenant.
type TenantFixture struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Status    string
	Plan      string
	Settings  map[string]interface{}
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultTenantFixtures returns default tenant fixtures.
func DefaultTenantFixtures() []TenantFixture {
	now := time.Now().UTC()
	return []TenantFixture{
		{
			ID:        TestIDs.TenantID1,
			Name:      "Test Tenant 1",
			Slug:      "test-tenant-1",
			Status:    "active",
			Plan:      "professional",
			Settings:  map[string]interface{}{"timezone": "UTC"},
			Metadata:  map[string]interface{}{"source": "test"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        TestIDs.TenantID2,
			Name:      "Test Tenant 2",
			Slug:      "test-tenant-2",
			Status:    "active",
			Plan:      "enterprise",
			Settings:  map[string]interface{}{"timezone": "Asia/Jakarta"},
			Metadata:  map[string]interface{}{"source": "test"},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// UserFixture represents a test user.
type UserFixture struct {
	ID              uuid.UUID
	Email           string
	FirstName       string
	LastName        string
	Status          string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultUserFixtures returns default user fixtures. Credential storage is
// out of scope; users exist only to be referenced by membership and audit
// fixtures.
func DefaultUserFixtures() []UserFixture {
	now := time.Now().UTC()
	return []UserFixture{
		{
			ID:              TestIDs.UserID1,
			Email:           "admin@test.com",
			FirstName:       "Admin",
			LastName:        "User",
			Status:          "active",
			EmailVerifiedAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:        TestIDs.UserID2,
			Email:     "inspector@test.com",
			FirstName: "Inspector",
			LastName:  "One",
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        TestIDs.UserID3,
			Email:     "inspector2@test.com",
			FirstName: "Inspector",
			LastName:  "Two",
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// MembershipFixture represents a test tenant membership, binding a user to
// a tenant with a set of tenant-scoped roles.
type MembershipFixture struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Roles     []string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultMembershipFixtures returns default membership fixtures.
func DefaultMembershipFixtures() []MembershipFixture {
	now := time.Now().UTC()
	return []MembershipFixture{
		{
			ID:        TestIDs.MembershipID1,
			TenantID:  TestIDs.TenantID1,
			UserID:    TestIDs.UserID1,
			Roles:     []string{"tenant_admin"},
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        TestIDs.MembershipID2,
			TenantID:  TestIDs.TenantID1,
			UserID:    TestIDs.UserID2,
			Roles:     []string{"inspector"},
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// DocumentFixture represents a test polymorphic document (for MongoDB).
type DocumentFixture struct {
	ID         uuid.UUID              `bson:"_id"`
	TenantID   uuid.UUID              `bson:"tenant_id"`
	Type       string                 `bson:"type"`
	Title      string                 `bson:"title"`
	Status     string                 `bson:"status"`
	Attributes map[string]interface{} `bson:"attributes"`
	Tags       []string               `bson:"tags"`
	OwnerID    *uuid.UUID             `bson:"owner_id"`
	Version    int                    `bson:"version"`
	CreatedAt  time.Time              `bson:"created_at"`
	UpdatedAt  time.Time              `bson:"updated_at"`
	DeletedAt  *time.Time             `bson:"deleted_at"`
}

// DefaultDocumentFixtures returns default document fixtures, covering two
// types ("inspection" and "asset") across two tenants to exercise the
// repository's tenant-isolation and type-filtering paths.
func DefaultDocumentFixtures() []DocumentFixture {
	now := time.Now().UTC()
	return []DocumentFixture{
		{
			ID:         TestIDs.DocumentID1,
			TenantID:   TestIDs.TenantID1,
			Type:       "inspection",
			Title:      "Boiler Room Quarterly Inspection",
			Status:     "open",
			Attributes: map[string]interface{}{"site": "plant-1", "severity": "medium"},
			Tags:       []string{"boiler", "quarterly"},
			OwnerID:    &TestIDs.UserID2,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:         TestIDs.DocumentID2,
			TenantID:   TestIDs.TenantID1,
			Type:       "asset",
			Title:      "Conveyor Belt C-12",
			Status:     "active",
			Attributes: map[string]interface{}{"manufacturer": "Acme", "install_year": 2019},
			Tags:       []string{"conveyor"},
			OwnerID:    &TestIDs.UserID1,
			Version:    2,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:         TestIDs.DocumentID3,
			TenantID:   TestIDs.TenantID2,
			Type:       "inspection",
			Title:      "Tenant 2 Fire Safety Audit",
			Status:     "closed",
			Attributes: map[string]interface{}{"site": "warehouse-4"},
			Tags:       []string{"fire-safety"},
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// WorkflowDefinitionFixture represents a test workflow definition.
type WorkflowDefinitionFixture struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description string
	Nodes       []WorkflowNodeFixture
	Edges       []WorkflowEdgeFixture
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkflowNodeFixture represents a single node in a test workflow graph.
type WorkflowNodeFixture struct {
	ID         string
	AgentType  string
	Parameters map[string]interface{}
}

// WorkflowEdgeFixture represents a directed edge in a test workflow graph,
// optionally gated by a condition expression evaluated against state.
type WorkflowEdgeFixture struct {
	FromNodeID string
	ToNodeID   string
	Condition  string
}

// DefaultWorkflowFixtures returns default workflow fixtures: a two-node
// linear pipeline and a three-node branch to exercise the DAG compiler's
// conditional-edge routing.
func DefaultWorkflowFixtures() []WorkflowDefinitionFixture {
	now := time.Now().UTC()
	return []WorkflowDefinitionFixture{
		{
			ID:          TestIDs.WorkflowID1,
			TenantID:    TestIDs.TenantID1,
			Name:        "Inspection Triage",
			Description: "Classifies an inspection document and aggregates its risk score",
			Nodes: []WorkflowNodeFixture{
				{ID: "classify", AgentType: "dynamic", Parameters: map[string]interface{}{"prompt": "classify severity"}},
				{ID: "score", AgentType: "aggregator", Parameters: map[string]interface{}{"expression": "severity_weight * 10"}},
			},
			Edges: []WorkflowEdgeFixture{
				{FromNodeID: "classify", ToNodeID: "score"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          TestIDs.WorkflowID2,
			TenantID:    TestIDs.TenantID1,
			Name:        "Asset Risk Branch",
			Description: "Branches to a fast-track or escalation path based on risk score",
			Nodes: []WorkflowNodeFixture{
				{ID: "assess", AgentType: "aggregator", Parameters: map[string]interface{}{"expression": "(age_years * 2) + incident_count"}},
				{ID: "fast_track", AgentType: "dynamic", Parameters: map[string]interface{}{"prompt": "summarize low risk"}},
				{ID: "escalate", AgentType: "dynamic", Parameters: map[string]interface{}{"prompt": "summarize high risk"}},
			},
			Edges: []WorkflowEdgeFixture{
				{FromNodeID: "assess", ToNodeID: "fast_track", Condition: "risk_score < 20"},
				{FromNodeID: "assess", ToNodeID: "escalate", Condition: "risk_score >= 20"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ExecutionFixture represents a test workflow execution record.
type ExecutionFixture struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	WorkflowID uuid.UUID
	Status     string
	State      map[string]interface{}
	StartedAt  time.Time
	EndedAt    *time.Time
}

// DefaultExecutionFixtures returns default execution fixtures.
func DefaultExecutionFixtures() []ExecutionFixture {
	now := time.Now().UTC()
	ended := now.Add(-5 * time.Minute)
	return []ExecutionFixture{
		{
			ID:         TestIDs.ExecutionID1,
			TenantID:   TestIDs.TenantID1,
			WorkflowID: TestIDs.WorkflowID1,
			Status:     "completed",
			State:      map[string]interface{}{"severity_weight": 3, "risk_score": 30},
			StartedAt:  now.Add(-10 * time.Minute),
			EndedAt:    &ended,
		},
		{
			ID:         TestIDs.ExecutionID2,
			TenantID:   TestIDs.TenantID1,
			WorkflowID: TestIDs.WorkflowID2,
			Status:     "running",
			State:      map[string]interface{}{"age_years": 5, "incident_count": 1},
			StartedAt:  now,
		},
	}
}

// AuditEntryFixture represents a test audit trail entry.
type AuditEntryFixture struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ActorID     uuid.UUID
	Action      string
	AggregateID uuid.UUID
	Before      map[string]interface{}
	After       map[string]interface{}
	CreatedAt   time.Time
}

// DefaultAuditEntryFixtures returns default audit trail fixtures.
func DefaultAuditEntryFixtures() []AuditEntryFixture {
	now := time.Now().UTC()
	return []AuditEntryFixture{
		{
			ID:          TestIDs.AuditEntryID1,
			TenantID:    TestIDs.TenantID1,
			ActorID:     TestIDs.UserID1,
			Action:      "document.updated",
			AggregateID: TestIDs.DocumentID1,
			Before:      map[string]interface{}{"status": "draft"},
			After:       map[string]interface{}{"status": "open"},
			CreatedAt:   now,
		},
	}
}

// FeatureFlagFixture represents a test feature flag.
type FeatureFlagFixture struct {
	ID         uuid.UUID
	TenantID   *uuid.UUID
	Key        string
	Enabled    bool
	RolloutPct int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DefaultFeatureFlagFixtures returns default feature flag fixtures.
func DefaultFeatureFlagFixtures() []FeatureFlagFixture {
	now := time.Now().UTC()
	return []FeatureFlagFixture{
		{
			ID:         TestIDs.FeatureFlagID1,
			TenantID:   nil,
			Key:        "vector_search",
			Enabled:    true,
			RolloutPct: 100,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// EventFixture represents a test event for event bus testing.
type EventFixture struct {
	ID          string
	Type        string
	TenantID    string
	AggregateID string
	Version     int
	Timestamp   time.Time
	Data        map[string]interface{}
}

// DefaultEventFixtures returns default event fixtures.
func DefaultEventFixtures() []EventFixture {
	now := time.Now().UTC()
	return []EventFixture{
		{
			ID:          uuid.New().String(),
			Type:        "document.created",
			TenantID:    TestIDs.TenantID1.String(),
			AggregateID: TestIDs.DocumentID1.String(),
			Version:     1,
			Timestamp:   now,
			Data: map[string]interface{}{
				"kind":  "inspection",
				"title": "Boiler Room Quarterly Inspection",
			},
		},
		{
			ID:          uuid.New().String(),
			Type:        "workflow.completed",
			TenantID:    TestIDs.TenantID1.String(),
			AggregateID: TestIDs.ExecutionID1.String(),
			Version:     1,
			Timestamp:   now,
			Data: map[string]interface{}{
				"workflow_id": TestIDs.WorkflowID1.String(),
				"status":      "completed",
			},
		},
		{
			ID:          uuid.New().String(),
			Type:        "audit.appended",
			TenantID:    TestIDs.TenantID1.String(),
			AggregateID: TestIDs.AuditEntryID1.String(),
			Version:     1,
			Timestamp:   now,
			Data: map[string]interface{}{
				"action": "document.updated",
			},
		},
	}
}

// NewUUID generates a new UUID for testing.
func NewUUID() uuid.UUID {
	return uuid.New()
}

// TimeNow returns the current UTC time.
func TimeNow() time.Time {
	return time.Now().UTC()
}

// TimePast returns a time in the past.
func TimePast(d time.Duration) time.Time {
	return time.Now().UTC().Add(-d)
}

// TimeFuture returns a time in the future.
func TimeFuture(d time.Duration) time.Time {
	return time.Now().UTC().Add(d)
}
