// Package identity persists the three fixed-schema collections the
// repository kernel does not own — tenants, users, and memberships
// (spec.md §3.2, §6.2). Unlike the polymorphic document kernel, each of
// these has a stable shape and its own uniqueness constraint, so they get
// a small dedicated Mongo store instead of going through
// internal/platform/repository. The Create/duplicate-key handling is
// grounded on the teacher's customer_repository.go.
package identity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusInactive  = "inactive"

	PlatformRoleAdmin = "platform_admin"
	PlatformRoleUser  = "user"
)

// Tenant is a top-level tenant record.
type Tenant struct {
	ID        string         `bson:"_id" json:"id"`
	Slug      string         `bson:"slug" json:"slug"`
	Name      string         `bson:"name" json:"name"`
	Status    string         `bson:"status" json:"status"`
	Quotas    map[string]int `bson:"quotas,omitempty" json:"quotas,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// IsActive reports whether requests may be scoped into this tenant.
func (t Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// User is a global account record. Memberships bind it to tenants.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	PlatformRole string    `bson:"platform_role,omitempty" json:"platformRole,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsPlatformAdmin reports whether the user has the implicit all-tenant
// administrator role (spec.md §3.2).
func (u User) IsPlatformAdmin() bool {
	return u.PlatformRole == PlatformRoleAdmin
}

// Membership is an immutable (userId, tenantId, role) grant. Memberships
// are created and deleted, never updated, per spec.md §3.2.
type Membership struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	TenantID  string    `bson:"tenant_id" json:"tenantId"`
	Role      string    `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

const (
	tenantsCollection     = "tenants"
	usersCollection       = "users"
	membershipsCollection = "memberships"
)

// Duplicate errors, mirroring the teacher's domain-level ErrXAlreadyExists
// sentinels so callers can errors.Is against them.
var (
	ErrTenantSlugTaken     = fmt.Errorf("tenant slug already exists")
	ErrUserEmailTaken      = fmt.Errorf("user email already exists")
	ErrMembershipDuplicate = fmt.Errorf("membership already exists")
)

// Store is the Mongo-backed reader/writer for tenants, users, and
// memberships.
type Store struct {
	tenants     *mongo.Collection
	users       *mongo.Collection
	memberships *mongo.Collection
}

// NewStore wraps db's tenants/users/memberships collections.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		tenants:     db.Collection(tenantsCollection),
		users:       db.Collection(usersCollection),
		memberships: db.Collection(membershipsCollection),
	}
}

// EnsureIndexes creates the unique indexes named in spec.md §6.2.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.tenants.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("creating tenants.slug index: %w", err)
	}

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("creating users.email index: %w", err)
	}

	if _, err := s.memberships.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "tenant_id", Value: 1}, {Key: "role", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("creating memberships unique index: %w", err)
	}

	return nil
}

// CreateTenant inserts a new tenant.
func (s *Store) CreateTenant(ctx context.Context, t Tenant) (Tenant, error) {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = TenantStatusActive
	}

	if _, err := s.tenants.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Tenant{}, ErrTenantSlugTaken
		}
		return Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}
	return t, nil
}

// GetTenantByID returns the tenant, or nil if not found.
func (s *Store) GetTenantByID(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	err := s.tenants.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding tenant by id: %w", err)
	}
	return &t, nil
}

// GetTenantBySlug returns the tenant, or nil if not found.
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	err := s.tenants.FindOne(ctx, bson.M{"slug": slug}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding tenant by slug: %w", err)
	}
	return &t, nil
}

// ListActiveTenants returns every tenant with status=active, for the
// platform-admin implicit-membership rule in spec.md §3.2.
func (s *Store) ListActiveTenants(ctx context.Context) ([]Tenant, error) {
	cursor, err := s.tenants.Find(ctx, bson.M{"status": TenantStatusActive})
	if err != nil {
		return nil, fmt.Errorf("listing active tenants: %w", err)
	}
	defer cursor.Close(ctx)

	var tenants []Tenant
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, fmt.Errorf("decoding active tenants: %w", err)
	}
	return tenants, nil
}

// UpdateTenant applies set as a $set update to a tenant record, stamping
// UpdatedAt, for the platform-admin tenant-management routes (spec.md
// §6.1's `PUT /api/platform/tenants/:id` and `DELETE /api/platform/
// tenants/:id`, the latter setting status=inactive rather than removing
// the record — tenants are never hard-deleted since documents and
// executions still reference them).
func (s *Store) UpdateTenant(ctx context.Context, id string, set bson.M) (Tenant, error) {
	set["updated_at"] = time.Now().UTC()

	result := s.tenants.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var t Tenant
	if err := result.Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return Tenant{}, fmt.Errorf("tenant not found")
		}
		if mongo.IsDuplicateKeyError(err) {
			return Tenant{}, ErrTenantSlugTaken
		}
		return Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}
	return t, nil
}

// CountTenants returns the total number of tenant records, active or not.
func (s *Store) CountTenants(ctx context.Context) (int64, error) {
	n, err := s.tenants.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return n, nil
}

// CountUsers returns the total number of user accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrUserEmailTaken
		}
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user, or nil if not found.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns the user, or nil if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &u, nil
}

// UpdateUser applies set as a $set update to the user's own record,
// stamping UpdatedAt. Callers decide which fields are safe to expose to a
// PUT /api/auth/profile request — PasswordHash and PlatformRole are never
// patched through this path from user input.
func (s *Store) UpdateUser(ctx context.Context, id string, set bson.M) (User, error) {
	set["updated_at"] = time.Now().UTC()

	result := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var u User
	if err := result.Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return User{}, fmt.Errorf("user not found")
		}
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrUserEmailTaken
		}
		return User{}, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// CreateMembership inserts a new membership grant. Memberships are
// create-only; there is no Update.
func (s *Store) CreateMembership(ctx context.Context, m Membership) (Membership, error) {
	m.CreatedAt = time.Now().UTC()

	if _, err := s.memberships.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Membership{}, ErrMembershipDuplicate
		}
		return Membership{}, fmt.Errorf("creating membership: %w", err)
	}
	return m, nil
}

// DeleteMembership revokes a (userId, tenantId, role) grant.
func (s *Store) DeleteMembership(ctx context.Context, userID, tenantID, role string) error {
	_, err := s.memberships.DeleteOne(ctx, bson.M{"user_id": userID, "tenant_id": tenantID, "role": role})
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	return nil
}

// MembershipsForUser returns every membership the user holds.
func (s *Store) MembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	cursor, err := s.memberships.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("listing memberships for user: %w", err)
	}
	defer cursor.Close(ctx)

	var memberships []Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("decoding memberships: %w", err)
	}
	return memberships, nil
}

// MembershipFor returns the user's memberships within one tenant (a user
// may hold more than one role in the same tenant).
func (s *Store) MembershipFor(ctx context.Context, userID, tenantID string) ([]Membership, error) {
	cursor, err := s.memberships.Find(ctx, bson.M{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("finding membership: %w", err)
	}
	defer cursor.Close(ctx)

	var memberships []Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("decoding membership: %w", err)
	}
	return memberships, nil
}
