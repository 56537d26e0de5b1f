package lockdao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

const (
	lockSK       = "LOCK"
	lockTTLHours = 2 // Auto-expire stale locks after 2 hours
)

// TableName derives the release lock table name from the environment
func TableName(env string) string {
	return fmt.Sprintf("%s-release-locks", env)
}

// PK represents the partition key: {owner}/{repo}
type PK string

// NewPK creates a partition key from owner and repo
func NewPK(owner, repo string) PK {
	return PK(fmt.Sprintf("%s/%s", owner, repo))
}

// ParsePK parses a partition key into owner and repo components
func ParsePK(pk PK) (owner, repo string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {owner}/{repo}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// ID represents a lock ID in format {owner}/{repo}:LOCK
// Example: acme/widgets:LOCK
type ID string

// NewID creates an ID from owner and repo
func NewID(owner, repo string) ID {
	return ID(fmt.Sprintf("%s:%s", NewPK(owner, repo), lockSK))
}

// ParseID parses an ID into owner and repo components
func ParseID(id ID) (owner, repo string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid ID format: %s, expected {owner}/{repo}:LOCK", s)
	}
	if parts[1] != lockSK {
		return "", "", fmt.Errorf("invalid ID format: %s, expected SK to be %q, got %q", s, lockSK, parts[1])
	}
	return ParsePK(PK(parts[0]))
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// Record represents a release lock. One release runs at a time per
// repository; the lock holder is the run's KSUID.
type Record struct {
	PK           PK     `ddb:"hash" dynamodbav:"pk"`  // {owner}/{repo}
	SK           string `ddb:"range" dynamodbav:"sk"` // Always "LOCK"
	RunID        string `dynamodbav:"run_id"`         // KSUID of the run holding the lock
	ExecutionArn string `dynamodbav:"execution_arn"`  // Step Functions execution ARN
	AcquiredAt   int64  `dynamodbav:"acquired_at"`    // Unix timestamp when lock was acquired
	TTL          int64  `dynamodbav:"ttl"`            // Unix timestamp for DynamoDB TTL expiry
}

// GetID returns the ID for this record
func (r *Record) GetID() ID {
	owner, repo, _ := ParsePK(r.PK)
	return NewID(owner, repo)
}

// AcquireInput contains fields for acquiring a release lock
type AcquireInput struct {
	Owner        string // Repository owner
	Repo         string // Repository name
	RunID        string // Run KSUID
	ExecutionArn string // Step Functions execution ARN
}

// ReleaseInput contains fields for releasing a release lock
type ReleaseInput struct {
	ID    ID     // Lock ID
	RunID string // Run KSUID (must match lock holder)
}

// DAO provides data access operations for release locks
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Acquire attempts to acquire the release lock for a repository.
// Returns the lock record and true when acquired. A retry by the run
// already holding the lock succeeds; any other holder means false.
func (d *DAO) Acquire(ctx context.Context, input AcquireInput) (*Record, bool, error) {
	id := NewID(input.Owner, input.Repo)

	existing, err := d.Find(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing lock: %w", err)
	}

	if existing != nil {
		if existing.RunID == input.RunID {
			return existing, true, nil
		}
		return nil, false, nil
	}

	now := time.Now().Unix()
	record := &Record{
		PK:           NewPK(input.Owner, input.Repo),
		SK:           lockSK,
		RunID:        input.RunID,
		ExecutionArn: input.ExecutionArn,
		AcquiredAt:   now,
		TTL:          now + (lockTTLHours * 3600),
	}

	err = d.table.Put(record).RunWithContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create lock: %w", err)
	}

	return record, true, nil
}

// Find retrieves a lock record by ID
// Returns nil if not found
func (d *DAO) Find(ctx context.Context, id ID) (*Record, error) {
	owner, repo, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	pk := NewPK(owner, repo)
	var record Record

	err = d.table.Get(pk.String()).
		Range(lockSK).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return nil, nil
	}

	return &record, nil
}

// Release releases the lock. Only the holding run may release it.
func (d *DAO) Release(ctx context.Context, input ReleaseInput) error {
	owner, repo, err := ParseID(input.ID)
	if err != nil {
		return err
	}

	existing, err := d.Find(ctx, input.ID)
	if err != nil {
		return fmt.Errorf("failed to check lock: %w", err)
	}

	if existing == nil {
		// already released or expired
		return nil
	}

	if existing.RunID != input.RunID {
		return fmt.Errorf("lock not held by run %s (held by %s)", input.RunID, existing.RunID)
	}

	pk := NewPK(owner, repo)
	err = d.table.Delete(pk.String()).
		Range(lockSK).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}

	return nil
}

// Delete removes a lock record regardless of holder.
// Recovery use only.
func (d *DAO) Delete(ctx context.Context, id ID) error {
	owner, repo, err := ParseID(id)
	if err != nil {
		return err
	}

	pk := NewPK(owner, repo)
	err = d.table.Delete(pk.String()).
		Range(lockSK).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}

	return nil
}
