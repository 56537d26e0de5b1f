package rundao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
)

const latest = "latest"

// TableName derives the release run table name from the environment
func TableName(env string) string {
	return fmt.Sprintf("%s-release-runs", env)
}

// PK represents a DynamoDB partition key in format {owner}/{repo}
// Example: acme/widgets
type PK string

// NewPK creates a new partition key from owner and repo
func NewPK(owner, repo string) PK {
	return PK(fmt.Sprintf("%s/%s", owner, repo))
}

// ParsePK parses a partition key into its owner and repo components
func ParsePK(pk PK) (owner, repo string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {owner}/{repo}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// ID represents a run ID in format {owner}/{repo}:{ksuid}
// Example: acme/widgets:2HFj3kLmNoPqRsTuVwXy
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID parses a run ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid run ID format: %s, expected {owner}/{repo}:{ksuid}", s)
	}
	return PK(parts[0]), parts[1], nil
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// RunStatus represents the current status of a release run
type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the status is a final state
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// ParseStatus validates a raw status string from an external payload
func ParseStatus(s string) (RunStatus, error) {
	switch status := RunStatus(s); status {
	case RunStatusPending, RunStatusInProgress, RunStatusSuccess, RunStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown run status: %q", s)
	}
}

// Record represents a release run record in DynamoDB
type Record struct {
	PK             PK        `ddb:"hash" dynamodbav:"pk"`  // {owner}/{repo} - DynamoDB partition key
	SK             string    `ddb:"range" dynamodbav:"sk"` // KSUID - DynamoDB sort key
	ID             ID        `dynamodbav:"id,omitempty"`   // ID is only used for latest entries
	Owner          string    `dynamodbav:"owner,omitempty"`
	Repo           string    `dynamodbav:"repo,omitempty"`
	Tag            string    `dynamodbav:"tag,omitempty"`     // Release tag, e.g. v1.2.3
	Version        string    `dynamodbav:"version,omitempty"` // Version derived from the tag
	BaseBranch     string    `dynamodbav:"base_branch,omitempty"`
	ReleaseBranch  string    `dynamodbav:"release_branch,omitempty"`
	CommitSHA      string    `dynamodbav:"commit_sha,omitempty"`
	Status         RunStatus `dynamodbav:"status,omitempty"`
	ExecutionArn   *string   `dynamodbav:"execution_arn,omitempty"` // Step Functions execution ARN
	ArtifactBucket string    `dynamodbav:"artifact_bucket,omitempty"`
	ArtifactKey    string    `dynamodbav:"artifact_key,omitempty"`
	PRNumber       *int      `dynamodbav:"pr_number,omitempty"`
	PRURL          *string   `dynamodbav:"pr_url,omitempty"`
	ErrorMsg       *string   `dynamodbav:"error_msg,omitempty"`
	CreatedAt      int64     `dynamodbav:"created_at,omitempty"`  // Unix epoch timestamp of creation
	FinishedAt     *int64    `dynamodbav:"finished_at,omitempty"` // Unix epoch timestamp of completion
	UpdatedAt      int64     `dynamodbav:"updated_at,omitempty"`  // Unix epoch timestamp of last update
}

// GetID returns the full run ID in format: {owner}/{repo}:{ksuid}
func (r *Record) GetID() ID {
	if r.ID != "" {
		return r.ID
	}
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields needed to create a new run record
type CreateInput struct {
	Owner         string // Repository owner
	Repo          string // Repository name
	SK            string // KSUID sort key
	Tag           string // Release tag, e.g. v1.2.3
	Version       string // Derived version string
	BaseBranch    string // PR target branch
	ReleaseBranch string // Branch carrying the bump commits
	CommitSHA     string // Commit the tag points at
}

// UpdateInput contains the fields that can be updated on a run record
type UpdateInput struct {
	PK       PK         // Partition key (owner/repo)
	SK       string     // Sort key (KSUID)
	Status   *RunStatus // New status
	ErrorMsg *string    // Error message (optional)
}

// DAO provides data access operations for release run records
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

// Create creates a new run record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	pk := NewPK(input.Owner, input.Repo)
	now := time.Now().Unix()

	record := Record{
		PK:            pk,
		SK:            input.SK,
		Owner:         input.Owner,
		Repo:          input.Repo,
		Tag:           input.Tag,
		Version:       input.Version,
		BaseBranch:    input.BaseBranch,
		ReleaseBranch: input.ReleaseBranch,
		CommitSHA:     input.CommitSHA,
		Status:        RunStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create run record: %w", err)
	}

	return record, nil
}

// Find retrieves a run record by ID
// Returns an error if not found or if there's a database error
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record

	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("run record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find run record: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("run record not found: %s", id)
	}

	return record, nil
}

// Delete removes a run record by ID
func (d *DAO) Delete(ctx context.Context, id ID) error {
	pk, sk, err := ParseID(id)
	if err != nil {
		return err
	}

	err = d.table.Delete(pk).
		Range(sk).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete run record: %w", err)
	}

	return nil
}

// latestRecord builds the "latest" magic record for a run. The latest
// record has pk=latest and sk={owner}/{repo} to enable a single-partition
// query for the newest run of every repository.
func latestRecord(pk PK, sk string, status RunStatus, now int64) (*Record, error) {
	owner, repo, err := ParsePK(pk)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PK: %w", err)
	}

	return &Record{
		PK:        PK(latest),
		SK:        pk.String(),
		ID:        NewID(pk, sk),
		Owner:     owner,
		Repo:      repo,
		Status:    status,
		UpdatedAt: now,
	}, nil
}

// UpdateStatus updates the status of a run record and refreshes the
// "latest" magic record in the same transaction
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	if input.Status == nil {
		return fmt.Errorf("status is required")
	}

	now := time.Now().Unix()

	update := d.table.Update(input.PK).
		Range(input.SK).
		Set("#Status = ?", string(*input.Status)).
		Set("#UpdatedAt = ?", now)

	// terminal states record the completion time
	if input.Status.Terminal() {
		update = update.Set("#FinishedAt = ?", now)
	}

	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	lr, err := latestRecord(input.PK, input.SK, *input.Status, now)
	if err != nil {
		return err
	}

	put := d.table.Put(lr)
	if _, err := d.db.TransactWriteItemsWithContext(ctx, update, put); err != nil {
		return err
	}

	return nil
}

// StartExecution atomically updates a run record to IN_PROGRESS status and
// sets the execution ARN, refreshing the "latest" magic record alongside
func (d *DAO) StartExecution(ctx context.Context, pk PK, sk string, executionArn string) error {
	now := time.Now().Unix()
	status := RunStatusInProgress

	update := d.table.Update(pk.String()).
		Range(sk).
		Set("#Status = ?", string(status)).
		Set("#ExecutionArn = ?", executionArn).
		Set("#UpdatedAt = ?", now)

	lr, err := latestRecord(pk, sk, status, now)
	if err != nil {
		return err
	}

	put := d.table.Put(lr)
	if _, err := d.db.TransactWriteItemsWithContext(ctx, update, put); err != nil {
		return fmt.Errorf("failed to start execution: %w", err)
	}

	return nil
}

// SetArtifact records the uploaded distribution artifact location
func (d *DAO) SetArtifact(ctx context.Context, pk PK, sk, bucket, key string) error {
	now := time.Now().Unix()

	err := d.table.Update(pk.String()).
		Range(sk).
		Set("#ArtifactBucket = ?", bucket).
		Set("#ArtifactKey = ?", key).
		Set("#UpdatedAt = ?", now).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to set artifact: %w", err)
	}

	return nil
}

// SetPullRequest records the opened pull request on the run
func (d *DAO) SetPullRequest(ctx context.Context, pk PK, sk string, number int, url string) error {
	now := time.Now().Unix()

	err := d.table.Update(pk.String()).
		Range(sk).
		Set("#PRNumber = ?", number).
		Set("#PRURL = ?", url).
		Set("#UpdatedAt = ?", now).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to set pull request: %w", err)
	}

	return nil
}

// Query returns all runs for a given owner/repo partition key
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	return records, nil
}

// QueryByRepo returns all runs for a given owner and repository
func (d *DAO) QueryByRepo(ctx context.Context, owner, repo string) ([]Record, error) {
	pk := NewPK(owner, repo)
	return d.Query(ctx, pk)
}

// GetID returns the full run ID for a record; standalone form for slicex
func GetID(r Record) ID {
	return r.GetID()
}

// QueryLatestRuns returns the most recent run for each repository. It
// queries the "latest" magic records (pk=latest, sk={owner}/{repo}) and
// then loads the full run record behind each one.
func (d *DAO) QueryLatestRuns(ctx context.Context) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", latest).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}

	// most recently updated first
	for i := 0; i < len(records)-1; i++ {
		for j := i + 1; j < len(records); j++ {
			if records[j].UpdatedAt > records[i].UpdatedAt {
				records[i], records[j] = records[j], records[i]
			}
		}
	}

	ids := slicex.Map(records, GetID)

	runs := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := d.Find(ctx, id)
		if err != nil {
			// latest entries can outlive deleted runs
			continue
		}
		runs = append(runs, record)
	}

	return runs, nil
}
