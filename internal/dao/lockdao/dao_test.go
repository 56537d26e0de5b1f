package lockdao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	assert.Equal(t, ID("acme/widgets:LOCK"), NewID("acme", "widgets"))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name      string
		id        ID
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "valid ID",
			id:        ID("acme/widgets:LOCK"),
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:    "wrong SK",
			id:      ID("acme/widgets:RUN"),
			wantErr: true,
		},
		{
			name:    "missing SK",
			id:      ID("acme/widgets"),
			wantErr: true,
		},
		{
			name:    "malformed PK",
			id:      ID("widgets:LOCK"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestRecordGetID(t *testing.T) {
	record := Record{
		PK:    NewPK("acme", "widgets"),
		SK:    "LOCK",
		RunID: "2HFj3kLmNoPqRsTuVwXy",
	}
	assert.Equal(t, ID("acme/widgets:LOCK"), record.GetID())
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "dev-release-locks", TableName("dev"))
}
