package gql

import (
	"context"
)

// Runs resolves the runs query - the most recent run for every repository
func (r *Resolver) Runs(ctx context.Context) ([]*RunResolver, error) {
	records, err := r.runs.QueryLatestRuns(ctx)
	if err != nil {
		return nil, err
	}

	resolvers := make([]*RunResolver, len(records))
	for i, record := range records {
		resolvers[i] = newRunResolver(record)
	}

	return resolvers, nil
}
