package gql

import (
	"context"
	"sort"
)

// RunsByRepo resolves the runsByRepo query - all runs for a specific
// repository, newest first
func (r *Resolver) RunsByRepo(ctx context.Context, args struct {
	Owner string
	Repo  string
}) ([]*RunResolver, error) {
	records, err := r.runs.QueryByRepo(ctx, args.Owner, args.Repo)
	if err != nil {
		return nil, err
	}

	// KSUID sort keys order oldest first
	sort.Slice(records, func(i, j int) bool {
		return records[i].SK > records[j].SK
	})

	resolvers := make([]*RunResolver, len(records))
	for i, record := range records {
		resolvers[i] = newRunResolver(record)
	}

	return resolvers, nil
}
