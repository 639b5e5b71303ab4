package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/pagination"
)

const countAlias = "total"

// countDocuments runs a server-side aggregation so list endpoints can report
// the true total without streaming every document.
func countDocuments(ctx context.Context, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := results[countAlias]
	if !ok {
		return 0, errors.New("firestore: aggregation result missing count")
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, errors.New("firestore: unexpected aggregation result type")
	}
	return value.GetIntegerValue(), nil
}

func normalisePager(pager domain.Pagination) domain.Pagination {
	if pager.Page <= 0 {
		pager.Page = 1
	}
	if pager.Limit <= 0 {
		pager.Limit = pagination.DefaultLimit
	}
	if pager.Limit > pagination.DefaultMaxLimit {
		pager.Limit = pagination.DefaultMaxLimit
	}
	return pager
}

func pagerOffset(pager domain.Pagination) int {
	return (pager.Page - 1) * pager.Limit
}

func newPage[T any](items []T, pager domain.Pagination, total int64) domain.Page[T] {
	if items == nil {
		items = []T{}
	}
	return domain.Page[T]{
		Items:      items,
		Page:       pager.Page,
		Limit:      pager.Limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, pager.Limit),
	}
}
