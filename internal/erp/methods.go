package erp

import (
	"context"
	"encoding/json"
	"fmt"
)

// SearchOptions narrows search and search_read calls.
type SearchOptions struct {
	Fields []string
	Order  string
	Limit  int
	Offset int
}

func (o SearchOptions) kwargs() map[string]any {
	kw := map[string]any{}
	if len(o.Fields) > 0 {
		kw["fields"] = o.Fields
	}
	if o.Order != "" {
		kw["order"] = o.Order
	}
	if o.Limit > 0 {
		kw["limit"] = o.Limit
	}
	if o.Offset > 0 {
		kw["offset"] = o.Offset
	}
	return kw
}

// SearchRead returns records matching the domain decoded into T.
func SearchRead[T any](ctx context.Context, c Caller, model string, domain Domain, opts SearchOptions) ([]T, error) {
	var out []T
	if err := c.Call(ctx, model, "search_read", []any{domain}, opts.kwargs(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first matching record, reporting whether one was found.
func First[T any](ctx context.Context, c Caller, model string, domain Domain, opts SearchOptions) (T, bool, error) {
	var zero T
	opts.Limit = 1
	rows, err := SearchRead[T](ctx, c, model, domain, opts)
	if err != nil || len(rows) == 0 {
		return zero, false, err
	}
	return rows[0], true, nil
}

// Read loads records by id.
func Read[T any](ctx context.Context, c Caller, model string, ids []int64, fields []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	kw := map[string]any{}
	if len(fields) > 0 {
		kw["fields"] = fields
	}
	var out []T
	if err := c.Call(ctx, model, "read", []any{ids}, kw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a single record; ErrMissingRecord when it does not exist.
func Get[T any](ctx context.Context, c Caller, model string, id int64, fields []string) (T, error) {
	var zero T
	rows, err := SearchRead[T](ctx, c, model, Where("id", "=", id), SearchOptions{Fields: fields, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s(%d): %w", model, id, ErrMissingRecord)
	}
	return rows[0], nil
}

// Search returns matching ids.
func Search(ctx context.Context, c Caller, model string, domain Domain, opts SearchOptions) ([]int64, error) {
	opts.Fields = nil
	var ids []int64
	if err := c.Call(ctx, model, "search", []any{domain}, opts.kwargs(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchCount counts matching records.
func SearchCount(ctx context.Context, c Caller, model string, domain Domain) (int, error) {
	var n int
	if err := c.Call(ctx, model, "search_count", []any{domain}, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a record and returns its id.
func Create(ctx context.Context, c Caller, model string, values map[string]any) (int64, error) {
	var id int64
	if err := c.Call(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write updates records.
func Write(ctx context.Context, c Caller, model string, ids []int64, values map[string]any) error {
	var ok bool
	if err := c.Call(ctx, model, "write", []any{ids, values}, nil, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s.write %v: rejected", model, ids)
	}
	return nil
}

// Unlink deletes records.
func Unlink(ctx context.Context, c Caller, model string, ids []int64) error {
	return c.Call(ctx, model, "unlink", []any{ids}, nil, nil)
}

// Execute calls a record method on ids, discarding the result.
func Execute(ctx context.Context, c Caller, model, method string, ids []int64, kwargs map[string]any) error {
	var raw json.RawMessage
	return c.Call(ctx, model, method, []any{ids}, kwargs, &raw)
}
