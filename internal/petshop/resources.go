package petshop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Resource is the CRUD surface of one backend collection.
type Resource[T any] struct {
	c    *Client
	name string
}

func newResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{c: c, name: name}
}

func (r *Resource[T]) collectionPath() string {
	return "/" + r.name + "/"
}

func (r *Resource[T]) itemPath(id int64) string {
	return fmt.Sprintf("/%s/%d/", r.name, id)
}

// List returns every element, accepting both a bare array and a paginated
// {"results": [...]} envelope.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := r.c.do(ctx, http.MethodGet, r.collectionPath(), query, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s list: %w", r.name, err)
	}
	return items, nil
}

func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Create(ctx context.Context, in any) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodPost, r.collectionPath(), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Update(ctx context.Context, id int64, in any) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodPut, r.itemPath(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		return []T{}, nil
	}
	return envelope.Results, nil
}
