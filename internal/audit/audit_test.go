package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/shared"
)

type fakeRepo struct {
	rows    []TimelineRow
	filters TimelineFilters
	offset  int
	limit   int
}

func (f *fakeRepo) Window(_ context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	f.filters, f.offset, f.limit = filters, offset, limit
	if offset >= len(f.rows) {
		return nil, nil
	}
	return f.rows[offset:min(offset+limit, len(f.rows))], nil
}

func seededRepo(n int) *fakeRepo {
	repo := &fakeRepo{}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := range n {
		repo.rows = append(repo.rows, TimelineRow{
			ID: int64(n - i), At: at.Add(-time.Duration(i) * time.Minute),
			Actor: "caja", Action: "order.payment", Entity: "pos.order", EntityID: "42",
		})
	}
	return repo
}

func TestTimelinePaging(t *testing.T) {
	repo := seededRepo(5)
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 3, repo.limit)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)

	res, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 4, repo.offset)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.PrevPage)

	_, err = svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.limit)
}

func TestTimelineRejectsInvertedRange(t *testing.T) {
	svc := NewService(seededRepo(1))
	now := time.Now()
	_, err := svc.Timeline(context.Background(), TimelineFilters{From: now, To: now.Add(-time.Hour)})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestHandlerTimeline(t *testing.T) {
	repo := seededRepo(3)
	r := chi.NewRouter()
	r.Route("/audit", NewHandler(slog.Default(), NewService(repo)).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?entity=pos.order&from=2025-03-01&page_size=2", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, "pos.order", repo.filters.Entity)
	assert.Equal(t, 2025, repo.filters.From.Year())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?to=ayer", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
