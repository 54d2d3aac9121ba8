package sosrs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func record(id int) domain.RawShelterRecord {
	return domain.RawShelterRecord{
		ID:        domain.FlexID(fmt.Sprintf("s-%d", id)),
		Name:      fmt.Sprintf("Abrigo %d", id),
		UpdatedAt: "2024-05-10T09:30:00Z",
	}
}

// pagedServer serves count records in perPage slices under the upstream
// response envelope.
func pagedServer(t *testing.T, count int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
		require.Positive(t, page)
		require.Positive(t, perPage)

		start := (page - 1) * perPage
		var results []domain.RawShelterRecord
		for i := start; i < start+perPage && i < count; i++ {
			results = append(results, record(i))
		}
		writePage(t, w, results, count)
	}))
}

func writePage(t *testing.T, w http.ResponseWriter, results []domain.RawShelterRecord, count int) {
	t.Helper()
	body := map[string]any{"data": map[string]any{"results": results, "count": count}}
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestFetchAll_SinglePage(t *testing.T) {
	srv := pagedServer(t, 3)
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	records, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "s-0", string(records[0].ID))
}

func TestFetchAll_MultiplePages(t *testing.T) {
	srv := pagedServer(t, 25)
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	records, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 25)
	assert.Equal(t, "s-24", string(records[24].ID))
}

func TestFetchAll_CountGrowsMidFetch(t *testing.T) {
	// The total grows from 11 to 12 after the first page; the client must
	// keep walking to the latest total without revisiting page one.
	var pagesServed []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pagesServed = append(pagesServed, page)

		count := 12
		if page == 1 {
			count = 11
		}
		start := (page - 1) * 10
		var results []domain.RawShelterRecord
		for i := start; i < start+10 && i < 12; i++ {
			results = append(results, record(i))
		}
		writePage(t, w, results, count)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	records, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 12)
	assert.Equal(t, []int{1, 2}, pagesServed)
}

func TestFetchAll_PageCap(t *testing.T) {
	// A count that stays ahead of what is served can never be satisfied.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, []domain.RawShelterRecord{record(1)}, 1000000)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10, 5, time.Second, discardLogger())
	_, err := c.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamMalformed)
}

func TestFetchAll_EmptyPageBeforeTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, nil, 50)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	_, err := c.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamMalformed)
}

func TestFetchAll_TransportError(t *testing.T) {
	srv := pagedServer(t, 3)
	srv.Close() // immediately, so the dial fails

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	_, err := c.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFetchAll_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	_, err := c.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFetchAll_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	_, err := c.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamMalformed)
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	srv := pagedServer(t, 3)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, 10, 200, time.Second, discardLogger())
	_, err := c.FetchAll(ctx)
	require.Error(t, err)
}
