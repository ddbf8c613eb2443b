package quora

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAll_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"adId":1},{"adId":2}],"paging":{}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	records := c.FetchAll(context.Background(), srv.URL+"/ads/1", nil)
	require.Len(t, records, 2)
}

func TestFetchAll_FollowsCursorAndClearsParams(t *testing.T) {
	var page2Query atomic.Value
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		next := srv.URL + "/page2?cursor=abc"
		fmt.Fprintf(w, `{"data":[{"campaignId":1},{"campaignId":2}],"paging":{"next":%q}}`, next)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		page2Query.Store(r.URL.Query())
		w.Write([]byte(`{"data":[{"campaignId":3}],"paging":{}}`))
	})

	c := testClient(srv.URL)
	records := c.FetchAll(context.Background(), srv.URL+"/page1", url.Values{"level": {"CAMPAIGN"}})

	// Page order preserved.
	require.Len(t, records, 3)
	for i, want := range []int64{1, 2, 3} {
		id, ok := Int64Field(records[i], "campaignId")
		require.True(t, ok)
		assert.Equal(t, want, id)
	}

	// The cursor URL is self-contained: the original params must not be
	// re-applied to it.
	q := page2Query.Load().(url.Values)
	assert.Equal(t, "abc", q.Get("cursor"))
	assert.Empty(t, q.Get("level"))
}

func TestFetchAll_APIErrorReturnsPartial(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"adId":1}],"paging":{"next":%q}}`, srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	c := testClient(srv.URL)
	records := c.FetchAll(context.Background(), srv.URL+"/page1", nil)

	// The failure is swallowed; page one's records survive.
	require.Len(t, records, 1)
}

func TestFetchAll_ImmediateErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	records := c.FetchAll(context.Background(), srv.URL+"/ads/1", nil)
	assert.Empty(t, records)
}

func TestFetchAll_TransientExhaustionReturnsPartial(t *testing.T) {
	var page2Calls atomic.Int64
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"adId":1},{"adId":2}],"paging":{"next":%q}}`, srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		page2Calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := testClient(srv.URL)
	records := c.FetchAll(context.Background(), srv.URL+"/page1", nil)

	require.Len(t, records, 2)
	assert.Equal(t, int64(3), page2Calls.Load(), "page two retried to exhaustion")
}
