package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/places"
)

func fakePlacesAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/textsearch/json":
			assert.Equal(t, "cafe in Austin", r.URL.Query().Get("query"))
			w.Write([]byte(`{"status":"OK","results":[
				{"place_id":"a","name":"Alpha","formatted_address":"1 Main St"},
				{"place_id":"b","name":"Beta","formatted_address":"2 Main St"}
			]}`)) //nolint:errcheck
		case "/details/json":
			id := r.URL.Query().Get("place_id")
			w.Write([]byte(`{"status":"OK","result":{"place_id":"` + id + `","website":"https://` + id + `.example"}}`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRunSearch_EndToEnd(t *testing.T) {
	srv, calls := fakePlacesAPI(t)
	useTestConfig(t).Google.BaseURL = srv.URL

	env, err := initEnv(context.Background(), "search")
	require.NoError(t, err)
	defer env.Close()

	var out bytes.Buffer
	err = runSearch(context.Background(), env.Pipeline,
		places.SearchRequest{Type: "cafe", Location: "Austin", Page: 1, Limit: 10}, &out)
	require.NoError(t, err)

	var res model.PageResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.EqualValues(t, 2, res.Total)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "a", res.Data[0].PlaceID)
	assert.Equal(t, "https://a.example", res.Data[0].Website)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRunSearch_ValidationError(t *testing.T) {
	srv, calls := fakePlacesAPI(t)
	useTestConfig(t).Google.BaseURL = srv.URL

	env, err := initEnv(context.Background(), "search")
	require.NoError(t, err)
	defer env.Close()

	var out bytes.Buffer
	err = runSearch(context.Background(), env.Pipeline,
		places.SearchRequest{Type: "cafe", Page: 1, Limit: 10}, &out)

	var verr *places.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "location", verr.Field)
	assert.Zero(t, calls.Load())
	assert.Empty(t, out.String())
}
