package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/registry"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestLookupSeedHitSkipsAPI(t *testing.T) {
	s := NewPincodeService("", time.Second, nil)
	s.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("API should not be called for seeded pincodes")
		return nil, nil
	})

	place := s.Lookup(context.Background(), " 400001 ")
	assert.Equal(t, "Mumbai", place.City)
	assert.Equal(t, "Maharashtra", place.State)
	assert.Equal(t, "India", place.Country)
}

func TestLookupAPIMissDegrades(t *testing.T) {
	s := NewPincodeService("", time.Second, nil)
	s.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})

	place := s.Lookup(context.Background(), "999999")
	assert.Equal(t, Place{Country: "India"}, place)
}

func TestLookupAPIHitCaches(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	s := NewPincodeService(cachePath, time.Second, nil)
	calls := 0
	s.http.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		assert.Contains(t, r.URL.Path, "682001")
		return jsonResponse(`[{
			"Status": "Success",
			"PostOffice": [{"Name": "Ernakulam", "Block": "Kochi", "District": "Ernakulam", "State": "Kerala", "Country": "India"}]
		}]`), nil
	})

	place := s.Lookup(context.Background(), "682001")
	assert.Equal(t, "Kochi", place.City)
	assert.Equal(t, "Kerala", place.State)

	// The second lookup is answered from cache.
	_ = s.Lookup(context.Background(), "682001")
	assert.Equal(t, 1, calls)

	// The cache file persists the API result.
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	var cached map[string]Place
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, "Kochi", cached["682001"].City)
}

func TestLookupAPIFailureStatus(t *testing.T) {
	s := NewPincodeService("", time.Second, nil)
	s.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(`[{"Status": "Error", "PostOffice": []}]`), nil
	})

	place := s.Lookup(context.Background(), "000000")
	assert.Equal(t, Place{Country: "India"}, place)
}

func TestCacheFileLoaded(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(
		`{"999001": {"city": "Testville", "state": "Teststate", "country": "India"}}`), 0o644))

	s := NewPincodeService(cachePath, time.Second, nil)
	place := s.Lookup(context.Background(), "999001")
	assert.Equal(t, "Testville", place.City)
}

func TestRegistryFuncAdaptsLookup(t *testing.T) {
	s := NewPincodeService("", time.Second, nil)

	reg := registry.New()
	reg.Register("LOOKUP_PINCODE", registry.KindRecord, s.RegistryFunc())

	res, err := reg.Execute("LOOKUP_PINCODE", registry.Args{Value: "110001"})
	require.NoError(t, err)
	assert.Equal(t, "New Delhi", res.Fields["city"])
	assert.Equal(t, "Delhi", res.Fields["state"])
	assert.Equal(t, []string{"city", "state", "country"}, res.Order)
	assert.Equal(t, "New Delhi", res.First())
}
