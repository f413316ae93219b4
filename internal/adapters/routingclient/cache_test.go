package routingclient_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/adapters/routingclient"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

type countingRouter struct {
	calls int32
}

func (c *countingRouter) Route(_ context.Context, start, end geo.Location) (geo.Polyline, error) {
	atomic.AddInt32(&c.calls, 1)
	return geo.Polyline{Points: []geo.Location{start, end}}, nil
}

func TestCache_RepeatedLookupHitsCacheNotInner(t *testing.T) {
	inner := &countingRouter{}
	clock := shared.NewMockClock(time.Now())
	cache, err := routingclient.NewCache(inner, 16, time.Hour, clock)
	require.NoError(t, err)

	start := geo.Location{Lat: 1, Lng: 1}
	end := geo.Location{Lat: 2, Lng: 2}

	_, err = cache.Route(context.Background(), start, end)
	require.NoError(t, err)
	_, err = cache.Route(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCache_ExpiredEntryIsRefetched(t *testing.T) {
	inner := &countingRouter{}
	clock := shared.NewMockClock(time.Now())
	cache, err := routingclient.NewCache(inner, 16, time.Minute, clock)
	require.NoError(t, err)

	start := geo.Location{Lat: 1, Lng: 1}
	end := geo.Location{Lat: 2, Lng: 2}

	_, err = cache.Route(context.Background(), start, end)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = cache.Route(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCache_DifferentEndpointsAreDistinctKeys(t *testing.T) {
	inner := &countingRouter{}
	clock := shared.NewMockClock(time.Now())
	cache, err := routingclient.NewCache(inner, 16, time.Hour, clock)
	require.NoError(t, err)

	_, err = cache.Route(context.Background(), geo.Location{Lat: 1, Lng: 1}, geo.Location{Lat: 2, Lng: 2})
	require.NoError(t, err)
	_, err = cache.Route(context.Background(), geo.Location{Lat: 3, Lng: 3}, geo.Location{Lat: 4, Lng: 4})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}
