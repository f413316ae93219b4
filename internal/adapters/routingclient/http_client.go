// Package routingclient adapts the external routing service contract (§6:
// two lat/lng pairs in, a polyline in [lng, lat] order plus distance and
// duration out) to the domain routing.Client port, and wraps it with the
// LRU+TTL+singleflight cache the route cache contract requires.
package routingclient

import (
	"context"
	"time"

	"github.com/dispatchcore/fleetengine/internal/adapters/httpclient"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// HTTPClient calls an external routing service over HTTP/JSON. Its public
// contract never returns an error: on any failure it substitutes a
// synthetic fallback polyline, per the route cache's "the public contract
// never fails" rule.
type HTTPClient struct {
	requester *httpclient.Requester
	url       string
	timeout   time.Duration
}

// NewHTTPClient builds a routing client against the given endpoint
// (expected to accept POST {start, end} and return
// {polyline: [[lng,lat]...], distance_m, duration_s}).
func NewHTTPClient(url string, timeout time.Duration, clock shared.Clock) *HTTPClient {
	return &HTTPClient{
		requester: httpclient.NewRequester(timeout, 5, 5, 1, 500*time.Millisecond, 5, 60*time.Second, clock),
		url:       url,
		timeout:   timeout,
	}
}

type routeRequestBody struct {
	Start [2]float64 `json:"start"` // [lat, lng]
	End   [2]float64 `json:"end"`
}

type routeResponseBody struct {
	Polyline   [][2]float64 `json:"polyline"` // [lng, lat] pairs per the external contract
	DistanceM  float64      `json:"distance_m"`
	DurationS  float64      `json:"duration_s"`
}

// Route implements routing.Client. On any error (timeout, non-2xx,
// malformed body) it returns a synthetic fallback polyline rather than an
// error, per §4.2.
func (c *HTTPClient) Route(ctx context.Context, start, end geo.Location) (geo.Polyline, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := routeRequestBody{Start: [2]float64{start.Lat, start.Lng}, End: [2]float64{end.Lat, end.Lng}}
	var resp routeResponseBody
	if err := c.requester.PostJSON(callCtx, c.url, req, &resp); err != nil {
		return geo.SyntheticPolyline(start, end), nil
	}
	if len(resp.Polyline) < 2 {
		return geo.SyntheticPolyline(start, end), nil
	}

	points := make([]geo.Location, len(resp.Polyline))
	for i, pair := range resp.Polyline {
		points[i] = geo.Location{Lat: pair[1], Lng: pair[0]}
	}
	return geo.Polyline{Points: points, Fallback: false}, nil
}
