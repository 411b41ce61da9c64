package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

/*
Client talks to a Qdrant instance over its HTTP API.  One client is
bound to one collection; engram payloads travel alongside the vectors
so a point round-trips without a second lookup.
*/
type Client struct {
	Endpoint   string // e.g. http://localhost:6333
	Collection string // e.g. "engrams"
	httpClient *http.Client
}

func New(endpoint, collection string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Collection: collection,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

/*
EnsureCollection creates the collection with cosine distance when it
does not exist yet.  Safe to call repeatedly.
*/
func (client *Client) EnsureCollection(ctx context.Context, dimension int) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections/%s", client.Endpoint, client.Collection),
		nil,
	)

	if err != nil {
		return err
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	})

	if err != nil {
		return err
	}

	createReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return err
	}

	createReq.Header.Set("Content-Type", "application/json")

	createResp, err := client.httpClient.Do(createReq)

	if err != nil {
		return err
	}

	createResp.Body.Close()

	if createResp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: create collection status %s", createResp.Status)
	}

	return nil
}

/*
Upsert writes a batch of points.
*/
func (client *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	raw := make([]map[string]any, 0, len(points))

	for _, point := range points {
		raw = append(raw, map[string]any{
			"id":      point.ID,
			"vector":  point.Vector,
			"payload": point.Payload,
		})
	}

	body, err := json.Marshal(map[string]any{"points": raw})

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points?wait=true", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: upsert status %s", resp.Status)
	}

	return nil
}

/*
Get retrieves one point with payload and vector.  A missing point
returns nil without error.
*/
func (client *Client) Get(ctx context.Context, id string) (*Point, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections/%s/points/%s", client.Endpoint, client.Collection, id),
		nil,
	)

	if err != nil {
		return nil, err
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant: get status %s", resp.Status)
	}

	var out struct {
		Result struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &Point{
		ID:      out.Result.ID,
		Vector:  out.Result.Vector,
		Payload: out.Result.Payload,
	}, nil
}

/*
Delete removes points by id.
*/
func (client *Client) Delete(ctx context.Context, ids []string) error {
	body, err := json.Marshal(map[string]any{"points": ids})

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/delete?wait=true", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: delete status %s", resp.Status)
	}

	return nil
}

/*
Search runs a vector similarity query, optionally filtered, returning
points with their raw scores in Qdrant's descending order.
*/
func (client *Client) Search(
	ctx context.Context, vector []float32, limit int, filter map[string]any,
) ([]ScoredPoint, error) {
	payload := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}

	if filter != nil {
		payload["filter"] = filter
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant: search status %s", resp.Status)
	}

	var out struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	points := make([]ScoredPoint, 0, len(out.Result))

	for _, r := range out.Result {
		points = append(points, ScoredPoint{
			Point: Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload},
			Score: r.Score,
		})
	}

	return points, nil
}

/*
Scroll pages through points matching a filter in id order.  Callers
that need a numeric offset fetch offset+limit and slice.
*/
func (client *Client) Scroll(
	ctx context.Context, filter map[string]any, limit int,
) ([]Point, error) {
	payload := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}

	if filter != nil {
		payload["filter"] = filter
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/scroll", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant: scroll status %s", resp.Status)
	}

	var out struct {
		Result struct {
			Points []struct {
				ID      string         `json:"id"`
				Payload map[string]any `json:"payload"`
				Vector  []float32      `json:"vector"`
			} `json:"points"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(out.Result.Points))

	for _, r := range out.Result.Points {
		points = append(points, Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload})
	}

	return points, nil
}

/*
Count returns the exact number of points matching a filter.
*/
func (client *Client) Count(ctx context.Context, filter map[string]any) (int, error) {
	payload := map[string]any{"exact": true}

	if filter != nil {
		payload["filter"] = filter
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/count", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("qdrant: count status %s", resp.Status)
	}

	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}

	return out.Result.Count, nil
}

/*
Ping verifies the server responds.
*/
func (client *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections", client.Endpoint),
		nil,
	)

	if err != nil {
		return err
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: ping status %s", resp.Status)
	}

	return nil
}

/*
OwnerFilter builds the match filter retrieval uses: always the owner,
optionally additional exact-match payload conditions.
*/
func OwnerFilter(ownerID string, extra map[string]any) map[string]any {
	must := []map[string]any{{
		"key":   "ownerId",
		"match": map[string]any{"value": ownerID},
	}}

	for key, value := range extra {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}

	return map[string]any{"must": must}
}
