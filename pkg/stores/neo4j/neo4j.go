package neo4j

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/theapemachine/neurostore/pkg/engram"
)

/*
Client talks to Neo4j over the transactional HTTP endpoint.  Engrams
appear as (:Engram {id}) nodes and synapses as [:SYNAPSE {weight}]
relationships between them.
*/
type Client struct {
	Endpoint   string
	Username   string
	Password   string
	httpClient *http.Client
}

func New(endpoint, user, pass string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Username:   user,
		Password:   pass,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

/*
CypherResult is the parsed shape of one tx/commit response.
*/
type CypherResult struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []json.RawMessage `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

/*
ExecCypher sends a single Cypher statement with parameters and returns
the parsed response.  Server-side errors surface as Go errors.
*/
func (client *Client) ExecCypher(
	ctx context.Context, cypher string, params map[string]any,
) (*CypherResult, error) {
	payload := map[string]any{
		"statements": []map[string]any{{
			"statement":  cypher,
			"parameters": params,
		}},
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		client.Endpoint+"/db/neo4j/tx/commit",
		bytes.NewReader(body),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if client.Username != "" {
		req.SetBasicAuth(client.Username, client.Password)
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("neo4j: status %s", resp.Status)
	}

	var out CypherResult

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		return nil, fmt.Errorf(
			"neo4j: %s: %s", out.Errors[0].Code, out.Errors[0].Message,
		)
	}

	return &out, nil
}

/*
MergeSynapse writes one directed edge, creating the endpoint nodes when
needed.  The weight is overwritten; strengthening policy lives above
this client.
*/
func (client *Client) MergeSynapse(ctx context.Context, syn engram.Synapse) error {
	_, err := client.ExecCypher(ctx, `
		MERGE (a:Engram {id: $source})
		MERGE (b:Engram {id: $target})
		MERGE (a)-[s:SYNAPSE]->(b)
		SET s.weight = $weight,
		    s.ownerId = $ownerId,
		    s.createdAt = coalesce(s.createdAt, $createdAt)`,
		map[string]any{
			"source":    syn.SourceID,
			"target":    syn.TargetID,
			"weight":    syn.Weight,
			"ownerId":   syn.OwnerID,
			"createdAt": syn.CreatedAt.Format(time.RFC3339Nano),
		})

	return err
}

/*
GetSynapse fetches one directed edge; absence returns nil.
*/
func (client *Client) GetSynapse(
	ctx context.Context, sourceID, targetID string,
) (*engram.Synapse, error) {
	result, err := client.ExecCypher(ctx, `
		MATCH (a:Engram {id: $source})-[s:SYNAPSE]->(b:Engram {id: $target})
		RETURN b.id, s.weight, s.ownerId, s.createdAt`,
		map[string]any{"source": sourceID, "target": targetID})

	if err != nil {
		return nil, err
	}

	synapses := decodeSynapseRows(sourceID, result)

	if len(synapses) == 0 {
		return nil, nil
	}

	return &synapses[0], nil
}

/*
SynapsesFrom returns the outgoing edges of a node ordered by target id,
which keeps graph traversal deterministic.
*/
func (client *Client) SynapsesFrom(
	ctx context.Context, id string,
) ([]engram.Synapse, error) {
	result, err := client.ExecCypher(ctx, `
		MATCH (a:Engram {id: $id})-[s:SYNAPSE]->(b:Engram)
		RETURN b.id, s.weight, s.ownerId, s.createdAt
		ORDER BY b.id`,
		map[string]any{"id": id})

	if err != nil {
		return nil, err
	}

	return decodeSynapseRows(id, result), nil
}

/*
DeleteNode detaches and removes an engram node and every edge touching
it.
*/
func (client *Client) DeleteNode(ctx context.Context, id string) error {
	_, err := client.ExecCypher(ctx, `
		MATCH (a:Engram {id: $id})
		DETACH DELETE a`,
		map[string]any{"id": id})

	return err
}

/*
CountSynapses reports the total number of directed edges.
*/
func (client *Client) CountSynapses(ctx context.Context) (int, error) {
	result, err := client.ExecCypher(ctx,
		`MATCH ()-[s:SYNAPSE]->() RETURN count(s)`, nil)

	if err != nil {
		return 0, err
	}

	if len(result.Results) == 0 || len(result.Results[0].Data) == 0 {
		return 0, nil
	}

	var count int

	if err := json.Unmarshal(result.Results[0].Data[0].Row[0], &count); err != nil {
		return 0, err
	}

	return count, nil
}

/*
Ping verifies the transactional endpoint answers.
*/
func (client *Client) Ping(ctx context.Context) error {
	_, err := client.ExecCypher(ctx, "RETURN 1", nil)
	return err
}

func decodeSynapseRows(sourceID string, result *CypherResult) []engram.Synapse {
	if len(result.Results) == 0 {
		return nil
	}

	synapses := make([]engram.Synapse, 0, len(result.Results[0].Data))

	for _, data := range result.Results[0].Data {
		if len(data.Row) < 4 {
			continue
		}

		var (
			target  string
			weight  float64
			ownerID string
			created string
		)

		if json.Unmarshal(data.Row[0], &target) != nil {
			continue
		}

		_ = json.Unmarshal(data.Row[1], &weight)
		_ = json.Unmarshal(data.Row[2], &ownerID)
		_ = json.Unmarshal(data.Row[3], &created)

		syn := engram.Synapse{
			SourceID: sourceID,
			TargetID: target,
			OwnerID:  ownerID,
			Weight:   weight,
		}

		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			syn.CreatedAt = t
		}

		synapses = append(synapses, syn)
	}

	return synapses
}
