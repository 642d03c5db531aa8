// internal/grants/search.go
package grants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrIndexingFailed    = errors.New("INDEXING_FAILED")
)

// SearchIndex is the full-text index over grant listings. Indexing is
// best effort; the SQL store stays the source of truth.
type SearchIndex interface {
	IndexGrant(ctx context.Context, g *models.GrantListing) error
	DeleteGrant(ctx context.Context, id string) error
	Search(ctx context.Context, query string, size int) ([]models.GrantListing, error)
}

// ElasticIndex implements SearchIndex on an Elasticsearch cluster.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticIndex(client *elasticsearch.Client, index string, log logger.Logger) *ElasticIndex {
	return &ElasticIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "grant-search-index"}),
	}
}

func (e *ElasticIndex) IndexGrant(ctx context.Context, g *models.GrantListing) error {
	body, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("%w: encode grant: %v", ErrIndexingFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: g.ID,
		Body:       strings.NewReader(string(body)),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexingFailed, res.Status())
	}
	return nil
}

func (e *ElasticIndex) DeleteGrant(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: id,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	defer res.Body.Close()

	// A missing document is fine on delete.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("%w: %s", ErrIndexingFailed, res.Status())
	}
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string, size int) ([]models.GrantListing, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "description^2", "category"},
				"type":   "best_fields",
			},
		},
	}
	body, _ := json.Marshal(queryBody)

	from := 0
	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.GrantListing `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchQueryFailed, err)
	}

	grants := make([]models.GrantListing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		grants = append(grants, hit.Source)
	}
	return grants, nil
}
