package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"
)

const collectionName = "expenses_v1"

// queryFields are the schema fields text queries run against.
const queryFields = "merchant,description,category"

// TypesenseIndex backs the Index contract with a Typesense cluster.
type TypesenseIndex struct {
	client *typesense.Client
}

func NewTypesenseIndex(url, apiKey string) *TypesenseIndex {
	client := typesense.NewClient(
		typesense.WithServer(url),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)
	return &TypesenseIndex{client: client}
}

// EnsureCollection creates the expense collection if it is missing, or
// syncs new fields onto it if it exists. Update will add fields but
// cannot change an existing field's type; a type change needs a new
// collection version.
func (t *TypesenseIndex) EnsureCollection(ctx context.Context) error {
	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "account_id", Type: "string", Facet: pointer.True()},
			{Name: "merchant", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "amount_min_unit", Type: "int64", Sort: pointer.True()},
			{Name: "currency", Type: "string", Facet: pointer.True()},
			{Name: "incurred_at", Type: "int64", Sort: pointer.True()},
		},
		DefaultSortingField: pointer.String("incurred_at"),
	}

	if _, err := t.client.Collection(collectionName).Retrieve(ctx); err != nil {
		if _, err := t.client.Collections().Create(ctx, schema); err != nil {
			return fmt.Errorf("typesense create collection failed: %w", err)
		}
		return nil
	}

	update := &api.CollectionUpdateSchema{Fields: schema.Fields}
	if _, err := t.client.Collection(collectionName).Update(ctx, update); err != nil {
		return fmt.Errorf("typesense update collection failed: %w", err)
	}
	return nil
}

func (t *TypesenseIndex) Upsert(ctx context.Context, doc ExpenseDocument) error {
	if _, err := t.client.Collection(collectionName).Documents().Upsert(ctx, doc); err != nil {
		return fmt.Errorf("typesense upsert failed: %w", err)
	}
	return nil
}

func (t *TypesenseIndex) Delete(ctx context.Context, id string) error {
	_, err := t.client.Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		var httpErr *typesense.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			// Already gone. Deletes must be safe to replay.
			return nil
		}
		return fmt.Errorf("typesense delete failed: %w", err)
	}
	return nil
}

func (t *TypesenseIndex) Search(ctx context.Context, accountID, query string, limit int) ([]ExpenseDocument, error) {
	if query == "" {
		// "*" matches everything, so a bare filter query still works.
		query = "*"
	}
	params := &api.SearchCollectionParams{
		Q:        query,
		QueryBy:  queryFields,
		FilterBy: pointer.String("account_id:=" + accountID),
		SortBy:   pointer.String("incurred_at:desc"),
		PerPage:  pointer.Int(limit),
	}

	result, err := t.client.Collection(collectionName).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("typesense search failed: %w", err)
	}
	if result.Hits == nil {
		return nil, nil
	}

	docs := make([]ExpenseDocument, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc, err := decodeDocument(*hit.Document)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// decodeDocument rebuilds a typed document from the raw hit map.
func decodeDocument(raw map[string]interface{}) (ExpenseDocument, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return ExpenseDocument{}, fmt.Errorf("typesense decode failed: %w", err)
	}
	var doc ExpenseDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return ExpenseDocument{}, fmt.Errorf("typesense decode failed: %w", err)
	}
	return doc, nil
}

func (t *TypesenseIndex) HealthCheck(ctx context.Context) error {
	healthy, err := t.client.Health(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("typesense health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("typesense is unhealthy")
	}
	return nil
}

func (t *TypesenseIndex) Close() error {
	// The client holds no connections that need explicit closure.
	return nil
}
