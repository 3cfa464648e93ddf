package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/isaac-jh/ym-library/internal/models"
)

const storageCatalogsPath = "/storage-catalogs"

// CatalogItem is an archive catalog entry as the backend serializes it.
type CatalogItem struct {
	ID           int64   `json:"id"`
	Storage      string  `json:"storage"`
	Category     string  `json:"category"`
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	ActivityName string  `json:"activity_name"`
	Description  *string `json:"description"`
}

// Item converts the wire item to a [models.ActivityItem].
func (c CatalogItem) Item() models.ActivityItem {
	return models.ActivityItem{
		ID:           c.ID,
		Storage:      c.Storage,
		Category:     c.Category,
		Year:         c.Year,
		Month:        c.Month,
		ActivityName: c.ActivityName,
		Description:  deref(c.Description),
	}
}

// ItemFromActivity is the inverse of [CatalogItem.Item].
func ItemFromActivity(a models.ActivityItem) CatalogItem {
	return CatalogItem{
		ID:           a.ID,
		Storage:      a.Storage,
		Category:     a.Category,
		Year:         a.Year,
		Month:        a.Month,
		ActivityName: a.ActivityName,
		Description:  optional(a.Description),
	}
}

// CatalogResponse is the envelope of GET /storage-catalogs.
type CatalogResponse struct {
	Items []CatalogItem `json:"items"`
	Total int           `json:"total,omitempty"`
}

// ListCatalog fetches the archive catalog via GET /storage-catalogs.
//
// An envelope without an items array yields an empty list and a warning.
func (c *Client) ListCatalog(ctx context.Context) ([]models.ActivityItem, error) {
	query := url.Values{"limit": {strconv.Itoa(c.catalogLimit)}}

	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, storageCatalogsPath, query, nil, &raw); err != nil {
		return nil, err
	}

	var resp CatalogResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Items == nil {
		c.logger.Warn("unexpected catalog envelope, treating as empty")
		return []models.ActivityItem{}, nil
	}

	items := make([]models.ActivityItem, len(resp.Items))
	for i, item := range resp.Items {
		items[i] = item.Item()
	}
	return items, nil
}
