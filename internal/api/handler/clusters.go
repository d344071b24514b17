package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/triage/internal/api/response"
	"github.com/kiranshivaraju/triage/internal/cache"
	"github.com/kiranshivaraju/triage/internal/store"
	"github.com/kiranshivaraju/triage/pkg/models"
)

const listCacheTTL = 30 * time.Second

var (
	reClusterID = regexp.MustCompile(`^[0-9a-f]{20}$`)
	reIDPrefix  = regexp.MustCompile(`^[0-9a-f]{1,20}$`)
)

// ClusterReader is the read side of the cluster store.
type ClusterReader interface {
	ListClusters(ctx context.Context, filter store.ClusterFilter) ([]*models.ClusterRecord, int, error)
	GetCluster(ctx context.Context, id string) (*models.ClusterRecord, error)
}

type cachedPage struct {
	Clusters []*models.ClusterRecord `json:"clusters"`
	Total    int                     `json:"total"`
}

// NewListClustersHandler serves GET /api/v1/clusters.
//
// Query parameters: owner, prefix (hex id prefix), current (default true),
// page and limit. Pages are cached briefly in Redis; cache failures fall
// through to the database.
func NewListClustersHandler(s ClusterReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseClusterFilter(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		key := cache.ClusterListKey(filterHash(filter))
		page, ok := readCachedPage(r.Context(), c, key)
		if !ok {
			clusters, total, err := s.ListClusters(r.Context(), filter)
			if err != nil {
				slog.Error("list clusters", "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list clusters", nil)
				return
			}
			page = cachedPage{Clusters: clusters, Total: total}
			writeCachedPage(r.Context(), c, key, page)
		}

		response.Collection(w, page.Clusters, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   page.Total,
			HasNext: filter.Page*filter.Limit < page.Total,
		})
	}
}

// NewGetClusterHandler serves GET /api/v1/clusters/{clusterID}.
func NewGetClusterHandler(s ClusterReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "clusterID")
		if !reClusterID.MatchString(id) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid cluster ID", nil)
			return
		}

		cluster, err := s.GetCluster(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Cluster not found", nil)
			return
		}
		if err != nil {
			slog.Error("get cluster", "id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get cluster", nil)
			return
		}

		response.JSON(w, cluster)
	}
}

func parseClusterFilter(r *http.Request) (store.ClusterFilter, error) {
	q := r.URL.Query()
	f := store.ClusterFilter{
		Owner:   q.Get("owner"),
		Prefix:  q.Get("prefix"),
		Current: true,
		Page:    1,
		Limit:   20,
	}

	if f.Prefix != "" && !reIDPrefix.MatchString(f.Prefix) {
		return f, fmt.Errorf("prefix must be 1 to 20 lowercase hex digits")
	}
	if v := q.Get("current"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("current must be a boolean")
		}
		f.Current = b
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("page must be a positive integer")
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return f, fmt.Errorf("limit must be between 1 and 100")
		}
		f.Limit = n
	}
	return f, nil
}

func filterHash(f store.ClusterFilter) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%t\x00%d\x00%d",
		f.Owner, f.Prefix, f.Current, f.Page, f.Limit)))
	return hex.EncodeToString(sum[:8])
}

func readCachedPage(ctx context.Context, c cache.Cache, key string) (cachedPage, bool) {
	var page cachedPage
	data, found, err := c.Get(ctx, key)
	if err != nil {
		slog.Warn("cluster cache read failed", "key", key, "error", err)
		return page, false
	}
	if !found {
		return page, false
	}
	if err := json.Unmarshal(data, &page); err != nil {
		slog.Warn("cluster cache entry corrupt", "key", key, "error", err)
		return page, false
	}
	return page, true
}

func writeCachedPage(ctx context.Context, c cache.Cache, key string, page cachedPage) {
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.Set(ctx, key, data, listCacheTTL); err != nil {
		slog.Warn("cluster cache write failed", "key", key, "error", err)
	}
}
