package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/triage/internal/api/response"
	"github.com/kiranshivaraju/triage/internal/cache"
	"github.com/kiranshivaraju/triage/internal/render"
)

const sliceCacheTTL = 10 * time.Minute

var reSliceName = regexp.MustCompile(`^([0-9a-f]{2}|sig-[A-Za-z0-9_.-]+)$`)

// NewSliceHandler serves GET /api/v1/slices/{prefix} from the files the
// summarize command wrote under template. Contents are cached by file
// version so a rewritten slice is never served stale.
func NewSliceHandler(template string, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "prefix")
		if !reSliceName.MatchString(name) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"Slice must be two hex digits or sig-<owner>", nil)
			return
		}

		path := strings.ReplaceAll(template, render.SlicePlaceholder, name)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Slice not found", nil)
			return
		}
		if err != nil {
			slog.Error("stat slice", "path", path, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read slice", nil)
			return
		}

		key := cache.SliceKey(fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()), name)
		data, found, err := c.Get(r.Context(), key)
		if err != nil {
			slog.Warn("slice cache read failed", "key", key, "error", err)
		}
		if !found {
			data, err = os.ReadFile(path)
			if err != nil {
				slog.Error("read slice", "path", path, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read slice", nil)
				return
			}
			if !json.Valid(data) {
				slog.Error("slice is not valid JSON", "path", path)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Slice is corrupt", nil)
				return
			}
			if err := c.Set(r.Context(), key, data, sliceCacheTTL); err != nil {
				slog.Warn("slice cache write failed", "key", key, "error", err)
			}
		}

		response.JSON(w, json.RawMessage(data))
	}
}
