package handler

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
	"github.com/gin-gonic/gin"
)

// MediaHandler serves blobs out of the filesystem-backed store. It enforces
// the store's signed URL contract, so private files are only reachable
// through URLs the store itself issued. Deployments on remote object storage
// do not mount this handler; their URLs point at the storage service.
type MediaHandler struct {
	store  *storage.LocalStore
	signed bool
}

// NewMediaHandler creates a new media handler.
// Parameters:
//   - store: local store the files live in.
//   - signed: whether URLs carry signatures that must be verified.
// Returns:
//   - *MediaHandler: initialized handler.
func NewMediaHandler(store *storage.LocalStore, signed bool) *MediaHandler {
	return &MediaHandler{store: store, signed: signed}
}

// Serve handles GET /media/*filepath.
func (h *MediaHandler) Serve(c *gin.Context) {
	if h.signed {
		if err := h.store.VerifySignedURL(c.Request.URL.String()); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "URL is invalid or has expired"})
			return
		}
	}

	// URL paths carry final storage keys; strip the location prefix so Open
	// does not apply it twice.
	name := strings.TrimPrefix(c.Param("filepath"), "/")
	if loc := h.store.Location(); loc != "" {
		name = strings.TrimPrefix(name, strings.TrimSuffix(loc, "/")+"/")
	}
	data, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}
