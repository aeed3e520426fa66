package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/ingest"
)

var errNotImage = errors.New("file must be an image")

// readImage pulls the "image" multipart field from the request.
func readImage(c *gin.Context) (detect.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return detect.Image{}, fmt.Errorf("image field is required: %w", err)
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return detect.Image{}, errNotImage
	}

	f, err := fh.Open()
	if err != nil {
		return detect.Image{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return detect.Image{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return detect.Image{}, errors.New("image is empty")
	}
	return detect.Image{Data: data, Filename: fh.Filename, ContentType: contentType}, nil
}

// PostDetection handles POST /api/detections: detect, then replace the
// registry. An upstream failure leaves the registry unchanged.
func (h *Handler) PostDetection(c *gin.Context) {
	img, err := readImage(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.ingest.Submit(c.Request.Context(), img, ingest.OriginUpload)
	if err != nil {
		abortWithError(c, err, http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report": report,
		"spots":  h.store.Snapshot(),
	})
}

// PostVisualize handles POST /api/visualize.
func (h *Handler) PostVisualize(c *gin.Context) {
	img, err := readImage(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.visualizer.Visualize(c.Request.Context(), img)
	if err != nil {
		abortWithError(c, err, http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, resp)
}
