package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/engine"
	"fenix-advisor/backend/middlewares"
)

const maxPreviewRows = 100

// Upload takes a CSV/XLSX ledger (multipart field "file", optional "sheet"),
// loads it and makes it the session's source.
func Upload(cache *datasource.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file (field 'file')"})
			return
		}
		defer file.Close()

		buf, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}
		src, err := datasource.NewFile(header.Filename, buf, c.PostForm("sheet"))
		if errors.Is(err, datasource.ErrUnsupportedFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}

		snap, err := cache.Get(c.Request.Context(), src)
		if err != nil {
			ans := engine.ErrorAnswer(err)
			c.JSON(answerStatus(ans), ans)
			return
		}
		middlewares.CurrentSession(c).SetSource(src)
		sheets, _ := src.Sheets()
		c.JSON(http.StatusOK, gin.H{
			"source":  src.Key(),
			"file":    src.Name,
			"sheet":   src.Sheet,
			"sheets":  sheets,
			"columns": snap.Dataset.ColumnNames(),
			"report":  snap.Report,
		})
	}
}

// Sheets lists the sheets of the session's uploaded workbook.
func Sheets() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := middlewares.CurrentSession(c).Source().(*datasource.File)
		if !ok || !f.IsWorkbook() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current source is not a workbook"})
			return
		}
		sheets, err := f.Sheets()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read workbook"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sheets": sheets, "selected": f.Sheet})
	}
}

func Preview(cache *datasource.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if limit > maxPreviewRows {
			limit = maxPreviewRows
		}
		snap, ok := snapshot(c, cache)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"columns":    snap.Dataset.ColumnNames(),
			"rows":       snap.Dataset.Head(limit),
			"total_rows": snap.Dataset.Len(),
		})
	}
}

// Schema returns the profile the planner sees plus the cleaning report.
func Schema(cache *datasource.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := snapshot(c, cache)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"profile":   snap.Profile,
			"report":    snap.Report,
			"loaded_at": snap.LoadedAt,
		})
	}
}

// Reload drops the cached dataset and reads the source again.
func Reload(cache *datasource.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		cache.Invalidate(middlewares.CurrentSession(c).Source())
		snap, ok := snapshot(c, cache)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": snap.Report, "loaded_at": snap.LoadedAt})
	}
}

func snapshot(c *gin.Context, cache *datasource.Cache) (*datasource.Snapshot, bool) {
	snap, err := cache.Get(c.Request.Context(), middlewares.CurrentSession(c).Source())
	if err != nil {
		ans := engine.ErrorAnswer(err)
		c.JSON(answerStatus(ans), ans)
		return nil, false
	}
	return snap, true
}
