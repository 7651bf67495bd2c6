package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/pkg/db/pagination"
)

func (s *Server) RunSync(c *gin.Context) {
	force, err := parseOptionalBool(c.Query("force"))
	if err != nil {
		AbortWithError(c, newValidationError("force", "invalid_force", "invalid force"))
		return
	}

	resp, err := s.jobs.RunWarehouseSync(c.Request.Context(), jobdomain.RunSyncRequest{
		Trigger: jobdomain.TriggerAPI,
		Force:   force != nil && *force,
	})
	// a failed run still has a job record worth returning
	if err != nil && resp.Status != jobdomain.StatusFailed {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListJobs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Kind   string `form:"kind"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.jobs.List(c.Request.Context(), jobdomain.ListJobRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Kind:      strings.TrimSpace(query.Kind),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetJobByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.jobs.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UploadOrders(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, newValidationError("file", "file_too_large", "file too large"))
			return
		}
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	resp, err := s.jobs.SubmitUpload(c.Request.Context(), jobdomain.UploadRequest{
		FileName: header.Filename,
		Body:     file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

var jobValidationErrors = []error{
	jobdomain.ErrInvalidID,
	jobdomain.ErrInvalidKind,
	jobdomain.ErrInvalidStatus,
	jobdomain.ErrInvalidTrigger,
	jobdomain.ErrInvalidFile,
}

func isJobValidationError(err error) bool {
	for _, known := range jobValidationErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
