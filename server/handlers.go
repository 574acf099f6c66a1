package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rankdesk/rankdesk/domain"
	"github.com/rankdesk/rankdesk/rest"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// processorFromBody reads the writable fields of a request record. Unlike
// domain.ProcessorFromRaw it applies no placeholders; missing fields are stored as NULL.
func processorFromBody(raw domain.RawRecord) *domain.Processor {
	field := func(key string) string {
		value, ok := raw[key]
		if !ok || value == nil {
			return ""
		}
		return cast.ToString(value)
	}
	return &domain.Processor{
		Processor:  field("processor"),
		Rating:     field("rating"),
		Antutu10:   field("antutu_10"),
		Geekbench6: field("geekbench_6"),
		Cores:      field("cores"),
		Clock:      field("clock"),
		GPU:        field("gpu"),
	}
}

func (srv *Server) internalError(c *gin.Context, msg string, err error) {
	srv.logger.Error(msg, zap.Error(err), zap.String("request_id", c.GetHeader("X-Request-ID")))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func (srv *Server) listProcessors(c *gin.Context) {
	processors, err := srv.repo.GetProcessors()
	if err != nil {
		srv.internalError(c, "failed to list processors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": processors})
}

// createProcessors accepts a single record or a batch and answers with the whole collection.
func (srv *Server) createProcessors(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body"})
		return
	}

	envelope := domain.Envelope{Data: body}
	records, err := envelope.Records()
	if err != nil || len(records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a processor object or a non-empty array"})
		return
	}

	for _, record := range records {
		if _, err := srv.repo.CreateProcessor(processorFromBody(record)); err != nil {
			srv.internalError(c, "failed to create processor", err)
			return
		}
	}

	processors, err := srv.repo.GetProcessors()
	if err != nil {
		srv.internalError(c, "failed to list processors", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": processors})
}

func (srv *Server) updateProcessor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid processor id"})
		return
	}

	var raw domain.RawRecord
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a processor object"})
		return
	}

	processor := processorFromBody(raw)
	if err := srv.repo.UpdateProcessor(id, processor); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "processor not found"})
			return
		}
		srv.internalError(c, "failed to update processor", err)
		return
	}

	processor.ID = domain.Int64(id)
	c.JSON(http.StatusOK, gin.H{"data": processor})
}

func (srv *Server) deleteProcessor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid processor id"})
		return
	}

	if err := srv.repo.DeleteProcessor(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "processor not found"})
			return
		}
		srv.internalError(c, "failed to delete processor", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (srv *Server) login(c *gin.Context) {
	if srv.auth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "login is disabled"})
		return
	}

	var credentials rest.Credentials
	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected username and password"})
		return
	}

	token, err := srv.auth.Authenticate(credentials.Username, credentials.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			srv.logger.Warn("failed login", zap.String("username", credentials.Username), zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		srv.internalError(c, "failed to issue token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token}})
}
