package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-manager/services"
	"github.com/yeremiapane/table-manager/utils"
)

type TableController struct {
	Service *services.TableService
}

func NewTableController(svc *services.TableService) *TableController {
	return &TableController{Service: svc}
}

type tableRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type bulkCreateRequest struct {
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkFailure is one entry of the "failed" list in a 207 response.
type BulkFailure struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetAllTables -> every table, newest first
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Service.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// GetTableByID -> detail of one table
func (tc *TableController) GetTableByID(c *gin.Context) {
	table, err := tc.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetTableStats -> number of tables per status
func (tc *TableController) GetTableStats(c *gin.Context) {
	stats, err := tc.Service.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateTable -> add a single table, status defaults to "available"
func (tc *TableController) CreateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.Create(c.Request.Context(), req.Name, req.Status)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

// BulkCreateTables -> "{prefix} 1" .. "{prefix} count", rejected whole on any duplicate
func (tc *TableController) BulkCreateTables(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	created, err := tc.Service.BulkCreate(c.Request.Context(), req.Prefix, req.Count)
	if err != nil {
		var bulkErr *services.BulkError
		if errors.As(err, &bulkErr) {
			respondPartial(c, bulkErr, "tables", created)
			return
		}
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tables": created})
}

// UpdateTable -> rename a table and optionally change its status
func (tc *TableController) UpdateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.Update(c.Request.Context(), c.Param("id"), req.Name, req.Status)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// DeleteTable -> remove a table permanently
func (tc *TableController) DeleteTable(c *gin.Context) {
	id := c.Param("id")
	if err := tc.Service.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted successfully", gin.H{"id": id})
}

// BulkDeleteTables -> best-effort delete of every id
func (tc *TableController) BulkDeleteTables(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	deleted, err := tc.Service.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		var bulkErr *services.BulkError
		if errors.As(err, &bulkErr) {
			respondPartial(c, bulkErr, "deleted", deleted)
			return
		}
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// respondPartial answers 207 when part of a bulk operation succeeded. When nothing
// succeeded the first failure decides the status code.
func respondPartial(c *gin.Context, bulkErr *services.BulkError, key string, succeeded interface{}) {
	failed := make([]BulkFailure, 0, len(bulkErr.Failures))
	for _, f := range bulkErr.Failures {
		failed = append(failed, BulkFailure{Key: f.Key, Code: errorCode(f.Err), Message: f.Err.Error()})
	}

	code := http.StatusMultiStatus
	if len(bulkErr.Failures) == bulkErr.Total {
		code = statusFor(bulkErr.Failures[0].Err)
	}
	c.JSON(code, gin.H{
		"message": bulkErr.Error(),
		key:       succeeded,
		"failed":  failed,
	})
}

// Error codes carried in the "data.code" field of error responses.
const (
	CodeInvalidInput     = "invalid_input"
	CodeDuplicateName    = "duplicate_name"
	CodeNotFound         = "not_found"
	CodeStoreUnavailable = "store_unavailable"
)

func handleServiceError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		utils.ErrorLogger.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled table service error")
	}

	data := gin.H{"code": errorCode(err)}
	var dupErr *services.DuplicateNamesError
	if errors.As(err, &dupErr) {
		data["duplicates"] = dupErr.Names
	}
	utils.RespondErrorData(c, code, err, data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrDuplicateName):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrDuplicateName):
		return CodeDuplicateName
	case errors.Is(err, services.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, services.ErrNotFound):
		return CodeNotFound
	default:
		return CodeStoreUnavailable
	}
}
