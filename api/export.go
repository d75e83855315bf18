package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zapprosite/zappro-obras/domain"
)

var exportHeader = []string{
	"id", "title", "status", "priority", "lane", "sort_order",
	"start_at", "end_at", "team", "notes",
}

// exportTasks streams the project's task list as CSV, one row per task in
// sort order.
func exportTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")

		tasks, err := store.FetchTasks(ctx, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tarefas-`+projectID+`.csv"`)
		c.Response().WriteHeader(http.StatusOK)

		w := csv.NewWriter(c.Response().Writer)
		if err := w.Write(exportHeader); err != nil {
			return err
		}
		for _, t := range tasks {
			if err := w.Write(exportRow(t)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}
}

func exportRow(t domain.Task) []string {
	return []string{
		t.ID,
		t.Title,
		string(t.Status),
		string(t.Priority),
		string(t.Lane),
		strconv.Itoa(t.SortOrder),
		formatExportTime(t.StartAt),
		formatExportTime(t.EndAt),
		t.TeamName,
		t.Notes,
	}
}

func formatExportTime(at *time.Time) string {
	if at == nil {
		return ""
	}
	return at.Format(time.RFC3339)
}
