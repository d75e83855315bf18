package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/projects/:projectID/tasks", getTasks(store, auth, logger))
	e.GET("/api/projects/:projectID/tasks/export", exportTasks(store, auth))
	e.POST("/api/projects/:projectID/tasks", createTask(store, auth))
	e.PATCH("/api/projects/:projectID/tasks/:id", updateTask(store, auth))
	e.DELETE("/api/projects/:projectID/tasks/:id", deleteTask(store, auth))
	e.POST("/api/projects/:projectID/tasks/:id/move", moveTask(store, auth, deduper))
	e.GET("/api/projects/:projectID/teams", getTeams(store, auth))
	e.GET("/healthz", healthz())

	initChangeSender(store, logger)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		projectID := c.Param("projectID")

		fetchStart := time.Now()
		tasks, fetchErr := store.FetchTasks(ctx, projectID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTeams(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		teams, err := store.FetchTeams(ctx, c.Param("projectID"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, teamsResponse{Teams: teams})
	}
}

func createTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")

		var fields domain.CreateTask
		if err := decodeBody(c.Request().Body, &fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if fields.Title == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}
		if fields.Lane != "" && !fields.Lane.Valid() {
			return c.String(http.StatusBadRequest, "unknown lane")
		}

		task, err := store.CreateTask(ctx, projectID, fields)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sendChange(store, changeEvent(projectID, task.ID, domain.TaskCreated))
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")
		taskID := c.Param("id")

		var patch domain.TaskPatch
		if err := decodeBody(c.Request().Body, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if patch.IsZero() {
			return c.String(http.StatusBadRequest, "empty update")
		}
		if patch.Lane != nil && !patch.Lane.Valid() {
			return c.String(http.StatusBadRequest, "unknown lane")
		}

		task, err := store.UpdateTask(ctx, projectID, taskID, patch)
		if err != nil {
			var notFound TaskNotFoundError
			if errors.As(err, &notFound) {
				return c.String(http.StatusNotFound, notFound.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sendChange(store, changeEvent(projectID, taskID, domain.TaskUpdated))
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")
		taskID := c.Param("id")

		if err := store.SoftDeleteTask(ctx, projectID, taskID); err != nil {
			var notFound TaskNotFoundError
			if errors.As(err, &notFound) {
				return c.String(http.StatusNotFound, notFound.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sendChange(store, changeEvent(projectID, taskID, domain.TaskDeleted))
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(body io.Reader, out any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, requestBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
