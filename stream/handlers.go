package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zapprosite/zappro-obras/domain"
)

// Storage fetches the task list pushed to subscribers.
type Storage interface {
	FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error)
}

// Authenticator validates the bearer token of a stream request.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Register wires the SSE endpoint on the given Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, broker *Broker) {
	e.GET("/api/projects/:projectID/stream", streamTasks(store, auth, broker))
}

// streamTasks pushes the project's full task list on connect and again on
// every change notification. EventSource clients cannot set headers, so the
// bearer token may arrive as a query parameter instead.
func streamTasks(store Storage, auth Authenticator, broker *Broker) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		ch := broker.Subscribe(projectID)
		defer broker.Unsubscribe(projectID, ch)
		for {
			tasks, err := store.FetchTasks(ctx, projectID)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			data, err := json.Marshal(tasks)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			}
		}
	}
}
