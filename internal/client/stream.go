package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// ErrStreamClosed is reported when the server ends a subscription.
var ErrStreamClosed = errors.New("subscription closed by server")

func (c *Client) SubscribeElements(ctx context.Context, projectID string) (backend.Subscription[[]model.Element], error) {
	feed, err := subscribe[[]model.Element](ctx, c, projectID, backend.EventElements)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (c *Client) SubscribePresence(ctx context.Context, projectID string) (backend.Subscription[[]model.PresenceRecord], error) {
	feed, err := subscribe[[]model.PresenceRecord](ctx, c, projectID, backend.EventPresence)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (c *Client) streamURL(projectID, topic string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	ws := u.JoinPath("ws", "projects", projectID, topic)
	q := ws.Query()
	q.Set("token", c.token)
	ws.RawQuery = q.Encode()
	return ws.String()
}

// subscribe dials the topic stream and feeds every snapshot event into a
// latest-wins Feed. The feed ends when ctx is done, Close is called, or the
// connection drops.
func subscribe[T any](ctx context.Context, c *Client, projectID, topic string) (*backend.Feed[T], error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(projectID, topic), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, statusError(http.MethodGet, "/ws/projects/"+projectID+"/"+topic, resp)
		}
		return nil, fmt.Errorf("failed to dial %s stream: %w", topic, err)
	}

	done := make(chan struct{})
	feed := backend.NewFeed[T](func() {
		close(done)
		conn.Close()
	})

	go func() {
		select {
		case <-ctx.Done():
			feed.Close()
		case <-done:
		}
	}()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-done:
				default:
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						feed.Fail(ErrStreamClosed)
					} else {
						feed.Fail(fmt.Errorf("%s stream: %w", topic, err))
					}
				}
				return
			}

			var ev backend.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[Client %s] dropping unreadable %s event: %v", projectID, topic, err)
				continue
			}
			switch ev.Type {
			case topic:
				var v T
				if err := json.Unmarshal(ev.Payload, &v); err != nil {
					log.Printf("[Client %s] dropping unreadable %s snapshot: %v", projectID, topic, err)
					continue
				}
				feed.Publish(v)
			case backend.EventError:
				var msg string
				_ = json.Unmarshal(ev.Payload, &msg)
				feed.Fail(fmt.Errorf("%s stream: %s", topic, msg))
				return
			}
		}
	}()

	return feed, nil
}
