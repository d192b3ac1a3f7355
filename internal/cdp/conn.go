package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"sessionops/internal/logging"
)

// ResponseError is an error object returned by the debugger for one request.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

type request struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

// conn is a single-flight DevTools session: one request outstanding at a time.
// Events and stale replies arriving between a request and its response are
// skipped by id.
type conn struct {
	ws      *websocket.Conn
	nextID  int64
	timeout time.Duration
}

func (c *Client) dial(ctx context.Context, url string) (*conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &conn{ws: ws, timeout: c.exchangeTimeout}, nil
}

func (cn *conn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(cn.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// call sends method and waits for the response carrying the same id.
func (cn *conn) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	cn.nextID++
	id := cn.nextID

	dl := cn.deadline(ctx)
	if err := cn.ws.SetWriteDeadline(dl); err != nil {
		return nil, err
	}
	if err := cn.ws.WriteJSON(request{ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	if err := cn.ws.SetReadDeadline(dl); err != nil {
		return nil, err
	}
	for {
		var resp response
		if err := cn.ws.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("read %s: %w", method, err)
		}
		if resp.ID != id {
			if resp.Method != "" {
				logging.CDPDebug("Skipping event %s while awaiting %s", resp.Method, method)
			}
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (cn *conn) close() {
	_ = cn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = cn.ws.Close()
}
