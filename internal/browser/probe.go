package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Version describes the browser behind a CDP endpoint.
type Version struct {
	Browser         string `json:"browser"`
	ProtocolVersion string `json:"protocol_version"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"user_agent"`
	JSVersion       string `json:"js_version"`
	WebSocketURL    string `json:"websocket_url"`
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// fetchVersion reads the /json/version document of the debugging endpoint.
func fetchVersion(ctx context.Context, client *http.Client, httpBase string) (versionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(httpBase, "/")+"/json/version", nil)
	if err != nil {
		return versionInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return versionInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return versionInfo{}, fmt.Errorf("/json/version: HTTP %d", resp.StatusCode)
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return versionInfo{}, fmt.Errorf("/json/version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return versionInfo{}, fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info, nil
}

// Probe checks that cdpURL speaks CDP: it resolves the browser WebSocket,
// dials it and asks for Browser.getVersion. Nothing is attached to any page.
func Probe(ctx context.Context, cdpURL string) (Version, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	info, err := fetchVersion(ctx, http.DefaultClient, cdpURL)
	if err != nil {
		return Version{}, fmt.Errorf("probe: %w", err)
	}

	slog.Debug("probe connecting", "ws_url", info.WebSocketDebuggerURL)
	conn, _, _, err := ws.Dial(ctx, info.WebSocketDebuggerURL)
	if err != nil {
		return Version{}, fmt.Errorf("probe: dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	const id = 1
	req, err := json.Marshal(struct {
		ID     int    `json:"id"`
		Method string `json:"method"`
	}{ID: id, Method: "Browser.getVersion"})
	if err != nil {
		return Version{}, fmt.Errorf("probe: marshal: %w", err)
	}
	if err := wsutil.WriteClientText(conn, req); err != nil {
		return Version{}, fmt.Errorf("probe: send: %w", err)
	}

	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			return Version{}, fmt.Errorf("probe: read: %w", err)
		}
		var msg struct {
			ID     int `json:"id"`
			Result struct {
				ProtocolVersion string `json:"protocolVersion"`
				Product         string `json:"product"`
				Revision        string `json:"revision"`
				UserAgent       string `json:"userAgent"`
				JSVersion       string `json:"jsVersion"`
			} `json:"result"`
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return Version{}, fmt.Errorf("probe: Browser.getVersion: %d %s", msg.Error.Code, msg.Error.Message)
		}
		return Version{
			Browser:         info.Browser,
			ProtocolVersion: msg.Result.ProtocolVersion,
			Product:         msg.Result.Product,
			Revision:        msg.Result.Revision,
			UserAgent:       msg.Result.UserAgent,
			JSVersion:       msg.Result.JSVersion,
			WebSocketURL:    info.WebSocketDebuggerURL,
		}, nil
	}
}
