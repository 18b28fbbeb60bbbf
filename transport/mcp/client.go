package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bartgame/multiplayer-server/game/room"
	"github.com/bartgame/multiplayer-server/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Bart Multiplayer Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Bart Multiplayer Server - MCP Interface

This is a thin admin client that proxies all requests to the REST API server.

The server relays room state between small groups of game clients over
WebSocket. Players create or join rooms, report movement/score state, and
receive merged snapshots. This MCP surface is for inspection and
administration only - gameplay happens over WebSocket.

AVAILABLE TOOLS:
- list_rooms: List all currently-existing rooms
- room_state: Get the full snapshot of one room
- server_stats: Room/player counts and the active deployment policy
- close_room: Close a room (members get a terminal notice first)`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all currently-existing rooms with player counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get the full snapshot of one room, including every player's reported state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"key": map[string]interface{}{
					"type":        "string",
					"description": "Room key",
				},
			},
			Required: []string{"key"},
		},
	}, c.handleRoomState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get process-wide room/player counts and the active deployment policy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_room",
		Description: "Close a room; members receive a terminal notice before the room is released",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"key": map[string]interface{}{
					"type":        "string",
					"description": "Room key",
				},
			},
			Required: []string{"key"},
		},
	}, c.handleCloseRoom)
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var list service.DirectoryList
	if err := c.apiCall("GET", "/api/rooms", nil, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(list.Rooms) == 0 {
		return mcp.NewToolResultText("No rooms currently exist."), nil
	}

	result := fmt.Sprintf("Rooms (%d):\n\n", len(list.Rooms))
	for _, info := range list.Rooms {
		result += fmt.Sprintf("- %s (%q, %d/%d players)\n",
			info.Key, info.DisplayName, info.PlayerCount, info.MaxPlayers)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	key, _ := args["key"].(string)

	var snapshot service.RoomSnapshot
	if err := c.apiCall("GET", fmt.Sprintf("/api/rooms/%s", key), nil, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snapshot)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall("GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Deployment: %s\nJoin policy: %s\nRoom capacity: %d\nRooms: %d\nPlayers: %d\n",
		stats.Deployment, stats.JoinPolicy, stats.MaxPlayers, stats.RoomCount, stats.PlayerCount)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleCloseRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	key, _ := args["key"].(string)

	var response struct {
		Closed  string `json:"closed"`
		Players int    `json:"players"`
	}
	if err := c.apiCall("DELETE", fmt.Sprintf("/api/rooms/%s", key), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Closed room %s (%d players notified)\n", response.Closed, response.Players)
	return mcp.NewToolResultText(result), nil
}

// formatSnapshot renders a room snapshot as readable text.
func formatSnapshot(snapshot *service.RoomSnapshot) string {
	result := fmt.Sprintf("Room %s (%q)\nPlayers: %d\n\n", snapshot.Key, snapshot.DisplayName, snapshot.PlayerCount)

	ids := make([]string, 0, len(snapshot.Players))
	for id := range snapshot.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result += formatPlayer(snapshot.Players[id])
	}
	return result
}

// formatPlayer renders one player's reported state.
func formatPlayer(p room.PlayerState) string {
	return fmt.Sprintf("- %s (%s): pos=[%g, %g] rot=%g score=%d launched=%t\n",
		p.Name, p.ID, p.Position[0], p.Position[1], p.Rotation, p.Score, p.Launched)
}
