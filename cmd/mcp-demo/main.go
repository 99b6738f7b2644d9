// Command mcp-demo runs a small MCP server over stdio. Point an aichat
// mcp config entry at it to exercise tool calls end to end without a
// real tool backend.
package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	s := server.NewMCPServer(
		"mcp-demo",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	sumTool := mcp.NewTool("sum",
		mcp.WithDescription("Calculates the sum of an array of numbers"),
		mcp.WithArray("numbers",
			mcp.Required(),
			mcp.Description("Numbers to sum"),
			mcp.Items(map[string]any{"type": "number"}),
		),
	)
	s.AddTool(sumTool, sumHandler)

	nowTool := mcp.NewTool("now",
		mcp.WithDescription("Returns the current time in RFC 3339 format"),
	)
	s.AddTool(nowTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(time.Now().Format(time.RFC3339)), nil
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}

func sumHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := request.GetArguments()["numbers"]
	if !ok {
		return mcp.NewToolResultError("numbers argument is required"), nil
	}

	values, ok := raw.([]any)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("expected array, got %T", raw)), nil
	}

	var sum float64
	for i, v := range values {
		n, ok := v.(float64)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("element %d is not a number: %T", i, v)), nil
		}
		sum += n
	}

	return mcp.NewToolResultText(strconv.FormatFloat(sum, 'f', -1, 64)), nil
}
