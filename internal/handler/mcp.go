// MCP transport for the bridge using the official MCP Go SDK.
// Exposes order management operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"kom-bridge/internal/klarna"
	"kom-bridge/internal/model"
	"kom-bridge/internal/ordermgmt"
)

// === MCP Tool Input Types ===

// OrderInput addresses a single WooCommerce order.
type OrderInput struct {
	OrderID int `json:"order_id" jsonschema:"WooCommerce order ID"`
}

// CaptureOrderInput is the input schema for capture_order tool.
type CaptureOrderInput struct {
	OrderID       int    `json:"order_id" jsonschema:"WooCommerce order ID"`
	KlarnaOrderID string `json:"klarna_order_id,omitempty" jsonschema:"Klarna order ID to attach before capturing"`
}

// RefundOrderInput is the input schema for refund_order tool.
type RefundOrderInput struct {
	OrderID        int    `json:"order_id" jsonschema:"WooCommerce order ID"`
	Amount         string `json:"amount" jsonschema:"amount to refund in major units, e.g. 12.50"`
	Reason         string `json:"reason,omitempty" jsonschema:"refund reason shown to the customer"`
	RefundID       int    `json:"refund_id,omitempty" jsonschema:"WooCommerce refund whose items are sent as order lines"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"key forwarded to Klarna so retries do not refund twice"`
}

// NewMCPServer creates an MCP server with order management tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "kom-bridge",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Klarna Order Management for WooCommerce orders. " +
				"Use these tools to inspect, capture, cancel, sync and refund Klarna orders.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_klarna_order",
		Description: "Get the Klarna order behind a WooCommerce order and the actions currently allowed on it.",
	}, h.mcpGetKlarnaOrder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_order_lines",
		Description: "Show the Klarna order lines a capture of the WooCommerce order would send.",
	}, h.mcpPreviewOrderLines)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_order",
		Description: "Capture the Klarna order. Optionally attach a Klarna order ID first.",
	}, h.mcpCaptureOrder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel the Klarna order. Captured orders cannot be cancelled.",
	}, h.mcpCancelOrder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_order",
		Description: "Copy the customer addresses from the Klarna order onto the WooCommerce order.",
	}, h.mcpSyncOrder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refund_order",
		Description: "Refund an amount of a captured Klarna order.",
	}, h.mcpRefundOrder)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetKlarnaOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OrderInput,
) (*mcp.CallToolResult, *ordermgmt.KlarnaView, error) {
	if input.OrderID <= 0 {
		return nil, nil, fmt.Errorf("order_id is required")
	}

	view, err := h.svc.KlarnaOrder(ctx, input.OrderID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, view, nil
}

func (h *Handler) mcpPreviewOrderLines(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OrderInput,
) (*mcp.CallToolResult, *model.OrderLines, error) {
	if input.OrderID <= 0 {
		return nil, nil, fmt.Errorf("order_id is required")
	}

	lines, err := h.svc.OrderLines(ctx, input.OrderID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &lines, nil
}

func (h *Handler) mcpCaptureOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CaptureOrderInput,
) (*mcp.CallToolResult, *ordermgmt.Result, error) {
	return h.mcpAction(ctx, input.OrderID, ordermgmt.MetaBoxCapture, input.KlarnaOrderID)
}

func (h *Handler) mcpCancelOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OrderInput,
) (*mcp.CallToolResult, *ordermgmt.Result, error) {
	return h.mcpAction(ctx, input.OrderID, ordermgmt.MetaBoxCancel, "")
}

func (h *Handler) mcpSyncOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OrderInput,
) (*mcp.CallToolResult, *ordermgmt.Result, error) {
	return h.mcpAction(ctx, input.OrderID, ordermgmt.MetaBoxSync, "")
}

func (h *Handler) mcpAction(ctx context.Context, orderID int, action, klarnaOrderID string) (*mcp.CallToolResult, *ordermgmt.Result, error) {
	if orderID <= 0 {
		return nil, nil, fmt.Errorf("order_id is required")
	}

	res, err := h.svc.ApplyAction(ctx, orderID, action, klarnaOrderID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

func (h *Handler) mcpRefundOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RefundOrderInput,
) (*mcp.CallToolResult, *ordermgmt.Result, error) {
	if input.OrderID <= 0 {
		return nil, nil, fmt.Errorf("order_id is required")
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("amount must be a decimal number")
	}
	if input.IdempotencyKey != "" {
		ctx = klarna.WithIdempotencyKey(ctx, input.IdempotencyKey)
	}

	res, err := h.svc.Refund(ctx, input.OrderID, ordermgmt.RefundInput{
		Amount:   amount,
		Reason:   input.Reason,
		RefundID: input.RefundID,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
