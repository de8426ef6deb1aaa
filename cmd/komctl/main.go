// komctl is a CLI tool for driving a kom-bridge server by hand.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	komctl lines -server URL -order ID
//	komctl klarna -server URL -order ID
//	komctl event -server URL -order ID -type completed|cancelled|items_saved|created
//	komctl action -server URL -order ID [-action kom_capture|kom_cancel|kom_sync] [-klarna-id ID]
//	komctl refund -server URL -order ID -amount 10.00 [-reason TEXT] [-refund-id ID] [-key KEY]
//
// Examples:
//
//	komctl lines -order 42
//	STATUS=$(komctl klarna -order 42 -q)
//	komctl event -order 42 -type completed
//	komctl refund -order 42 -amount 19.99 -reason "Damaged in transit"
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL string
	token     string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorBold = "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "lines":
		runLines(args)
	case "klarna":
		runKlarna(args)
	case "event":
		runEvent(args)
	case "action":
		runAction(args)
	case "refund":
		runRefund(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `komctl - Klarna order management tool

Usage:
  komctl <command> [options]

Commands:
  lines     Show the Klarna order lines built from a WooCommerce order
  klarna    Show the Klarna order and the actions available for it
  event     Send an order event (completed, cancelled, items_saved, created)
  action    Run a manual action or set the Klarna order ID
  refund    Refund an amount via Klarna

Examples:
  # Preview what would be sent to Klarna
  komctl lines -order 42

  # Capture after the order was completed
  komctl event -order 42 -type completed

  # Attach a Klarna order ID and sync addresses
  komctl action -order 42 -klarna-id 0b1d9815-165e-42e2-8867-35bc03789e00 -action kom_sync

  # Partial refund
  komctl refund -order 42 -amount 19.99 -reason "Damaged in transit"

Environment:
  KOM_SERVER  default for -server
  KOM_TOKEN   default for -token
  NO_COLOR    disable colored output

Run 'komctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags shared by every command.
func newFlagSet(name, usage string) (*flag.FlagSet, *int) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", envOrDefault("KOM_SERVER", "http://localhost:8080"), "kom-bridge base URL")
	fs.StringVar(&token, "token", os.Getenv("KOM_TOKEN"), "Bearer token")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the key value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	orderID := fs.Int("order", 0, "WooCommerce order ID (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: komctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs, orderID
}

// parse parses args and exits with usage when no order ID was given.
func parse(fs *flag.FlagSet, orderID *int, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
	if *orderID <= 0 {
		fs.Usage()
		os.Exit(1)
	}
}

func orderPath(orderID int, suffix string) string {
	return "/orders/" + strconv.Itoa(orderID) + suffix
}

// =============================================================================
// LINES COMMAND
// =============================================================================

func runLines(args []string) {
	fs, orderID := newFlagSet("lines", "lines -order ID [options]")
	parse(fs, orderID, args)

	resp, err := doRequest("GET", orderPath(*orderID, "/order-lines"), nil, nil)
	if err != nil {
		fatal("Failed to get order lines: %v", err)
	}

	if quiet {
		fmt.Println(formatMinor(resp["order_amount"]))
		return
	}

	printSuccess("Order lines built")
	lines, _ := resp["order_lines"].([]any)
	for _, l := range lines {
		line, ok := l.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  %-12s %-24s %3v x %10s = %s%10s%s\n",
			line["type"], truncate(fmt.Sprint(line["reference"]), 24), line["quantity"],
			formatMinor(line["unit_price"]), colorCyan, formatMinor(line["total_amount"]), colorReset)
	}
	fmt.Printf("  Total: %s%s%s  Tax: %s\n", colorGreen, formatMinor(resp["order_amount"]), colorReset, formatMinor(resp["order_tax_amount"]))
}

// =============================================================================
// KLARNA COMMAND
// =============================================================================

func runKlarna(args []string) {
	fs, orderID := newFlagSet("klarna", "klarna -order ID [options]")
	parse(fs, orderID, args)

	resp, err := doRequest("GET", orderPath(*orderID, "/klarna"), nil, nil)
	if err != nil {
		fatal("Failed to get Klarna order: %v", err)
	}

	ko, _ := resp["klarna_order"].(map[string]any)
	status, _ := ko["status"].(string)
	if quiet {
		fmt.Println(status)
		return
	}

	printSuccess("Klarna order retrieved")
	fmt.Printf("  ID: %s%v%s\n", colorCyan, ko["order_id"], colorReset)
	fmt.Printf("  Status: %s%s%s (fraud: %v)\n", colorCyan, status, colorReset, ko["fraud_status"])
	fmt.Printf("  Amount: %s  Captured: %s  Refunded: %s\n",
		formatMinor(ko["order_amount"]), formatMinor(ko["captured_amount"]), formatMinor(ko["refunded_amount"]))

	if actions, ok := resp["available_actions"].([]any); ok {
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, fmt.Sprint(a))
		}
		fmt.Printf("  %sActions:%s %s\n", colorYellow, colorReset, strings.Join(names, ", "))
	}
}

// =============================================================================
// EVENT COMMAND
// =============================================================================

func runEvent(args []string) {
	fs, orderID := newFlagSet("event", "event -order ID -type TYPE [options]")
	var eventType string
	fs.StringVar(&eventType, "type", "", "Event type: completed, cancelled, items_saved, created (required)")
	parse(fs, orderID, args)

	if eventType == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", orderPath(*orderID, "/events"), map[string]any{"type": eventType}, nil)
	if err != nil {
		fatal("Failed to send event: %v", err)
	}
	printResult(resp)
}

// =============================================================================
// ACTION COMMAND
// =============================================================================

func runAction(args []string) {
	fs, orderID := newFlagSet("action", "action -order ID [-action NAME] [-klarna-id ID] [options]")
	var action, klarnaID string
	fs.StringVar(&action, "action", "", "Action: kom_capture, kom_cancel, kom_sync")
	fs.StringVar(&klarnaID, "klarna-id", "", "Klarna order ID to store on the order")
	parse(fs, orderID, args)

	if action == "" && klarnaID == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]any{"action": action}
	if klarnaID != "" {
		body["klarna_order_id"] = klarnaID
	}

	resp, err := doRequest("POST", orderPath(*orderID, "/actions"), body, nil)
	if err != nil {
		fatal("Failed to run action: %v", err)
	}
	printResult(resp)
}

// =============================================================================
// REFUND COMMAND
// =============================================================================

func runRefund(args []string) {
	fs, orderID := newFlagSet("refund", "refund -order ID -amount N [options]")
	var amount, reason, key string
	var refundID int
	fs.StringVar(&amount, "amount", "", "Amount in major units, e.g. 19.99 (required)")
	fs.StringVar(&reason, "reason", "", "Refund reason sent to Klarna")
	fs.IntVar(&refundID, "refund-id", 0, "WooCommerce refund ID to send order lines for")
	fs.StringVar(&key, "key", "", "Idempotency key (retries with the same key are safe)")
	parse(fs, orderID, args)

	if amount == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]any{"amount": amount}
	if reason != "" {
		body["reason"] = reason
	}
	if refundID > 0 {
		body["refund_id"] = refundID
	}

	headers := map[string]string{}
	if key != "" {
		headers["Idempotency-Key"] = strconv.Quote(key)
	}

	resp, err := doRequest("POST", orderPath(*orderID, "/refunds"), body, headers)
	if err != nil {
		fatal("Failed to refund: %v", err)
	}
	printResult(resp)
}

// =============================================================================
// HTTP
// =============================================================================

func doRequest(method, path string, body any, headers map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(serverURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if verbose && !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose && !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, apiError(resp.StatusCode, respBody)
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

// apiError renders the server's {"error":{code,message}} body.
func apiError(status int, body []byte) error {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, string(body))
	}
	return fmt.Errorf("HTTP %d %s: %s", status, e.Error.Code, e.Error.Message)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printResult(resp map[string]any) {
	outcome, _ := resp["outcome"].(string)
	if quiet {
		fmt.Println(outcome)
		return
	}

	action, _ := resp["action"].(string)
	switch outcome {
	case "skipped":
		printWarning("%s skipped: %v", action, resp["reason"])
	default:
		printSuccess("%s %s", action, outcome)
	}
	for _, key := range []string{"klarna_order_id", "klarna_status", "capture_id"} {
		if v, ok := resp[key].(string); ok && v != "" {
			fmt.Printf("  %s: %s%s%s\n", key, colorCyan, v, colorReset)
		}
	}
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

// formatMinor renders a minor-unit amount with two decimals.
func formatMinor(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", val/100)
	case nil:
		return "-"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
