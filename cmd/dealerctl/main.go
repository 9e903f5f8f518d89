// dealerctl drives a running dealerd over its HTTP API. It is the
// dealer's console for day-to-day table operations and a debugging tool
// for everything else.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

type cli struct {
	Addr string `help:"Base URL of the dealerd server." default:"http://localhost:8080"`
	User string `help:"Caller identity, sent as X-User-ID." env:"DEALERD_USER"`

	CreateUser     createUserCmd     `cmd:"" name:"create-user" help:"Register a user; prints the record with its id."`
	CreateTable    createTableCmd    `cmd:"" name:"create-table" help:"Open a table owned by the caller; prints it."`
	Tables         tablesCmd         `cmd:"" help:"List table ids."`
	State          stateCmd          `cmd:"" help:"Print a table snapshot as the caller sees it."`
	Events         eventsCmd         `cmd:"" help:"Print a table's event log."`
	Join           joinCmd           `cmd:"" help:"Take a seat at a table."`
	Leave          leaveCmd          `cmd:"" help:"Stand up and cash the stack back to the bank."`
	Kick           kickCmd           `cmd:"" help:"Remove a seat from the table (dealer only)."`
	Start          startCmd          `cmd:"" help:"Start the next hand (dealer only)."`
	Reset          resetCmd          `cmd:"" help:"Abandon the current hand and restore stacks (dealer only)."`
	Act            actCmd            `cmd:"" help:"Perform a betting action: check, raise or fold."`
	Deal           dealCmd           `cmd:"" help:"Key a card in by hand (dealer only)."`
	RegisterDevice registerDeviceCmd `cmd:"" name:"register-device" help:"Bind a scanner serial to a table (dealer only)."`
}

func main() {
	var args cli
	kctx := kong.Parse(&args, kong.Name("dealerctl"), kong.Description("Poker table engine control client."))
	api := &apiClient{
		base:   args.Addr,
		userID: args.User,
		hc:     &http.Client{Timeout: 15 * time.Second},
	}
	kctx.FatalIfErrorf(kctx.Run(api))
}

type apiClient struct {
	base   string
	userID string
	hc     *http.Client
}

func (a *apiClient) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.userID != "" {
		req.Header.Set("X-User-ID", a.userID)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Kind  string `json:"kind"`
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", apiErr.Kind, apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *apiClient) post(path string, body, out any) error {
	return a.do(http.MethodPost, path, body, out)
}

func (a *apiClient) get(path string, out any) error {
	return a.do(http.MethodGet, path, nil, out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type createUserCmd struct {
	Name    string `arg:"" help:"Display name."`
	Role    string `help:"player or dealer." default:"player"`
	Balance int64  `help:"Opening bank balance."`
}

func (c *createUserCmd) Run(api *apiClient) error {
	var out json.RawMessage
	err := api.post("/api/users", map[string]any{
		"name": c.Name, "role": c.Role, "balance": c.Balance,
	}, &out)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type createTableCmd struct {
	Name             string `arg:"" help:"Table name."`
	SmallBlind       int64  `help:"Small blind." default:"5"`
	BigBlind         int64  `help:"Big blind." default:"10"`
	MinBuyIn         int64  `help:"Minimum buy-in." default:"100"`
	MaxBuyIn         int64  `help:"Maximum buy-in." default:"1000"`
	MaxSeats         int    `help:"Seat count." default:"9"`
	BlindStepSeconds int64  `help:"Seconds per blind level; 0 keeps blinds flat."`
}

func (c *createTableCmd) Run(api *apiClient) error {
	var out json.RawMessage
	err := api.post("/api/tables", map[string]any{
		"name":             c.Name,
		"smallBlind":       c.SmallBlind,
		"bigBlind":         c.BigBlind,
		"minBuyIn":         c.MinBuyIn,
		"maxBuyIn":         c.MaxBuyIn,
		"maxSeats":         c.MaxSeats,
		"blindStepSeconds": c.BlindStepSeconds,
	}, &out)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type tablesCmd struct{}

func (c *tablesCmd) Run(api *apiClient) error {
	var out json.RawMessage
	if err := api.get("/api/tables", &out); err != nil {
		return err
	}
	return printJSON(out)
}

type stateCmd struct {
	TableID string `arg:"" help:"Table id."`
}

func (c *stateCmd) Run(api *apiClient) error {
	var out json.RawMessage
	if err := api.get("/api/tables/"+url.PathEscape(c.TableID), &out); err != nil {
		return err
	}
	return printJSON(out)
}

type eventsCmd struct {
	TableID string `arg:"" help:"Table id."`
	After   int64  `help:"Only events after this id."`
	Limit   int    `help:"Maximum rows." default:"200"`
}

func (c *eventsCmd) Run(api *apiClient) error {
	var out json.RawMessage
	path := fmt.Sprintf("/api/tables/%s/events?after=%d&limit=%d", url.PathEscape(c.TableID), c.After, c.Limit)
	if err := api.get(path, &out); err != nil {
		return err
	}
	return printJSON(out)
}

type joinCmd struct {
	TableID string `arg:"" help:"Table id."`
	BuyIn   int64  `help:"Chips to bring from the bank." required:""`
}

func (c *joinCmd) Run(api *apiClient) error {
	var out json.RawMessage
	err := api.post("/api/tables/"+url.PathEscape(c.TableID)+"/join", map[string]any{
		"buyIn": c.BuyIn,
	}, &out)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type leaveCmd struct {
	TableID string `arg:"" help:"Table id."`
}

func (c *leaveCmd) Run(api *apiClient) error {
	return api.post("/api/tables/"+url.PathEscape(c.TableID)+"/leave", nil, nil)
}

type kickCmd struct {
	TableID string `arg:"" help:"Table id."`
	SeatID  string `arg:"" help:"Seat id to remove."`
}

func (c *kickCmd) Run(api *apiClient) error {
	return api.post("/api/tables/"+url.PathEscape(c.TableID)+"/kick", map[string]any{"seatId": c.SeatID}, nil)
}

type startCmd struct {
	TableID string `arg:"" help:"Table id."`
}

func (c *startCmd) Run(api *apiClient) error {
	var out json.RawMessage
	if err := api.post("/api/tables/"+url.PathEscape(c.TableID)+"/start", nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

type resetCmd struct {
	TableID string `arg:"" help:"Table id."`
}

func (c *resetCmd) Run(api *apiClient) error {
	return api.post("/api/tables/"+url.PathEscape(c.TableID)+"/reset", nil, nil)
}

type actCmd struct {
	TableID string `arg:"" help:"Table id."`
	Action  string `arg:"" enum:"check,raise,fold" help:"check, raise or fold. A check with a bet owed calls it."`
	Amount  int64  `help:"New bet total; raise only."`
}

func (c *actCmd) Run(api *apiClient) error {
	return api.post("/api/tables/"+url.PathEscape(c.TableID)+"/actions", map[string]any{
		"action": strings.ToUpper(c.Action), "amount": c.Amount,
	}, nil)
}

type dealCmd struct {
	TableID string `arg:"" help:"Table id."`
	Card    string `arg:"" help:"Card code, e.g. As or Td."`
}

func (c *dealCmd) Run(api *apiClient) error {
	return api.post("/api/tables/"+url.PathEscape(c.TableID)+"/cards", map[string]any{"code": c.Card}, nil)
}

type registerDeviceCmd struct {
	Serial  string `arg:"" help:"Scanner serial."`
	TableID string `arg:"" help:"Table the scanner feeds."`
}

func (c *registerDeviceCmd) Run(api *apiClient) error {
	var out json.RawMessage
	err := api.post("/api/devices", map[string]any{
		"serial": c.Serial, "tableId": c.TableID, "kind": "scanner",
	}, &out)
	if err != nil {
		return err
	}
	return printJSON(out)
}
