// Command taskboard is the taskboard CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BlackHan26/taskboard/internal/version"
)

const defaultServer = "http://localhost:8080"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "taskboard server URL")
		token     = flag.String("token", os.Getenv("TASKBOARD_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "teams":
		err = cli.cmdTeams(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "notifications":
		err = cli.cmdNotifications(rest)
	case "sweep":
		err = cli.cmdSweep(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `taskboard — taskboard CLI

Usage:
  taskboard [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8080)
  --token   <token>  JWT auth token (or $TASKBOARD_TOKEN)

Commands:
  version                        print version
  status                         show server status
  login <user> <pass>            obtain an auth token
  teams                          list my teams
  tasks <team-id>                list a team's tasks
  task create <team-id> <name> <worker-id> <start> <due>
                                 create a task (dates as YYYY-MM-DD)
  notifications                  show my notification inbox
  sweep                          trigger a manual status sweep
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("taskboard %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// post performs a POST with a JSON body and decodes JSON into v.
func (c *Client) post(path string, body, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

func (c *Client) do(method, path string, body, v any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// --- commands ---

func (c *Client) cmdStatus(_ []string) error {
	var status map[string]string
	if err := c.get("/api/status", &status); err != nil {
		return err
	}
	fmt.Printf("status: %s  version: %s\n", status["status"], status["version"])
	return nil
}

func (c *Client) cmdLogin(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: taskboard login <user> <pass>")
	}
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	body := map[string]string{"username": args[0], "password": args[1]}
	if err := c.post("/api/auth/login", body, &resp); err != nil {
		return err
	}
	fmt.Printf("export TASKBOARD_TOKEN=%s\n", resp.Token)
	return nil
}

func (c *Client) cmdTeams(_ []string) error {
	var teams []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get("/api/teams", &teams); err != nil {
		return err
	}
	for _, t := range teams {
		fmt.Printf("%s  %s\n", t.ID, t.Name)
	}
	return nil
}

func (c *Client) cmdTasks(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskboard tasks <team-id>")
	}
	var tasks []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Status  string `json:"status"`
		DueDate string `json:"due_date"`
	}
	if err := c.get("/api/teams/"+args[0]+"/tasks", &tasks); err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Printf("%s  [%s]  %s  due %s\n", t.ID, t.Status, t.Name, t.DueDate)
	}
	return nil
}

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskboard task create <team-id> <name> <worker-id> <start> <due>")
	}
	switch args[0] {
	case "create":
		if len(args) != 6 {
			return fmt.Errorf("usage: taskboard task create <team-id> <name> <worker-id> <start> <due>")
		}
		start, err := time.Parse("2006-01-02", args[4])
		if err != nil {
			return fmt.Errorf("bad start date: %w", err)
		}
		due, err := time.Parse("2006-01-02", args[5])
		if err != nil {
			return fmt.Errorf("bad due date: %w", err)
		}
		body := map[string]any{
			"name":       args[2],
			"worker_id":  args[3],
			"start_date": start,
			"due_date":   due,
		}
		var created struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := c.post("/api/teams/"+args[1]+"/tasks", body, &created); err != nil {
			return err
		}
		fmt.Printf("created %s [%s]\n", created.ID, created.Status)
		return nil
	default:
		return fmt.Errorf("unknown task subcommand: %s", args[0])
	}
}

func (c *Client) cmdNotifications(_ []string) error {
	var msgs []struct {
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := c.get("/api/notifications", &msgs); err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Content)
	}
	return nil
}

func (c *Client) cmdSweep(_ []string) error {
	var resp struct {
		Transitions int `json:"transitions"`
	}
	if err := c.post("/api/admin/sweep", nil, &resp); err != nil {
		return err
	}
	fmt.Printf("sweep complete: %d transition(s)\n", resp.Transitions)
	return nil
}
