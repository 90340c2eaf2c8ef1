package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fluxorio/todoapi/models"
	"github.com/valyala/fasthttp"
)

const listPageSize = 100

// cli runs one subcommand against the server. Exit codes: 0 ok, 1 error, 2 usage.
type cli struct {
	api   *apiClient
	store *credStore
	in    io.Reader
	out   io.Writer
	err   io.Writer
}

func (c *cli) run(args []string) int {
	if len(args) == 0 {
		c.help()
		return 2
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		c.help()
		return 0
	case "register":
		return c.register(rest)
	case "login":
		return c.login(rest)
	case "logout":
		return c.logout()
	case "whoami":
		return c.whoami()
	case "ls", "list":
		return c.list(rest)
	case "add":
		return c.add(rest)
	case "done":
		return c.withIndex("done", rest, c.toggle)
	case "rm":
		return c.withIndex("rm", rest, c.remove)
	case "stats":
		return c.stats()
	}

	fail(c.err, "unknown subcommand: "+cmd)
	fmt.Fprintln(c.err)
	c.help()
	return 2
}

func (c *cli) help() {
	fmt.Fprint(c.out, `todoctl - command line client for the todo API

Usage:
  todoctl [-server URL] <subcommand> [args]

Subcommands:
  register <username> <email>   Create an account (password read from stdin)
  login <username>              Log in (password read from stdin)
  logout                        Revoke the refresh token and forget credentials
  whoami                        Show the logged in account
  ls [-done|-pending] [-search text] [-priority p]
                                List todos, oldest first
  add [-p priority] [-due YYYY-MM-DD] [-d description] <title...>
                                Add a todo
  done <index>                  Toggle completion of the todo at 1-based index
  rm <index>                    Delete the todo at 1-based index
  stats                         Show counts by state and priority
`)
}

func (c *cli) register(args []string) int {
	if len(args) != 2 {
		fail(c.err, "usage: todoctl register <username> <email>")
		return 2
	}
	password, err := c.readPassword()
	if err != nil {
		fail(c.err, err.Error())
		return 1
	}
	res, err := c.api.register(args[0], args[1], password)
	if err != nil {
		fail(c.err, "register: "+err.Error())
		return 1
	}
	if err := c.store.save(&credentials{
		Server:   c.api.baseURL,
		Username: res.User.Username,
		Access:   res.Tokens.Access,
		Refresh:  res.Tokens.Refresh,
	}); err != nil {
		fail(c.err, "save credentials: "+err.Error())
		return 1
	}
	ok(c.out, "registered and logged in as "+res.User.Username)
	return 0
}

func (c *cli) login(args []string) int {
	if len(args) != 1 {
		fail(c.err, "usage: todoctl login <username>")
		return 2
	}
	password, err := c.readPassword()
	if err != nil {
		fail(c.err, err.Error())
		return 1
	}
	pair, err := c.api.login(args[0], password)
	if errors.Is(err, errUnauthorized) {
		fail(c.err, "login: invalid username or password")
		return 1
	}
	if err != nil {
		fail(c.err, "login: "+err.Error())
		return 1
	}
	if err := c.store.save(&credentials{
		Server:   c.api.baseURL,
		Username: args[0],
		Access:   pair.Access,
		Refresh:  pair.Refresh,
	}); err != nil {
		fail(c.err, "save credentials: "+err.Error())
		return 1
	}
	ok(c.out, "logged in as "+args[0])
	return 0
}

// logout always forgets local credentials, even if the server refuses the token
func (c *cli) logout() int {
	creds, err := c.store.load()
	if err != nil {
		fail(c.err, err.Error())
		return 1
	}
	if creds == nil {
		ok(c.out, "not logged in")
		return 0
	}
	serverErr := c.api.logout(creds.Refresh)
	if err := c.store.remove(); err != nil {
		fail(c.err, err.Error())
		return 1
	}
	if serverErr != nil {
		fail(c.err, "logout: "+serverErr.Error())
		return 1
	}
	ok(c.out, "logged out")
	return 0
}

func (c *cli) whoami() int {
	var profile models.UserProfile
	err := c.authed(func(token string) error {
		return c.api.do(fasthttp.MethodGet, "/api/auth/profile", token, nil, &profile)
	})
	if err != nil {
		return c.report("whoami", err)
	}
	panel(c.out, []string{
		titleStyle.Render(profile.Username),
		profile.Email,
		mutedStyle.Render("joined " + profile.DateJoined.Format("2006-01-02")),
	})
	return 0
}

func (c *cli) list(args []string) int {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(c.err)
	done := fs.Bool("done", false, "only completed todos")
	pending := fs.Bool("pending", false, "only pending todos")
	search := fs.String("search", "", "search title and description")
	priority := fs.String("priority", "", "low, medium or high")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *done && *pending {
		fail(c.err, "ls: -done and -pending are exclusive")
		return 2
	}

	query := url.Values{}
	switch {
	case *done:
		query.Set("completed", "true")
	case *pending:
		query.Set("completed", "false")
	}
	if *search != "" {
		query.Set("search", *search)
	}
	if *priority != "" {
		query.Set("priority", *priority)
	}

	todos, err := c.fetchAll(query)
	if err != nil {
		return c.report("ls", err)
	}

	completed := 0
	for _, t := range todos {
		if t.Completed {
			completed++
		}
	}
	lines := []string{
		fmt.Sprintf("%s  %s %d  %s %d  %s %d",
			titleStyle.Render("Todos"),
			successStyle.Render("✔"), completed,
			pendingStyle.Render("•"), len(todos)-completed,
			accentStyle.Render("Total"), len(todos)),
		mutedStyle.Render(progressBar(completed, len(todos), 28)),
		"",
	}
	if len(todos) == 0 {
		lines = append(lines, mutedStyle.Render("nothing here"))
	}
	for i, t := range todos {
		lines = append(lines, todoLine(i+1, t))
	}
	panel(c.out, lines)
	return 0
}

func todoLine(index int, t models.Todo) string {
	box, title := boxUnchecked, t.Title
	if t.Completed {
		box, title = boxChecked, doneStyle.Render(t.Title)
	}
	line := fmt.Sprintf("%3d %s %s", index, box, title)
	if style, found := priorityStyles[string(t.Priority)]; found {
		line += " " + style.Render("["+string(t.Priority)+"]")
	}
	if t.DueDate != nil {
		line += " " + mutedStyle.Render("due "+t.DueDate.Format("2006-01-02"))
	}
	return line
}

func (c *cli) add(args []string) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.err)
	priority := fs.String("p", "", "priority: low, medium or high")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	description := fs.String("d", "", "description")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		fail(c.err, "usage: todoctl add [-p priority] [-due YYYY-MM-DD] <title...>")
		return 2
	}

	body := map[string]interface{}{"title": title}
	if *priority != "" {
		body["priority"] = *priority
	}
	if *description != "" {
		body["description"] = *description
	}
	if *due != "" {
		day, err := time.Parse("2006-01-02", *due)
		if err != nil {
			fail(c.err, "add: due date must look like 2024-05-01")
			return 2
		}
		body["due_date"] = day.UTC().Format(time.RFC3339)
	}

	var created models.Todo
	err := c.authed(func(token string) error {
		return c.api.do(fasthttp.MethodPost, "/api/todos", token, body, &created)
	})
	if err != nil {
		return c.report("add", err)
	}
	ok(c.out, "added "+created.Title)
	return 0
}

func (c *cli) toggle(t models.Todo) int {
	var res models.ToggleResult
	err := c.authed(func(token string) error {
		return c.api.do(fasthttp.MethodPost, "/api/todos/"+t.ID.String()+"/toggle-complete", token, nil, &res)
	})
	if err != nil {
		return c.report("done", err)
	}
	ok(c.out, t.Title+": "+res.Message)
	return 0
}

func (c *cli) remove(t models.Todo) int {
	err := c.authed(func(token string) error {
		return c.api.do(fasthttp.MethodDelete, "/api/todos/"+t.ID.String(), token, nil, nil)
	})
	if err != nil {
		return c.report("rm", err)
	}
	ok(c.out, "removed "+t.Title)
	return 0
}

func (c *cli) stats() int {
	var s models.TodoStats
	err := c.authed(func(token string) error {
		return c.api.do(fasthttp.MethodGet, "/api/todos/stats", token, nil, &s)
	})
	if err != nil {
		return c.report("stats", err)
	}
	lines := []string{
		titleStyle.Render("Stats"),
		mutedStyle.Render(progressBar(s.Completed, s.Total, 28)),
		fmt.Sprintf("total %d  completed %d  pending %d  overdue %d", s.Total, s.Completed, s.Pending, s.Overdue),
	}
	for _, p := range models.Priorities {
		lines = append(lines, fmt.Sprintf("%-6s %d", p, s.ByPriority[p]))
	}
	panel(c.out, lines)
	return 0
}

// withIndex resolves a 1-based index from the oldest-first listing
func (c *cli) withIndex(name string, args []string, fn func(models.Todo) int) int {
	if len(args) != 1 {
		fail(c.err, "usage: todoctl "+name+" <index>")
		return 2
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fail(c.err, name+": not a number: "+args[0])
		return 2
	}
	todos, err := c.fetchAll(url.Values{})
	if err != nil {
		return c.report(name, err)
	}
	if n < 1 || n > len(todos) {
		fail(c.err, fmt.Sprintf("%s: index %d out of range (1..%d)", name, n, len(todos)))
		return 1
	}
	return fn(todos[n-1])
}

// fetchAll walks every page of the listing, oldest first
func (c *cli) fetchAll(query url.Values) ([]models.Todo, error) {
	query.Set("ordering", "created_at")
	query.Set("page_size", strconv.Itoa(listPageSize))

	var all []models.Todo
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		var res models.TodoListResponse
		err := c.authed(func(token string) error {
			return c.api.do(fasthttp.MethodGet, "/api/todos?"+query.Encode(), token, nil, &res)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Results...)
		if res.Next == nil {
			return all, nil
		}
	}
}

// authed calls fn with the stored access token, refreshing it once on 401
func (c *cli) authed(fn func(token string) error) error {
	creds, err := c.store.load()
	if err != nil {
		return err
	}
	if creds == nil {
		return errUnauthorized
	}
	err = fn(creds.Access)
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	access, err := c.api.refresh(creds.Refresh)
	if err != nil {
		return errUnauthorized
	}
	creds.Access = access
	if err := c.store.save(creds); err != nil {
		return err
	}
	return fn(access)
}

func (c *cli) report(name string, err error) int {
	if errors.Is(err, errUnauthorized) {
		fail(c.err, name+": not logged in, run `todoctl login <username>`")
		return 1
	}
	fail(c.err, name+": "+err.Error())
	return 1
}

func (c *cli) readPassword() (string, error) {
	fmt.Fprint(c.err, "Password: ")
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
