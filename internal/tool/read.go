package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/TannerBurns/termai/internal/util"
)

const (
	// readLimit caps read_file output fed back to the model.
	readLimit = 50_000
	// listLimit caps list_files entries before eliding the rest.
	listLimit = 500
	// searchResultCap bounds search_files max_results.
	searchResultCap = 200
	// searchLineLimit truncates long matched lines.
	searchLineLimit = 200
	// searchFileCap skips files larger than this during search.
	searchFileCap = 1 << 20

	probeTimeout   = 15 * time.Second
	probeBodyLimit = 64 * 1024
)

// PlanKey is the memory store key write_plan stores the current plan
// under.
const PlanKey = "plan"

func isBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), 1024)], 0) >= 0
}

type readFileTool struct{}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read a text file and return its content with line numbers. Use start_line and end_line to read a slice of a large file."
}

func (t *readFileTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "File path, relative to the working directory", Required: true},
		{Name: "start_line", Type: "integer", Description: "First line to include (1-based)"},
		{Name: "end_line", Type: "integer", Description: "Last line to include (inclusive)"},
	}}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	display := stringArg(args, "path")
	data, err := os.ReadFile(resolvePath(cwd, display))
	if err != nil {
		return Failure("read %s: %v", display, err)
	}
	if isBinary(data) {
		return Failure("%s is not a text file", display)
	}

	lines := splitLines(string(data))
	if len(lines) == 0 {
		return Result{Success: true, Output: fmt.Sprintf("%s is empty", display)}
	}

	start := max(intArg(args, "start_line", 1), 1)
	end := intArg(args, "end_line", len(lines))
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return Failure("start_line %d is past the end of %s (%d lines)", start, display, len(lines))
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%4d | %s\n", i, lines[i-1])
	}
	return Result{Success: true, Output: util.TruncateMiddle(b.String(), readLimit)}
}

type listFilesTool struct{}

func (t *listFilesTool) Name() string { return "list_files" }

func (t *listFilesTool) Description() string {
	return "List files under a directory matching a glob pattern. Supports ** for recursive matching; directories end with a slash."
}

func (t *listFilesTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "pattern", Type: "string", Description: "Glob pattern such as **/*.go (default **/*)"},
		{Name: "dir", Type: "string", Description: "Directory to list, relative to the working directory (default .)"},
	}}
}

func (t *listFilesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	pattern := stringArg(args, "pattern")
	if pattern == "" {
		pattern = "**/*"
	}
	dir := stringArg(args, "dir")
	if dir == "" {
		dir = "."
	}

	fsys := os.DirFS(resolvePath(cwd, dir))
	var entries []string
	total := 0
	err := doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
		if p == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		if p == ".git" || strings.HasPrefix(p, ".git/") {
			return nil
		}
		total++
		if len(entries) < listLimit {
			name := p
			if d.IsDir() {
				name += "/"
			}
			entries = append(entries, name)
		}
		return nil
	})
	if err != nil {
		return Failure("list %s: %v", dir, err)
	}
	if len(entries) == 0 {
		return Result{Success: true, Output: fmt.Sprintf("no files match %s in %s", pattern, dir)}
	}

	slices.Sort(entries)
	out := strings.Join(entries, "\n")
	if total > len(entries) {
		out += fmt.Sprintf("\n... and %d more", total-len(entries))
	}
	return Result{Success: true, Output: out}
}

type searchFilesTool struct{}

func (t *searchFilesTool) Name() string { return "search_files" }

func (t *searchFilesTool) Description() string {
	return "Search file contents under the working directory with a regular expression. Results are path:line: text."
}

func (t *searchFilesTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "pattern", Type: "string", Description: "Regular expression to search for", Required: true},
		{Name: "glob", Type: "string", Description: "Only search files matching this glob (default **/*)"},
		{Name: "max_results", Type: "integer", Description: "Stop after this many matches (default 50)"},
	}}
}

func (t *searchFilesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	re, err := regexp.Compile(stringArg(args, "pattern"))
	if err != nil {
		return Failure("invalid search pattern: %v", err)
	}
	glob := stringArg(args, "glob")
	if glob == "" {
		glob = "**/*"
	}
	if !doublestar.ValidatePattern(glob) {
		return Failure("invalid glob %q", glob)
	}
	limit := intArg(args, "max_results", 50)
	limit = min(max(limit, 1), searchResultCap)

	root := resolvePath(cwd, ".")
	var hits []string
	err = fs.WalkDir(os.DirFS(root), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(glob, p); !ok {
			return nil
		}
		data, err := os.ReadFile(resolvePath(root, p))
		if err != nil || len(data) > searchFileCap || isBinary(data) {
			return nil
		}
		for i, line := range splitLines(string(data)) {
			if !re.MatchString(line) {
				continue
			}
			text := util.TruncateString(strings.TrimSpace(line), searchLineLimit)
			hits = append(hits, fmt.Sprintf("%s:%d: %s", p, i+1, text))
			if len(hits) >= limit {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return Failure("search aborted: %v", err)
	}
	if len(hits) == 0 {
		return Result{Success: true, Output: fmt.Sprintf("no matches for %s", re.String())}
	}
	return Result{Success: true, Output: strings.Join(hits, "\n")}
}

// probeClient is shared across probes so connections are reused.
var probeClient = &http.Client{Timeout: probeTimeout}

type httpProbeTool struct {
	client *http.Client
}

func (t *httpProbeTool) Name() string { return "http_probe" }

func (t *httpProbeTool) Description() string {
	return "Issue a GET or HEAD request to an http(s) URL and return the status, key headers, and a bounded slice of the body. Useful for checking endpoints and fetching small documents."
}

func (t *httpProbeTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "url", Type: "string", Description: "Absolute http or https URL", Required: true},
		{Name: "method", Type: "string", Description: "Request method (default GET)", Enum: []string{"GET", "HEAD"}},
		{Name: "max_bytes", Type: "integer", Description: "Body bytes to return (default 16384, max 65536)"},
	}}
}

func (t *httpProbeTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	rawURL := stringArg(args, "url")
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Failure("http_probe needs an absolute http or https URL, got %q", rawURL)
	}
	method := stringArg(args, "method")
	if method == "" {
		method = http.MethodGet
	}
	maxBytes := min(max(intArg(args, "max_bytes", 16_384), 1), probeBodyLimit)

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return Failure("probe %s: %v", rawURL, err)
	}
	client := t.client
	if client == nil {
		client = probeClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Failure("probe %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)+1))
	if err != nil {
		return Failure("probe %s: read body: %v", rawURL, err)
	}
	truncated := len(body) > maxBytes
	if truncated {
		body = body[:maxBytes]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", resp.Proto, resp.Status)
	for _, h := range []string{"Content-Type", "Content-Length", "Location", "Server"} {
		if v := resp.Header.Get(h); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", h, v)
		}
	}
	if len(body) > 0 {
		b.WriteString("\n")
		if isBinary(body) {
			fmt.Fprintf(&b, "(%d bytes of binary data)", len(body))
		} else {
			b.Write(body)
		}
	}
	if truncated {
		fmt.Fprintf(&b, "\n... body truncated at %d bytes", maxBytes)
	}
	return Result{Success: true, Output: b.String()}
}

type searchOutputTool struct {
	buffer *OutputBuffer
}

func (t *searchOutputTool) Name() string { return "search_output" }

func (t *searchOutputTool) Description() string {
	return "Search the output of earlier tool calls and commands from this run. Matching is case-insensitive and newest results come first."
}

func (t *searchOutputTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "query", Type: "string", Description: "Text to look for", Required: true},
		{Name: "max_results", Type: "integer", Description: "Maximum matching lines to return (default 20)"},
	}}
}

func (t *searchOutputTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	query := stringArg(args, "query")
	hits := t.buffer.Search(query, intArg(args, "max_results", 20))
	if len(hits) == 0 {
		return Result{Success: true, Output: fmt.Sprintf("no recorded output matches %q", query)}
	}
	return Result{Success: true, Output: strings.Join(hits, "\n")}
}

type saveMemoryTool struct {
	store *MemoryStore
}

func (t *saveMemoryTool) Name() string { return "save_memory" }

func (t *saveMemoryTool) Description() string {
	return "Store a fact under a key for later recall in this run. Saving to an existing key overwrites it."
}

func (t *saveMemoryTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "key", Type: "string", Description: "Short identifier for the fact", Required: true},
		{Name: "value", Type: "string", Description: "The fact to remember", Required: true},
	}}
}

func (t *saveMemoryTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	key := stringArg(args, "key")
	if err := t.store.Set(key, stringArg(args, "value")); err != nil {
		return Failure("save memory %q: %v", key, err)
	}
	return Result{Success: true, Output: fmt.Sprintf("saved memory %q", key)}
}

type recallMemoryTool struct {
	store *MemoryStore
}

func (t *recallMemoryTool) Name() string { return "recall_memory" }

func (t *recallMemoryTool) Description() string {
	return "Recall a saved fact by key, or list everything saved in this run when no key is given."
}

func (t *recallMemoryTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "key", Type: "string", Description: "Key to recall; omit to list all saved memories"},
	}}
}

func (t *recallMemoryTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	if key := stringArg(args, "key"); key != "" {
		v, ok := t.store.Get(key)
		if !ok {
			return Failure("no memory stored under %q", key)
		}
		return Result{Success: true, Output: v}
	}

	keys := t.store.Keys()
	if len(keys) == 0 {
		return Result{Success: true, Output: "no memories stored"}
	}
	var b strings.Builder
	for _, k := range keys {
		v, _ := t.store.Get(k)
		fmt.Fprintf(&b, "%s: %s\n", k, util.TruncateString(v, 200))
	}
	return Result{Success: true, Output: strings.TrimSuffix(b.String(), "\n")}
}

type writePlanTool struct {
	store *MemoryStore
}

func (t *writePlanTool) Name() string { return "write_plan" }

func (t *writePlanTool) Description() string {
	return "Record an ordered step plan for the current goal. The plan replaces any previously written one."
}

func (t *writePlanTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "title", Type: "string", Description: "One-line summary of the plan"},
		{Name: "steps", Type: "array", Description: "Ordered step descriptions", Required: true},
	}}
}

func (t *writePlanTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	steps := stringSliceArg(args, "steps")
	if len(steps) == 0 {
		return Failure("a plan needs at least one step")
	}

	var b strings.Builder
	if title := stringArg(args, "title"); title != "" {
		fmt.Fprintf(&b, "Plan: %s\n", title)
	}
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(step))
	}
	plan := b.String()
	if err := t.store.Set(PlanKey, plan); err != nil {
		return Failure("store plan: %v", err)
	}
	return Result{Success: true, Output: plan}
}

// splitLines splits content into lines, dropping the empty trailer a
// final newline produces.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if last := len(lines) - 1; lines[last] == "" {
		return lines[:last]
	}
	return lines
}
