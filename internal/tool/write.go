package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/filelock"
	"github.com/TannerBurns/termai/internal/logging"
)

// mutator applies file changes on behalf of the file tools. Every
// change goes through the lock coordinator first; the content is read
// and rewritten only after the lock is held, so previews never act on
// stale state. Locks stay with the session until the run releases them.
type mutator struct {
	locks     *filelock.Coordinator
	sessionID string
	bus       *event.Bus
	logger    *logging.Logger
}

// run acquires the lock described by op and, when granted, invokes
// mutate. A queued outcome reports the holder and position without
// touching the file. A merged outcome means the coordinator already
// applied the insert.
func (m *mutator) run(op filelock.Operation, mutate func() Result) Result {
	outcome := m.locks.Acquire(op, m.sessionID)
	switch outcome.Kind {
	case filelock.OutcomeQueued:
		m.logger.Debug("file change queued",
			"path", op.Path,
			"holder", outcome.Holder,
			"position", outcome.Position,
		)
		return Result{
			Output: fmt.Sprintf(
				"File is locked by session %s. Queue position: %d. The change was not applied; retry once the lock frees.",
				outcome.Holder, outcome.Position),
			Error:  "file locked",
			Locked: true,
		}
	case filelock.OutcomeMerged:
		mr := outcome.Merge
		m.logger.Debug("file change merged", "path", op.Path, "at", mr.InsertedAt)
		change := &FileChange{
			FilePath:  op.Path,
			Op:        op.Type,
			LineRange: &LineRange{Start: mr.InsertedAt, End: mr.InsertedAt + mr.LineCount - 1},
		}
		m.publish(change)
		return Result{Success: true, Output: mr.Summary(), FileChange: change}
	}

	res := mutate()
	if res.Success && res.FileChange != nil {
		m.publish(res.FileChange)
	}
	return res
}

func (m *mutator) publish(change *FileChange) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(event.NewFileChangedEvent(m.sessionID, change.FilePath, string(change.Op)))
}

// applyPrepared previews the mutation with the lock held and writes it
// out.
func applyPrepared(t FileMutator, args map[string]any, cwd string) Result {
	change, err := t.PrepareChange(args, cwd)
	if err != nil {
		return Failure("%v", err)
	}
	if err := writeChange(change); err != nil {
		return Failure("%v", err)
	}
	return Result{Success: true, Output: describeChange(change), FileChange: change}
}

// writeChange puts the prepared content on disk.
func writeChange(change *FileChange) error {
	switch change.Op {
	case filelock.OpDeleteFile:
		return os.Remove(change.FilePath)
	case filelock.OpCreate:
		if err := os.MkdirAll(filepath.Dir(change.FilePath), 0o755); err != nil {
			return err
		}
		return os.WriteFile(change.FilePath, []byte(change.AfterContent), 0o644)
	default:
		return os.WriteFile(change.FilePath, []byte(change.AfterContent), 0o644)
	}
}

func describeChange(c *FileChange) string {
	switch c.Op {
	case filelock.OpCreate:
		return fmt.Sprintf("created %s (%d lines)", c.FilePath, len(splitLines(c.AfterContent)))
	case filelock.OpOverwrite:
		return fmt.Sprintf("wrote %s (%d lines)", c.FilePath, len(splitLines(c.AfterContent)))
	case filelock.OpInsert:
		n := c.LineRange.End - c.LineRange.Start + 1
		return fmt.Sprintf("inserted %d line(s) into %s at line %d", n, c.FilePath, c.LineRange.Start)
	case filelock.OpEdit:
		return fmt.Sprintf("replaced lines %d-%d of %s", c.LineRange.Start, c.LineRange.End, c.FilePath)
	case filelock.OpDelete:
		return fmt.Sprintf("deleted lines %d-%d of %s", c.LineRange.Start, c.LineRange.End, c.FilePath)
	case filelock.OpDeleteFile:
		return fmt.Sprintf("deleted %s", c.FilePath)
	default:
		return fmt.Sprintf("changed %s", c.FilePath)
	}
}

// ensureNewline terminates non-empty content with a newline so created
// files compose with the line-based tools.
func ensureNewline(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

// readExisting loads a file the line tools require to exist already.
func readExisting(path, display string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s does not exist; use create_file first", display)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// insertInto inserts lines into content at the 1-based line, appending
// when line is zero or past the end. It returns the new content and the
// 1-based line the insertion landed on.
func insertInto(content string, line int, lines []string) (string, int) {
	raw := strings.Split(content, "\n")
	n := len(raw)
	if n > 0 && raw[n-1] == "" {
		n--
	}
	idx := n
	if line >= 1 && line-1 < n {
		idx = line - 1
	}
	updated := slices.Insert(raw, idx, lines...)
	return strings.Join(updated, "\n"), idx + 1
}

type createFileTool struct {
	mut *mutator
}

func (t *createFileTool) Name() string { return "create_file" }

func (t *createFileTool) Description() string {
	return "Create a new file with the given content, creating parent directories as needed. Fails if the file already exists."
}

func (t *createFileTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path for the new file", Required: true},
		{Name: "content", Type: "string", Description: "Full file content", Required: true},
	}}
}

func (t *createFileTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	display := stringArg(args, "path")
	path := resolvePath(cwd, display)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists; use write_file to overwrite", display)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &FileChange{
		FilePath:     path,
		Op:           filelock.OpCreate,
		AfterContent: ensureNewline(stringArg(args, "content")),
	}, nil
}

func (t *createFileTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path: resolvePath(cwd, stringArg(args, "path")),
		Type: filelock.OpCreate,
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}

type writeFileTool struct {
	mut *mutator
}

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Description() string {
	return "Write a file, replacing its entire content. Creates the file if it does not exist."
}

func (t *writeFileTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path of the file to write", Required: true},
		{Name: "content", Type: "string", Description: "Full replacement content", Required: true},
	}}
}

func (t *writeFileTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	path := resolvePath(cwd, stringArg(args, "path"))
	change := &FileChange{
		FilePath:     path,
		Op:           filelock.OpCreate,
		AfterContent: ensureNewline(stringArg(args, "content")),
	}
	data, err := os.ReadFile(path)
	if err == nil {
		change.Op = filelock.OpOverwrite
		change.BeforeContent = string(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return change, nil
}

func (t *writeFileTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path: resolvePath(cwd, stringArg(args, "path")),
		Type: filelock.OpOverwrite,
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}

type insertLinesTool struct {
	mut *mutator
}

func (t *insertLinesTool) Name() string { return "insert_lines" }

func (t *insertLinesTool) Description() string {
	return "Insert lines into an existing file at a 1-based line number. Omit line or pass 0 to append at the end."
}

func (t *insertLinesTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path of the file to modify", Required: true},
		{Name: "content", Type: "string", Description: "Lines to insert", Required: true},
		{Name: "line", Type: "integer", Description: "Line to insert before (1-based); 0 or omitted appends"},
	}}
}

func (t *insertLinesTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	display := stringArg(args, "path")
	lines := splitLines(stringArg(args, "content"))
	if len(lines) == 0 {
		return nil, errors.New("no content to insert")
	}
	path := resolvePath(cwd, display)
	before, err := readExisting(path, display)
	if err != nil {
		return nil, err
	}

	after, at := insertInto(before, intArg(args, "line", 0), lines)
	return &FileChange{
		FilePath:      path,
		Op:            filelock.OpInsert,
		BeforeContent: before,
		AfterContent:  after,
		LineRange:     &LineRange{Start: at, End: at + len(lines) - 1},
	}, nil
}

func (t *insertLinesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path:      resolvePath(cwd, stringArg(args, "path")),
		Type:      filelock.OpInsert,
		StartLine: intArg(args, "line", 0),
		Lines:     splitLines(stringArg(args, "content")),
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}

type replaceLinesTool struct {
	mut *mutator
}

func (t *replaceLinesTool) Name() string { return "replace_lines" }

func (t *replaceLinesTool) Description() string {
	return "Replace an inclusive 1-based line range of an existing file with new content. Empty content removes the range."
}

func (t *replaceLinesTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path of the file to modify", Required: true},
		{Name: "start_line", Type: "integer", Description: "First line to replace (1-based)", Required: true},
		{Name: "end_line", Type: "integer", Description: "Last line to replace (inclusive)", Required: true},
		{Name: "content", Type: "string", Description: "Replacement lines", Required: true},
	}}
}

func (t *replaceLinesTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	return prepareRangeChange(args, cwd, filelock.OpEdit, splitLines(stringArg(args, "content")))
}

func (t *replaceLinesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path:      resolvePath(cwd, stringArg(args, "path")),
		Type:      filelock.OpEdit,
		StartLine: intArg(args, "start_line", 0),
		EndLine:   intArg(args, "end_line", 0),
		Lines:     splitLines(stringArg(args, "content")),
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}

type deleteLinesTool struct {
	mut *mutator
}

func (t *deleteLinesTool) Name() string { return "delete_lines" }

func (t *deleteLinesTool) Description() string {
	return "Delete an inclusive 1-based line range from an existing file."
}

func (t *deleteLinesTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path of the file to modify", Required: true},
		{Name: "start_line", Type: "integer", Description: "First line to delete (1-based)", Required: true},
		{Name: "end_line", Type: "integer", Description: "Last line to delete (inclusive)", Required: true},
	}}
}

func (t *deleteLinesTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	return prepareRangeChange(args, cwd, filelock.OpDelete, nil)
}

func (t *deleteLinesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path:      resolvePath(cwd, stringArg(args, "path")),
		Type:      filelock.OpDelete,
		StartLine: intArg(args, "start_line", 0),
		EndLine:   intArg(args, "end_line", 0),
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}

// prepareRangeChange builds the FileChange for replace_lines and
// delete_lines. end_line is clamped to the file length so a range that
// runs past the end means "through the last line".
func prepareRangeChange(args map[string]any, cwd string, op filelock.OpType, newLines []string) (*FileChange, error) {
	display := stringArg(args, "path")
	start := intArg(args, "start_line", 0)
	end := intArg(args, "end_line", 0)
	if start < 1 {
		return nil, fmt.Errorf("start_line must be at least 1, got %d", start)
	}
	if end < start {
		return nil, fmt.Errorf("end_line %d is before start_line %d", end, start)
	}

	path := resolvePath(cwd, display)
	before, err := readExisting(path, display)
	if err != nil {
		return nil, err
	}
	n := len(splitLines(before))
	if start > n {
		return nil, fmt.Errorf("start_line %d is past the end of %s (%d lines)", start, display, n)
	}
	if end > n {
		end = n
	}

	raw := strings.Split(before, "\n")
	updated := slices.Concat(raw[:start-1], newLines, raw[end:])
	return &FileChange{
		FilePath:      path,
		Op:            op,
		BeforeContent: before,
		AfterContent:  strings.Join(updated, "\n"),
		LineRange:     &LineRange{Start: start, End: end},
	}, nil
}

type deleteFileTool struct {
	mut *mutator
}

func (t *deleteFileTool) Name() string { return "delete_file" }

func (t *deleteFileTool) Description() string {
	return "Delete a file from the workspace."
}

func (t *deleteFileTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "path", Type: "string", Description: "Path of the file to delete", Required: true},
	}}
}

func (t *deleteFileTool) PrepareChange(args map[string]any, cwd string) (*FileChange, error) {
	display := stringArg(args, "path")
	path := resolvePath(cwd, display)
	before, err := readExisting(path, display)
	if err != nil {
		return nil, err
	}
	return &FileChange{
		FilePath:      path,
		Op:            filelock.OpDeleteFile,
		BeforeContent: before,
	}, nil
}

func (t *deleteFileTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	op := filelock.Operation{
		Path: resolvePath(cwd, stringArg(args, "path")),
		Type: filelock.OpDeleteFile,
	}
	return t.mut.run(op, func() Result { return applyPrepared(t, args, cwd) })
}
