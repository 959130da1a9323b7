// Package tool defines the capabilities the model can invoke during a
// run and the registry that dispatches them.
//
// # Capability Modes
//
// Every session runs in one of four modes that scope its tool set:
//
//   - scout: read-only exploration (read_file, list_files, search_files,
//     http_probe, search_output, save_memory, recall_memory)
//   - navigator: scout plus plan authoring (write_plan)
//   - copilot: scout plus file mutation (create_file, write_file,
//     insert_lines, replace_lines, delete_lines, delete_file)
//   - pilot: copilot plus shell and process control (run_command,
//     start_process, stop_process, list_processes)
//
// [Registry.IsToolAvailable] is the single availability check; prompt
// assembly and dispatch both consult it, so the model is never offered
// a tool the registry would refuse.
//
// # Dispatch
//
// Each tool declares a parameter [Schema]. At registration the schema
// is compiled to JSON Schema and every [Registry.Execute] call is
// validated against it before the tool runs, so malformed arguments
// come back as a failure [Result] the model can correct rather than a
// crash deeper in.
//
// File-mutating tools implement [FileMutator]: PrepareChange previews
// the mutation without side effects, and execution routes the change
// through the filelock coordinator. A locked file yields a Result with
// Locked set and the queue position in the output; the change is not
// applied.
//
// # Session State
//
// The registry owns two per-session stores: an [OutputBuffer] retaining
// recent tool output for search_output, and a [MemoryStore] backing
// save_memory, recall_memory, and write_plan. Both are cleared by
// [Registry.ClearSession] at the start of every run.
//
// # Basic Usage
//
//	reg, err := tool.NewRegistry(tool.Deps{
//		Config:    cfg,
//		SessionID: "session-1",
//		Workdir:   workdir,
//		Locks:     coordinator,
//		Shell:     executor,
//		Approvals: broker,
//		Bus:       bus,
//		Logger:    logger,
//	})
//
//	res := reg.Execute(ctx, tool.ModeCopilot, "read_file",
//		map[string]any{"path": "main.go"})
package tool
