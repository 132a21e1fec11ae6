package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/lenote/internal/config"
	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/logger"
	"github.com/hpungsan/lenote/internal/mcp"
	"github.com/hpungsan/lenote/internal/media"
	"github.com/hpungsan/lenote/internal/note"
	"github.com/hpungsan/lenote/internal/ops"
	"github.com/hpungsan/lenote/internal/web"
)

// DefaultDataDir is the data directory name under the user's home.
const DefaultDataDir = ".lenote"

// env holds the dependencies commands share. It is filled lazily so that
// help and version output never touch the data directory.
type env struct {
	dataDir string
	cfg     *config.Config
	logger  *slog.Logger
	store   *db.Store
	images  *media.Extractor
}

// open loads config, builds the logger, and opens the store.
// Command-line flags override values from config.json.
func (e *env) open(c *cli.Context) error {
	if e.store != nil {
		return nil
	}

	dataDir := c.String("data")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, DefaultDataDir)
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	log := logger.New(logger.Config{
		Writer: c.App.ErrWriter,
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})

	store, err := db.Open(dataDir, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	e.dataDir = dataDir
	e.cfg = cfg
	e.logger = log
	e.store = store
	e.images = media.NewExtractor(dataDir, cfg.MaxUploadBytes, log)
	return nil
}

// close releases the store, if one was opened.
func (e *env) close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	return err
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	e := &env{}

	app := &cli.App{
		Name:    "lenote",
		Usage:   "Personal note and tag journal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, EnvVars: []string{"LENOTE_DATA"}, Usage: "Data directory (default: ~/.lenote)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format: text|json"},
		},
		Commands: []*cli.Command{
			serveCmd(e),
			mcpCmd(e),
			addCmd(e),
			notesCmd(e),
			tagsCmd(e),
			tagCmd(e),
			statusCmd(e),
			historyCmd(e),
			exportCmd(e),
			versionCmd(e),
		},
		After: func(_ *cli.Context) error {
			return e.close()
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server and web timeline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default: 8080)"},
			&cli.BoolFlag{Name: "slow", Usage: "Delay every request (development aid)"},
		},
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}
			if c.IsSet("bind") {
				e.cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				e.cfg.Port = c.Int("port")
			}
			if c.Bool("slow") {
				e.cfg.Slow = true
			}

			srv, err := web.NewServer(web.Options{
				Store:   e.store,
				Images:  e.images,
				Config:  e.cfg,
				DataDir: e.dataDir,
				Version: Version,
				Logger:  e.logger,
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:              net.JoinHostPort(e.cfg.Bind, strconv.Itoa(e.cfg.Port)),
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := web.Run(ctx, httpServer, e.logger); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}
			if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
				e.logger.Warn("unknown tools in disabled_tools", "tools", unknown)
			}
			return mcp.Run(e.store, e.images, e.cfg, e.dataDir, Version)
		},
	}
}

// addCmd creates the add command.
func addCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Save a note (text from args or stdin)",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Save an image file as an image note"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SaveNoteInput{Type: note.TypeText}

			switch {
			case c.String("image") != "":
				text, err := imageDataURL(c.String("image"))
				if err != nil {
					return outputError(err)
				}
				input.Text = text
				input.Type = note.TypeImage
			case c.NArg() > 0:
				input.Text = strings.Join(c.Args().Slice(), " ")
			case stdinHasData(c.App.Reader):
				text, err := readStdin(c.App.Reader)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Text = text
			default:
				return outputError(errors.NewInvalidRequest("note text must be given as arguments or piped via stdin"))
			}

			if err := e.open(c); err != nil {
				return err
			}
			saved, err := ops.SaveNote(c.Context, e.store, e.images, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, saved)
		},
	}
}

// notesCmd creates the notes command.
func notesCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "List the newest notes in an id range",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "min", Usage: "Lowest note id (default: 1)"},
			&cli.Int64Flag{Name: "max", Usage: "Highest note id (default: no limit)"},
		},
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}

			var input ops.GetNotesInput
			if c.IsSet("min") {
				v := c.Int64("min")
				input.MinID = &v
			}
			if c.IsSet("max") {
				v := c.Int64("max")
				input.MaxID = &v
			}

			notes, err := ops.GetNotes(c.Context, e.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, notes)
		},
	}
}

// tagsCmd creates the tags command.
func tagsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List tags with their note pairings",
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}
			tags, err := ops.GetTags(c.Context, e.store)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, tags)
		},
	}
}

// tagCmd creates the tag command.
func tagCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "List the note pairings of one tag",
		ArgsUsage: "<tag>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: lenote tag <tag>"))
			}
			if err := e.open(c); err != nil {
				return err
			}
			maps, err := ops.GetTagMap(c.Context, e.store, ops.GetTagMapInput{Tag: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, maps)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Set the status of a (tag, note) pairing",
		ArgsUsage: "<tag> <note_id> <active|archived>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return outputError(errors.NewInvalidRequest("usage: lenote status <tag> <note_id> <active|archived>"))
			}
			args := c.Args()

			noteID, err := strconv.ParseInt(args.Get(1), 10, 64)
			if err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid note id %q", args.Get(1))))
			}
			status, err := note.ParseStatusName(args.Get(2))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			if err := e.open(c); err != nil {
				return err
			}
			updated, err := ops.UpdateTagMapStatus(c.Context, e.store, ops.UpdateTagMapStatusInput{
				Tag:    args.Get(0),
				NoteID: noteID,
				Status: status,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, updated)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the status transitions of one tag",
		ArgsUsage: "<tag>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: lenote history <tag>"))
			}
			if err := e.open(c); err != nil {
				return err
			}
			history, err := ops.TagHistory(c.Context, e.store, ops.TagHistoryInput{Tag: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, history)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all notes to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output path (default: <data>/exports/lenote-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}
			output, err := ops.Export(c.Context, e.store, ops.ExportInput{
				Path:    c.String("path"),
				DataDir: e.dataDir,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// versionCmd creates the version command.
func versionCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the binary and schema versions",
		Action: func(c *cli.Context) error {
			if err := e.open(c); err != nil {
				return err
			}
			schema, err := e.store.SchemaVersion(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{
				"version":        Version,
				"schema_version": schema,
				"data_dir":       e.dataDir,
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if e, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", e.Code, e.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if r has piped data (not a terminal).
func stdinHasData(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from r.
func readStdin(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// imageDataURL reads an image file into a base64 data URL keyed by its
// extension.
func imageDataURL(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "", errors.NewInvalidRequest("image file must have an extension")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("failed to read image: %v", err))
	}
	return "data:image/" + ext + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
