package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/doctable/store"
)

var errUsage = errors.New("usage")

const usage = `usage: doctable [flags] <command> [args]

commands:
  list <table> [-expand rel]...       print all records
  get <table> <id> [-expand rel]...   print one record
  save <table> [json|-]               create a record, assigning its id
  update <table> [json|-]             replace the record with the same id
  remove <table> <id> [-cascade] [-protect]
  clear <table> -yes                  empty a table
  import <table> [file|-] -yes [-scratch]
  export <table>                      print the stored table

relations: one:<table>:<key>[:<column>] or many:<table>[:<column>]
`

// cli runs one command against a store.
type cli struct {
	store *store.Store
	in    io.Reader
	out   io.Writer

	// open rebuilds a store under another key prefix, for import -scratch.
	open func(ctx context.Context, prefix string) (*store.Store, error)
}

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"list":   cmdList,
	"get":    cmdGet,
	"save":   cmdSave,
	"update": cmdUpdate,
	"remove": cmdRemove,
	"clear":  cmdClear,
	"import": cmdImport,
	"export": cmdExport,
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd(ctx, c, args[1:])
}

// relationList collects repeated -expand flags.
type relationList []store.Relation

func (l *relationList) String() string {
	parts := make([]string, 0, len(*l))
	for _, r := range *l {
		parts = append(parts, r.Target())
	}
	return strings.Join(parts, ",")
}

func (l *relationList) Set(s string) error {
	r, err := store.ParseRelation(s)
	if err != nil {
		return err
	}
	*l = append(*l, r)
	return nil
}

// parse parses flags that may follow positional arguments and checks the
// positional count is within [lo, hi].
func parse(fs *flag.FlagSet, args []string, lo, hi int) ([]string, error) {
	fs.SetOutput(io.Discard)
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) < lo || len(positional) > hi {
		return nil, fmt.Errorf("%w: %s takes %d to %d arguments", errUsage, fs.Name(), lo, hi)
	}
	return positional, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", store.ErrInvalidID, s)
	}
	return id, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// input returns the JSON argument, or stdin for "-" or no argument.
func (c *cli) input(args []string, at int) ([]byte, error) {
	if len(args) > at && args[at] != "-" {
		return []byte(args[at]), nil
	}
	return io.ReadAll(c.in)
}

func decodeRecord(data []byte) (store.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec store.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}
	if rec == nil {
		return nil, store.ErrInvalidRecord
	}
	return rec, nil
}

func cmdList(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var rels relationList
	fs.Var(&rels, "expand", "relation to attach (repeatable)")
	pos, err := parse(fs, args, 1, 1)
	if err != nil {
		return err
	}
	records, err := c.store.List(ctx, pos[0], rels...)
	if err != nil {
		return err
	}
	return c.print(records)
}

func cmdGet(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	var rels relationList
	fs.Var(&rels, "expand", "relation to attach (repeatable)")
	pos, err := parse(fs, args, 2, 2)
	if err != nil {
		return err
	}
	id, err := parseID(pos[1])
	if err != nil {
		return err
	}
	rec, err := c.store.Get(ctx, pos[0], id, rels...)
	if err != nil {
		return err
	}
	return c.print(rec)
}

func cmdSave(ctx context.Context, c *cli, args []string) error {
	return save(ctx, c, "save", args, false)
}

func cmdUpdate(ctx context.Context, c *cli, args []string) error {
	return save(ctx, c, "update", args, true)
}

func save(ctx context.Context, c *cli, name string, args []string, update bool) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	pos, err := parse(fs, args, 1, 2)
	if err != nil {
		return err
	}
	data, err := c.input(pos, 1)
	if err != nil {
		return err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	saved, err := c.store.Save(ctx, pos[0], rec, update)
	if err != nil {
		return err
	}
	return c.print(saved)
}

func cmdRemove(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	cascade := fs.Bool("cascade", false, "also remove registered children")
	protect := fs.Bool("protect", false, "refuse if registered children exist")
	pos, err := parse(fs, args, 2, 2)
	if err != nil {
		return err
	}
	id, err := parseID(pos[1])
	if err != nil {
		return err
	}
	return c.store.RemoveWithOptions(ctx, pos[0], id, store.RemoveOptions{
		Cascade:       *cascade,
		OrphanProtect: *protect,
	})
}

func cmdClear(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm the table is emptied")
	pos, err := parse(fs, args, 1, 1)
	if err != nil {
		return err
	}
	return c.store.RemoveAll(ctx, pos[0], *yes)
}

func cmdImport(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm the table is overwritten")
	scratch := fs.Bool("scratch", false, "import under a fresh random key prefix")
	pos, err := parse(fs, args, 1, 2)
	if err != nil {
		return err
	}
	var data []byte
	if len(pos) > 1 && pos[1] != "-" {
		data, err = os.ReadFile(pos[1]) //nolint:gosec // User-specified import path
	} else {
		data, err = io.ReadAll(c.in)
	}
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to parse import: %w", err)
	}

	s := c.store
	if *scratch {
		if c.open == nil {
			return errors.New("scratch imports are not supported here")
		}
		prefix := uuid.NewString() + ":"
		if s, err = c.open(ctx, prefix); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.out, "%s\n", prefix); err != nil {
			return err
		}
	}
	return s.SaveRawObject(ctx, pos[0], raw, *yes)
}

func cmdExport(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	pos, err := parse(fs, args, 1, 1)
	if err != nil {
		return err
	}
	raw, err := c.store.Export(ctx, pos[0])
	if err != nil {
		return err
	}
	return c.print(raw)
}
