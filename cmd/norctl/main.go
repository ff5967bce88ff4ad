// norctl is an interactive CLI for creating, inspecting, and poking at
// lpcnor media images.
//
// Usage:
//
//	norctl new [opts] <image-file>    Create a new image file
//	norctl <image-file> [opts]        Open an existing image file
//	norctl --mem [opts]               Scratch in-memory image, not persisted
//
// Options:
//
//	-n, --npeb          Number of physical erase blocks (default: 4)
//	-s, --peb-size      PEB size in bytes (default: 4096)
//	-c, --config        Media topology config file (JSON with comments)
//	    --vacant        Write explicit vacant-slot placeholders on switch
//
// Commands (in REPL):
//
//	write <text>              Write a record, print its pointer
//	writehex <hex>            Write a record from hex-encoded bytes
//	get <leb> <slot>          Print a record's bytes (hex)
//	verify <leb> <slot>       Check a record's CRC
//	size <leb> <slot>         Print a record's byte length
//	del <leb> <slot>          Delete a record
//	scan [limit]              List every live record
//	info                      Show mounted media info
//	help                      Show this help
//	exit / quit / q           Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/lpcnor/pkg/flash"
	"github.com/calvinalkan/lpcnor/pkg/fs"
	"github.com/calvinalkan/lpcnor/pkg/lpcnor"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := flag.NewFlagSet("norctl", flag.ContinueOnError)

	npeb := flagSet.IntP("npeb", "n", 0, "number of physical erase blocks")
	pebSize := flagSet.IntP("peb-size", "s", 0, "PEB size in bytes")
	configPath := flagSet.StringP("config", "c", "", "media topology config file (JSON with comments)")
	vacant := flagSet.Bool("vacant", false, "write explicit vacant-slot placeholders on switch")
	mem := flagSet.Bool("mem", false, "use a scratch in-memory image instead of a file")

	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  norctl new [opts] <image-file>    Create a new image file")
		fmt.Fprintln(os.Stderr, "  norctl <image-file> [opts]        Open an existing image file")
		fmt.Fprintln(os.Stderr, "  norctl --mem [opts]               Scratch in-memory image, not persisted")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := LoadMediaConfig(*configPath)
	if err != nil {
		return err
	}
	if *npeb != 0 {
		cfg.NPEB = *npeb
	}
	if *pebSize != 0 {
		cfg.PEBSize = *pebSize
	}
	if *vacant {
		cfg.WriteVacantPlaceholders = true
	}

	rest := flagSet.Args()

	switch {
	case *mem:
		return openAndRun(flash.NewMemory(cfg.NPEB, cfg.PEBSize), lpcnor.Erase, cfg)

	case len(rest) >= 1 && rest[0] == "new":
		if len(rest) < 2 {
			flagSet.Usage()
			return errors.New("missing image file path")
		}
		path := rest[1]
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("norctl: image file already exists: %s", path)
		}
		dev, err := flash.OpenFileBacked(fs.NewReal(), path, cfg.NPEB, cfg.PEBSize)
		if err != nil {
			return err
		}
		defer dev.Close()
		return openAndRun(dev, lpcnor.Erase, cfg)

	case len(rest) >= 1:
		path := rest[0]
		dev, err := flash.OpenFileBacked(fs.NewReal(), path, cfg.NPEB, cfg.PEBSize)
		if err != nil {
			return err
		}
		defer dev.Close()
		return openAndRun(dev, lpcnor.Normal, cfg)

	default:
		flagSet.Usage()
		return errors.New("missing command or image file path")
	}
}

func openAndRun(dev flash.Device, mode lpcnor.Mode, cfg MediaConfig) error {
	e := lpcnor.New(dev, lpcnor.WithVacantPlaceholders(cfg.WriteVacantPlaceholders))
	if err := e.Mount(mode); err != nil {
		return fmt.Errorf("norctl: mount: %w", err)
	}
	r := &REPL{engine: e, dev: dev}
	return r.Run()
}

// REPL is the interactive command loop over a mounted lpcnor.Engine.
type REPL struct {
	engine *lpcnor.Engine
	dev    flash.Device
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".norctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		if _, err := r.liner.ReadHistory(f); err != nil {
			log.Printf("norctl: discarding unreadable history file: %v", err)
		}
		f.Close()
	}

	fmt.Printf("norctl - lpcnor media CLI (npeb=%d, peb_size=%d)\n", r.dev.NPEB(), r.dev.PEBSize())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("norctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			printHelp()

		case "write":
			r.cmdWrite([]byte(strings.Join(args, " ")))

		case "writehex":
			r.cmdWriteHex(args)

		case "get":
			r.cmdGet(args)

		case "verify":
			r.cmdVerify(args)

		case "size":
			r.cmdSize(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "scan", "ls", "list":
			r.cmdScan(args)

		case "info":
			r.cmdInfo()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Printf("norctl: could not save history to %q: %v", path, err)
		return
	}
	defer f.Close()
	if _, err := r.liner.WriteHistory(f); err != nil {
		log.Printf("norctl: could not write history to %q: %v", path, err)
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"write", "writehex", "get", "verify", "size",
		"del", "delete", "scan", "ls", "list",
		"info", "clear", "cls", "help", "exit", "quit", "q",
	}
	var out []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  write <text>              Write a record, print its pointer")
	fmt.Println("  writehex <hex>            Write a record from hex-encoded bytes")
	fmt.Println("  get <leb> <slot>          Print a record's bytes (hex)")
	fmt.Println("  verify <leb> <slot>       Check a record's CRC")
	fmt.Println("  size <leb> <slot>         Print a record's byte length")
	fmt.Println("  del <leb> <slot>          Delete a record")
	fmt.Println("  scan [limit]              List every live record")
	fmt.Println("  info                      Show mounted media info")
	fmt.Println("  help                      Show this help")
	fmt.Println("  exit / quit / q           Exit")
}

func parsePtr(args []string) (lpcnor.Ptr, error) {
	if len(args) < 2 {
		return lpcnor.Ptr{}, errors.New("usage: <leb> <slot>")
	}
	leb, err := strconv.Atoi(args[0])
	if err != nil {
		return lpcnor.Ptr{}, fmt.Errorf("invalid leb %q: %w", args[0], err)
	}
	slot, err := strconv.Atoi(args[1])
	if err != nil {
		return lpcnor.Ptr{}, fmt.Errorf("invalid slot %q: %w", args[1], err)
	}
	return lpcnor.Ptr{LEB: uint8(leb), Slot: uint16(slot)}, nil
}

func (r *REPL) cmdWrite(data []byte) {
	ptr := r.engine.Write(data)
	if ptr.IsBlank() {
		fmt.Println("write failed: no LEB could host this record")
		return
	}
	fmt.Printf("wrote %d bytes at %s\n", len(data), ptr)
}

func (r *REPL) cmdWriteHex(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: writehex <hex>")
		return
	}
	data, err := hex.DecodeString(args[0])
	if err != nil {
		fmt.Printf("invalid hex: %v\n", err)
		return
	}
	r.cmdWrite(data)
}

func (r *REPL) cmdGet(args []string) {
	ptr, err := parsePtr(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	data, err := r.engine.Read(ptr)
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	fmt.Println(hex.EncodeToString(data))
}

func (r *REPL) cmdVerify(args []string) {
	ptr, err := parsePtr(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(r.engine.Verify(ptr))
}

func (r *REPL) cmdSize(args []string) {
	ptr, err := parsePtr(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(r.engine.SizeOf(ptr))
}

func (r *REPL) cmdDelete(args []string) {
	ptr, err := parsePtr(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	if !r.engine.Delete(ptr) {
		fmt.Println("delete failed: no such record")
		return
	}
	fmt.Println("deleted")
}

func (r *REPL) cmdScan(args []string) {
	limit := -1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("invalid limit %q: %v\n", args[0], err)
			return
		}
		limit = n
	}

	count := 0
	for p := r.engine.IterateFirst(); !p.IsBlank(); p = r.engine.IterateNext(p) {
		if limit >= 0 && count >= limit {
			fmt.Printf("... (limit %d reached)\n", limit)
			return
		}
		fmt.Printf("%s  size=%d\n", p, r.engine.SizeOf(p))
		count++
	}
	fmt.Printf("%d record(s)\n", count)
}

func (r *REPL) cmdInfo() {
	fmt.Printf("npeb=%d peb_size=%d\n", r.dev.NPEB(), r.dev.PEBSize())
	lebs, spare := r.engine.Info()
	for _, l := range lebs {
		fmt.Printf("leb %d: peb=%d gen=%d erases=%d slots=%d busy_pages=%d free_pages=%d\n",
			l.LEB, l.PEB, l.Generation, l.EraseCount, l.NbSlots, l.NbBusyPages, l.FreePages)
	}
	fmt.Printf("spare: peb=%d\n", spare)
}
