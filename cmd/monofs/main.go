package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/fsys"
	"github.com/mbarlow/monofs/inode"
)

func main() {
	app := &cli.App{
		Usage: "Mount and operate on a monofs image",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Open IMAGE (creating it if absent) and start the shell",
				Action:    runImage,
				ArgsUsage: "IMAGE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func runImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("usage: monofs run IMAGE")
	}

	fs, err := fsys.Load(path)
	if err != nil {
		fs, err = fsys.Initialize(path)
		if err != nil {
			return fmt.Errorf("could not open or create %q: %w", path, err)
		}
		fmt.Printf("initialized new image at %q\n", path)
	}
	defer fs.Close()

	shell{fs: fs, identity: fsys.Identity{Uid: 0, Gid: 0}}.run()
	return nil
}

// shell is the interactive command loop, mirroring the original program's
// fgets-based REPL: one line in, one command dispatched, one line (or
// block) of output.
type shell struct {
	fs       *fsys.FileSystem
	identity fsys.Identity
}

func (s shell) run() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("monofs> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			args := strings.Fields(line)
			if args[0] == "quit" || args[0] == "exit" {
				return
			}
			s.dispatch(args)
		}
		fmt.Print("monofs> ")
	}
}

func (s shell) dispatch(args []string) {
	var err error
	switch args[0] {
	case "ls":
		err = s.ls(args[1:])
	case "cd":
		err = s.cd(args[1:])
	case "mkdir":
		err = s.create(args[1:], true)
	case "touch":
		err = s.create(args[1:], false)
	case "rm":
		err = s.rm(args[1:])
	case "cp":
		err = s.cp(args[1:])
	case "mv":
		err = s.mv(args[1:])
	case "cat":
		err = s.cat(args[1:])
	case "write":
		err = s.write(args[1:])
	case "ln":
		err = s.ln(args[1:])
	case "lns":
		err = s.lns(args[1:])
	case "chmod":
		err = s.chmod(args[1:])
	case "save":
		err = s.fs.Save()
	case "backup":
		err = s.backup(args[1:])
	case "restore":
		err = s.restore(args[1:])
	case "defrag":
		err = s.defrag()
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
	}
}

func (s shell) ls(args []string) error {
	if len(args) >= 1 && args[0] == "-i" {
		if len(args) != 2 {
			return errors.New("usage: ls -i NAME")
		}
		return s.lsInode(args[1])
	}

	listing, err := s.fs.List()
	if err != nil {
		return err
	}
	for _, e := range listing {
		fmt.Printf("%c%s %6d %s %s\n", typeGlyph(e.Type), e.ModeString, e.Size, e.ModifiedAt, e.Name)
	}
	return nil
}

func typeGlyph(t inode.Type) byte {
	switch t {
	case inode.Directory:
		return 'd'
	case inode.Symlink:
		return 'l'
	case inode.Regular:
		return 'f'
	default:
		return '?'
	}
}

func (s shell) lsInode(name string) error {
	listing, err := s.fs.List()
	if err != nil {
		return err
	}
	var id inode.ID
	found := false
	for _, e := range listing {
		if e.Name == name {
			id, found = e.ID, true
			break
		}
	}
	if !found {
		return fserrors.NotFound.WithMessage(name)
	}

	dump, err := s.fs.DumpInode(id)
	if err != nil {
		return err
	}
	fmt.Printf("inode %d: type=%c mode=%s uid=%d gid=%d nlinks=%d size=%d\n",
		dump.ID, dump.Inode.TypeGlyph(), dump.Inode.ModeString(),
		dump.Inode.Uid, dump.Inode.Gid, dump.Inode.Nlinks, dump.Inode.Size)
	fmt.Printf("  created  %s\n", dump.Inode.CreatedAt)
	fmt.Printf("  modified %s\n", dump.Inode.ModifiedAt)
	fmt.Printf("  accessed %s\n", dump.Inode.AccessedAt)
	for i, block := range dump.Direct {
		fmt.Printf("  direct[%d]:\n", i)
		hexDump(block)
	}
	for i, block := range dump.Indirect {
		fmt.Printf("  indirect[%d]:\n", i)
		hexDump(block)
	}
	return nil
}

func hexDump(data []byte) {
	const width = 16
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Printf("    %04x  ", off)
		for _, b := range row {
			fmt.Printf("%02x ", b)
		}
		for pad := len(row); pad < width; pad++ {
			fmt.Print("   ")
		}
		fmt.Print(" ")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println()
	}
}

func (s shell) cd(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cd NAME")
	}
	return s.fs.Chdir(s.identity, args[0])
}

func (s shell) create(args []string, dir bool) error {
	if len(args) != 1 {
		return errors.New("usage: <mkdir|touch> NAME")
	}
	_, err := s.fs.Create(s.identity, args[0], dir)
	return err
}

func (s shell) rm(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm NAME")
	}
	return s.fs.Unlink(s.identity, args[0])
}

func (s shell) cp(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cp SRC DST")
	}
	return s.fs.Copy(s.identity, args[0], args[1])
}

func (s shell) mv(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mv SRC DST")
	}
	return s.fs.Rename(s.identity, args[0], args[1])
}

func (s shell) resolve(name string) (inode.ID, error) {
	listing, err := s.fs.List()
	if err != nil {
		return 0, err
	}
	for _, e := range listing {
		if e.Name == name {
			return e.ID, nil
		}
	}
	return 0, fserrors.NotFound.WithMessage(name)
}

func (s shell) cat(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cat NAME")
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	n, err := s.fs.Inode(id)
	if err != nil {
		return err
	}
	data, err := s.fs.ReadFile(s.identity, id, 0, n.Size)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	fmt.Println()
	return nil
}

func (s shell) write(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: write NAME TEXT...")
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	_, err = s.fs.WriteFile(s.identity, id, 0, []byte(text))
	return err
}

func (s shell) ln(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: ln SRC NEWNAME")
	}
	return s.fs.Link(s.identity, args[0], args[1])
}

func (s shell) lns(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: lns TARGET NEWNAME")
	}
	return s.fs.Symlink(s.identity, args[0], args[1])
}

func (s shell) chmod(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: chmod rwxrwxrwx NAME")
	}
	mode, err := inode.ParseMode(args[0])
	if err != nil {
		return err
	}
	id, err := s.resolve(args[1])
	if err != nil {
		return err
	}
	return s.fs.Chmod(s.identity, id, mode)
}

func (s shell) backup(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: backup SIDEFILE")
	}
	return s.fs.Backup(args[0])
}

func (s shell) restore(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: restore SIDEFILE")
	}
	return s.fs.Restore(args[0])
}

func (s shell) defrag() error {
	before := s.fs.Bitmap().Snapshot()
	printBitmap("before", before)

	if err := s.fs.Defragment(); err != nil {
		return err
	}

	after := s.fs.Bitmap().Snapshot()
	printBitmap("after", after)
	return nil
}

func printBitmap(label string, bits []bool) {
	fmt.Printf("bitmap %s (%d blocks):\n", label, len(bits))
	const width = 64
	for off := 0; off < len(bits); off += width {
		end := off + width
		if end > len(bits) {
			end = len(bits)
		}
		var row strings.Builder
		for _, used := range bits[off:end] {
			if used {
				row.WriteByte('#')
			} else {
				row.WriteByte('.')
			}
		}
		fmt.Printf("  %4s %s\n", strconv.Itoa(off), row.String())
	}
}
