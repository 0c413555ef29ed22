package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	gdisk "github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/disk"
	"github.com/mit-pdos/go-nufs/storage"
)

const chunk = 64 * 1024

func cmdMkfs(e *env, args []string) error {
	if _, err := os.Stat(e.cfg.Image); err == nil {
		return fmt.Errorf("%s: %w", e.cfg.Image, common.ErrExists)
	}
	st, err := storage.OpenFile(e.cfg.Image, e.cfg.Capacity, e.cfg.MaxInodes)
	if err != nil {
		return err
	}
	printStatFS(e.stdout, st.StatFS())
	return st.Close()
}

func childPath(dir string, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name
}

func printAttr(w io.Writer, attr *storage.Attr, name string) {
	fmt.Fprintf(w, "%07o %3d %4d %8d %s\n", attr.Mode, attr.Nlink, attr.Ino, attr.Size, name)
}

func cmdLs(st *storage.Storage, e *env, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	names, err := st.List(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		attr, err := st.Stat(childPath(path, name))
		if err != nil {
			return err
		}
		printAttr(e.stdout, attr, name)
	}
	return nil
}

func cmdStat(st *storage.Storage, e *env, args []string) error {
	attr, err := st.Stat(args[0])
	if err != nil {
		return err
	}
	printAttr(e.stdout, attr, args[0])
	return nil
}

func cmdCat(st *storage.Storage, e *env, args []string) error {
	buf := make([]byte, chunk)
	var off uint64
	for {
		n, err := st.Read(args[0], buf, off)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := e.stdout.Write(buf[:n]); err != nil {
			return err
		}
		off += n
	}
}

// cmdPut replaces the contents of a file, creating it if needed.
func cmdPut(st *storage.Storage, e *env, args []string) error {
	var data []byte
	var err error
	if len(args) > 1 {
		data, err = os.ReadFile(args[1])
	} else {
		data, err = io.ReadAll(e.stdin)
	}
	if err != nil {
		return err
	}
	path := args[0]
	if err := st.Access(path); errors.Is(err, common.ErrNotFound) {
		if err := st.Mknod(path, common.S_IFREG|0o644); err != nil {
			return err
		}
	}
	if err := st.Truncate(path, 0); err != nil {
		return err
	}
	_, err = st.Write(path, data, 0)
	return err
}

func cmdMkdir(st *storage.Storage, e *env, args []string) error {
	mode, err := optMode(args, 0o755)
	if err != nil {
		return err
	}
	return st.Mkdir(args[0], mode)
}

func cmdMknod(st *storage.Storage, e *env, args []string) error {
	mode, err := optMode(args, common.S_IFREG|0o644)
	if err != nil {
		return err
	}
	return st.Mknod(args[0], mode)
}

func cmdRm(st *storage.Storage, e *env, args []string) error {
	return st.Unlink(args[0])
}

func cmdRmdir(st *storage.Storage, e *env, args []string) error {
	return st.Rmdir(args[0])
}

func cmdMv(st *storage.Storage, e *env, args []string) error {
	return st.Rename(args[0], args[1])
}

func cmdLn(st *storage.Storage, e *env, args []string) error {
	return st.Link(args[0], args[1])
}

func cmdTruncate(st *storage.Storage, e *env, args []string) error {
	sz, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("size %q: %w", args[1], common.ErrInvalid)
	}
	return st.Truncate(args[0], sz)
}

func cmdChmod(st *storage.Storage, e *env, args []string) error {
	mode, err := parseMode(args[0])
	if err != nil {
		return err
	}
	return st.Chmod(args[1], mode)
}

func printStatFS(w io.Writer, fs *storage.FSStat) {
	fmt.Fprintf(w, "block size %d\n", fs.BlockSize)
	fmt.Fprintf(w, "blocks %d used %d free %d\n", fs.Blocks, fs.Blocks-fs.FreeBlocks, fs.FreeBlocks)
	fmt.Fprintf(w, "inodes %d used %d free %d\n", fs.Inodes, fs.Inodes-fs.FreeInodes, fs.FreeInodes)
}

func cmdDf(st *storage.Storage, e *env, args []string) error {
	printStatFS(e.stdout, st.StatFS())
	return nil
}

func cmdCheck(st *storage.Storage, e *env, args []string) error {
	r, err := st.Check()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, strings.TrimSuffix(r.String(), "\n"))
	if !r.OK() {
		return fmt.Errorf("%s is inconsistent: %w", e.cfg.Image, common.ErrIO)
	}
	return nil
}

// cmdExport copies the image block for block into a goose file disk.
func cmdExport(e *env, args []string) error {
	r, err := openRegion(e)
	if err != nil {
		return err
	}
	defer r.Close()
	d, err := gdisk.NewFileDisk(args[0], e.cfg.NumBlocks())
	if err != nil {
		return err
	}
	defer d.Close()
	return disk.Export(r, d)
}

// cmdImport overwrites the image with a file previously written by export.
// The source must have exactly the configured capacity.
func cmdImport(e *env, args []string) error {
	fi, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	if uint64(fi.Size()) != e.cfg.Capacity {
		return fmt.Errorf("%s is %d bytes, want %d: %w",
			args[0], fi.Size(), e.cfg.Capacity, common.ErrInvalid)
	}
	d, err := gdisk.NewFileDisk(args[0], e.cfg.NumBlocks())
	if err != nil {
		return err
	}
	defer d.Close()
	r, err := disk.NewFileRegion(e.cfg.Image, e.cfg.NumBlocks())
	if err != nil {
		return err
	}
	if err := disk.Import(d, r); err != nil {
		r.Close()
		return err
	}
	return r.Close()
}

func openRegion(e *env) (*disk.FileRegion, error) {
	if _, err := os.Stat(e.cfg.Image); err != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.Image, common.ErrNotFound)
	}
	return disk.NewFileRegion(e.cfg.Image, e.cfg.NumBlocks())
}

// cmdDump writes a compressed copy of the image and prints its digest.
func cmdDump(e *env, args []string) error {
	codec := disk.CodecZstd
	if len(args) > 1 {
		c, err := disk.ParseCodec(args[1])
		if err != nil {
			return err
		}
		codec = c
	}
	r, err := openRegion(e)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	d, err := disk.Dump(r, f, codec)
	if err != nil {
		f.Close()
		return err
	}
	fmt.Fprintln(e.stdout, d)
	return f.Close()
}

func cmdRestore(e *env, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := disk.NewFileRegion(e.cfg.Image, e.cfg.NumBlocks())
	if err != nil {
		return err
	}
	d, err := disk.Restore(f, r)
	if err != nil {
		r.Close()
		return err
	}
	fmt.Fprintln(e.stdout, d)
	return r.Close()
}

func cmdSum(e *env, args []string) error {
	r, err := openRegion(e)
	if err != nil {
		return err
	}
	defer r.Close()
	d, err := disk.Sum(r)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, d)
	return nil
}
