// Package selftest exercises a booted file system against the concrete
// scenarios it is expected to satisfy, mirroring the test_all() call the
// reference implementation's main() makes right after FS_Boot/FS_Sync.
// It is meant to be run against a disposable image, not a production one:
// it creates files and directories and does not clean up after itself.
package selftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/blockfs/fs"
	"github.com/dargueta/blockfs/internal/layout"
)

// Run exercises every scenario and returns an aggregated error describing
// every failure encountered, or nil if all scenarios passed.
func Run(fsys *fs.FileSystem) error {
	var result *multierror.Error

	scenarios := []struct {
		name string
		run  func(*fs.FileSystem) error
	}{
		{"E2 read/write round trip", scenarioE2},
		{"E3 unlink ordering", scenarioE3},
		// E4 asserts absolute fd numbers (0, 1, 2), which is only a
		// well-defined expectation starting from an empty fd table. The
		// scenarios above this one already open and close files against
		// fsys, advancing its fd-allocation cursor, so E4 runs against its
		// own freshly-booted, disposable image instead of the shared one.
		{"E4 repeated open", func(*fs.FileSystem) error { return scenarioE4() }},
		{"E5 fd exhaustion", scenarioE5},
		{"E6 file too big", scenarioE6},
		{"E7 dir read", scenarioE7},
	}

	for _, s := range scenarios {
		if err := s.run(fsys); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	return result.ErrorOrNil()
}

func scenarioE2(fsys *fs.FileSystem) error {
	const path = "/salam_test"
	if err := fsys.FileCreate(path); err != nil {
		return err
	}

	fd, err := fsys.FileOpen(path)
	if err != nil {
		return err
	}

	original := []byte("salam bar to\x00")
	if err := fsys.FileWrite(fd, original); err != nil {
		return err
	}
	if err := fsys.FileClose(fd); err != nil {
		return err
	}

	fd, err = fsys.FileOpen(path)
	if err != nil {
		return err
	}
	defer fsys.FileClose(fd)

	buf := make([]byte, 5)
	n, err := fsys.FileRead(fd, buf)
	if err != nil {
		return err
	}
	if n != 5 || string(buf) != "salam" {
		return fmt.Errorf("first read of 5 got (%d, %q), want (5, %q)", n, buf, "salam")
	}

	if _, err := fsys.FileSeek(fd, 0); err != nil {
		return err
	}
	n, err = fsys.FileRead(fd, buf)
	if err != nil {
		return err
	}
	if n != 5 || string(buf) != "salam" {
		return fmt.Errorf("post-seek read of 5 got (%d, %q), want (5, %q)", n, buf, "salam")
	}

	tail := make([]byte, 100)
	n, err = fsys.FileRead(fd, tail)
	if err != nil {
		return err
	}
	if n != 8 {
		return fmt.Errorf("tail read got %d bytes, want 8", n)
	}
	if !bytes.Equal(tail[:8], original[5:13]) {
		return fmt.Errorf("tail read %q does not match original bytes 5..13 %q", tail[:8], original[5:13])
	}
	return nil
}

func scenarioE3(fsys *fs.FileSystem) error {
	for _, path := range []string{"/u", "/u/p2", "/u/p2/p3", "/u/p1"} {
		if err := fsys.DirCreate(path); err != nil {
			return err
		}
	}
	for _, path := range []string{"/u/p1/1", "/u/p1/2"} {
		if err := fsys.FileCreate(path); err != nil {
			return err
		}
	}

	expectErr := func(step string, err error) error {
		if err == nil {
			return fmt.Errorf("%s: expected an error, got nil", step)
		}
		return nil
	}
	expectOK := func(step string, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		return nil
	}

	if err := expectErr("Dir_Unlink(/u/p1/1)", fsys.DirUnlink("/u/p1/1")); err != nil {
		return err
	}
	if err := expectErr("File_Unlink(/u/p1)", fsys.FileUnlink("/u/p1")); err != nil {
		return err
	}
	if err := expectErr("Dir_Unlink(/u/p1) not empty", fsys.DirUnlink("/u/p1")); err != nil {
		return err
	}
	if err := expectOK("Dir_Unlink(/u/p2/p3)", fsys.DirUnlink("/u/p2/p3")); err != nil {
		return err
	}
	if err := expectOK("Dir_Unlink(/u/p2)", fsys.DirUnlink("/u/p2")); err != nil {
		return err
	}
	if err := expectErr("Dir_Unlink(/)", fsys.DirUnlink("/")); err != nil {
		return err
	}
	if err := expectOK("File_Unlink(/u/p1/1)", fsys.FileUnlink("/u/p1/1")); err != nil {
		return err
	}
	if err := expectErr("Dir_Unlink(/u/p1) still has 2", fsys.DirUnlink("/u/p1")); err != nil {
		return err
	}
	if err := expectOK("File_Unlink(/u/p1/2)", fsys.FileUnlink("/u/p1/2")); err != nil {
		return err
	}
	if err := expectOK("Dir_Unlink(/u/p1)", fsys.DirUnlink("/u/p1")); err != nil {
		return err
	}
	return nil
}

func scenarioE4() error {
	dir, err := os.MkdirTemp("", "blockfs-selftest-e4-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	fsys := fs.New()
	if err := fsys.Boot(filepath.Join(dir, "image.img")); err != nil {
		return err
	}

	const path = "/e4_test"
	if err := fsys.FileCreate(path); err != nil {
		return err
	}

	var fds [3]int
	for i := range fds {
		fd, err := fsys.FileOpen(path)
		if err != nil {
			return err
		}
		fds[i] = fd
	}
	for i, fd := range fds {
		if fd != i {
			return fmt.Errorf("open %d of the same file returned fd %d, want %d", i, fd, i)
		}
	}
	for _, fd := range fds {
		if err := fsys.FileClose(fd); err != nil {
			return err
		}
	}

	if _, err := fsys.FileOpen("/does_not_exist"); err == nil {
		return fmt.Errorf("opening a nonexistent file succeeded")
	}

	if err := fsys.DirCreate("/e4_dir"); err != nil {
		return err
	}
	if _, err := fsys.FileOpen("/e4_dir"); err == nil {
		return fmt.Errorf("opening a directory as a file succeeded")
	}
	return nil
}

func scenarioE5(fsys *fs.FileSystem) error {
	const path = "/test_MAX_FDS"
	if err := fsys.FileCreate(path); err != nil {
		return err
	}

	opened := make([]int, 0, layout.MaxFDs)
	defer func() {
		for _, fd := range opened {
			fsys.FileClose(fd)
		}
	}()

	for i := 0; i < layout.MaxFDs; i++ {
		fd, err := fsys.FileOpen(path)
		if err != nil {
			return fmt.Errorf("open %d of %d failed: %w", i, layout.MaxFDs, err)
		}
		opened = append(opened, fd)
	}

	if _, err := fsys.FileOpen(path); err == nil {
		return fmt.Errorf("open %d succeeded, want E_TOO_MANY_OPEN_FILES", layout.MaxFDs+1)
	}
	return nil
}

func scenarioE6(fsys *fs.FileSystem) error {
	const path = "/test_TOO_BIG"
	if err := fsys.FileCreate(path); err != nil {
		return err
	}

	fd, err := fsys.FileOpen(path)
	if err != nil {
		return err
	}
	defer fsys.FileClose(fd)

	if err := fsys.FileWrite(fd, bytes.Repeat([]byte{'x'}, 15355)); err != nil {
		return fmt.Errorf("writing 15355 bytes: %w", err)
	}

	if err := fsys.FileClose(fd); err != nil {
		return err
	}
	fd, err = fsys.FileOpen(path)
	if err != nil {
		return err
	}

	if _, err := fsys.FileSeek(fd, 15355); err != nil {
		return err
	}
	if err := fsys.FileWrite(fd, bytes.Repeat([]byte{'y'}, 11)); err == nil {
		return fmt.Errorf("writing past the 30-block cap succeeded, want E_FILE_TOO_BIG")
	}
	return nil
}

func scenarioE7(fsys *fs.FileSystem) error {
	if err := fsys.DirCreate("/d"); err != nil {
		return err
	}
	for _, name := range []string{"/d/a", "/d/b", "/d/c"} {
		if err := fsys.FileCreate(name); err != nil {
			return err
		}
	}

	buf := make([]byte, 60)
	n, err := fsys.DirRead("/d/", buf)
	if err != nil {
		return err
	}
	if n != 3 {
		return fmt.Errorf("Dir_Read(/d/) returned %d entries, want 3", n)
	}
	return nil
}
