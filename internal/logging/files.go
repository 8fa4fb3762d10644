package logging

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTailLines is how many lines Tail shows when asked for n <= 0.
const DefaultTailLines = 100

// File is one log file on disk.
type File struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// List returns *.log files in dir, newest first. A missing dir is not an error.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir %q: %w", dir, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// Tail returns the last n lines of path (DefaultTailLines when n <= 0).
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file %q: %w", path, err)
	}
	return ring, nil
}

// Clear deletes musegen log files in dir except the paths in keep and
// returns how many were removed.
func Clear(dir string, keep ...string) (int, error) {
	files, err := List(dir)
	if err != nil {
		return 0, err
	}
	skip := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		skip[filepath.Clean(k)] = struct{}{}
	}

	removed := 0
	var errs []error
	for _, file := range files {
		if !strings.HasPrefix(file.Name, filePrefix) {
			continue
		}
		if _, ok := skip[filepath.Clean(file.Path)]; ok {
			continue
		}
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %q: %w", file.Path, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
