package data

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/config"
)

// DataPath resolves a relative data file against DATA_DIR.
func DataPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(config.GetDataDir(), filename)
}

// JsonReadSharedLock decodes filename under a shared flock.
func JsonReadSharedLock[T any](filename string) (*T, error) {
	file, err := os.OpenFile(DataPath(filename), os.O_RDONLY, 0666)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// lock the file (shared lock)
	if err = syscall.Flock(int(file.Fd()), syscall.LOCK_SH); err != nil {
		return nil, err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	var data T
	err = json.NewDecoder(file).Decode(&data)
	if err != nil {
		return nil, err
	}

	return &data, nil
}

// JsonUpdateExclusiveLock reads filename under an exclusive flock, lets update
// modify the value and writes it back. A missing or empty file starts from the
// zero value.
func JsonUpdateExclusiveLock[T any](filename string, update func(data *T) error) error {
	p := DataPath(filename)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	// lock the file (exclusive lock)
	if err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	var data T
	err = json.NewDecoder(file).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	err = update(&data)
	if err != nil {
		return err
	}

	err = json.NewEncoder(file).Encode(data)
	if err != nil {
		return err
	}

	// Get the current position of the file pointer and truncate the file to that position
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return file.Truncate(pos)
}
