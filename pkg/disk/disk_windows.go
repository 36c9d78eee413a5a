// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// openFile refuses to write through hard links or below junctions, which would let an
// unprivileged user redirect the service output.
func openFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if err := checkWriteSafe(name); err != nil {
		return nil, err
	}
	return os.OpenFile(name, flag, perm)
}

func mkdirAll(path string, perm os.FileMode) error {
	if err := checkSafeDir(path); err != nil {
		return err
	}
	return os.MkdirAll(path, perm)
}

func checkWriteSafe(filePath string) error {
	if err := checkSafeDir(filepath.Dir(filePath)); err != nil {
		return err
	}
	file, err := os.Open(filePath)
	if err != nil {
		// not there yet, it can be safely created
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var info syscall.ByHandleFileInformation
	if err = syscall.GetFileInformationByHandle(syscall.Handle(file.Fd()), &info); err != nil {
		return err
	}
	if info.NumberOfLinks > 1 {
		return fmt.Errorf("writing to hard links is not allowed: %s", file.Name())
	}
	return nil
}

// checkSafeDir fails when dirPath, or any existing ancestor, is a junction or symlink.
func checkSafeDir(dirPath string) error {
	folder, err := filepath.Abs(dirPath)
	if err != nil {
		return err
	}

	// skip the trailing directories that don't exist yet
	for {
		if _, err = os.Stat(folder); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(folder)
		if parent == folder {
			return nil
		}
		folder = parent
	}

	for {
		stat, err := os.Lstat(folder)
		if err != nil {
			return err
		}
		if stat.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("junctions and symlinks are not allowed: %s", folder)
		}
		parent := filepath.Dir(folder)
		if parent == folder {
			return nil
		}
		folder = parent
	}
}
