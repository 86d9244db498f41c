// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

var cleanerStop chan struct{}

// configureLogDirCleanerLocked starts or stops the periodic log directory
// cleaner. Caller holds writerMu. The active main.log is never removed.
func configureLogDirCleanerLocked(logDir string, maxTotalSizeMB int, protectedPath string) {
	stopLogDirCleanerLocked()
	if maxTotalSizeMB <= 0 || protectedPath == "" {
		return
	}

	stop := make(chan struct{})
	cleanerStop = stop
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		cleanLogDir(logDir, int64(maxTotalSizeMB)*1024*1024, protectedPath)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cleanLogDir(logDir, int64(maxTotalSizeMB)*1024*1024, protectedPath)
			}
		}
	}()
}

func stopLogDirCleanerLocked() {
	if cleanerStop != nil {
		close(cleanerStop)
		cleanerStop = nil
	}
}

// cleanLogDir deletes the oldest files in logDir until the directory's total
// size is within maxBytes.
func cleanLogDir(logDir string, maxBytes int64, protectedPath string) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []logFile
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(logDir, e.Name())
		files = append(files, logFile{path: path, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	if total <= maxBytes {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if f.path == protectedPath {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			log.WithError(err).Debugf("log cleaner: could not remove %s", f.path)
			continue
		}
		total -= f.size
	}
}
