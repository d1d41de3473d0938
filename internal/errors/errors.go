package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// BuildError records one page that failed to build.
type BuildError struct {
	File      string
	Line      int
	Column    int
	Kind      ErrorKind
	Message   string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", be.File, be.Line, be.Column, be.Message)
	}
	return fmt.Sprintf("%s: %s", be.File, be.Message)
}

// Unwrap returns the error the page build failed with.
func (be *BuildError) Unwrap() error {
	return be.Err
}

// FromError converts a page failure into a BuildError, pulling location and
// kind out of a SiteError when there is one.
func FromError(file string, err error) BuildError {
	be := BuildError{File: file, Kind: KindInternal, Message: err.Error(), Err: err}

	var se *SiteError
	if errors.As(err, &se) {
		be.Kind = se.Kind
		be.Line = se.Line
		be.Column = se.Column
		be.Message = se.Message
		if se.Cause != nil {
			be.Message += ": " + se.Cause.Error()
		}
	}

	return be
}

// ErrorCollector collects page failures during a build so one bad page does
// not stop the others.
type ErrorCollector struct {
	buildErrors []BuildError
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.buildErrors = append(ec.buildErrors, err)
}

// AddError records err against file. Nil errors are ignored.
func (ec *ErrorCollector) AddError(file string, err error) {
	if err == nil {
		return
	}
	ec.Add(FromError(file, err))
}

// GetErrors returns all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.buildErrors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = ec.buildErrors[:0]
}

// ClearFile drops the errors recorded for file, used once it rebuilds cleanly.
func (ec *ErrorCollector) ClearFile(file string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	kept := ec.buildErrors[:0]
	for _, err := range ec.buildErrors {
		if err.File != file {
			kept = append(kept, err)
		}
	}
	ec.buildErrors = kept
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// CountByKind returns how many errors of each kind were collected.
func (ec *ErrorCollector) CountByKind() map[ErrorKind]int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	counts := make(map[ErrorKind]int)
	for _, err := range ec.buildErrors {
		counts[err.Kind]++
	}
	return counts
}

// Err returns nil when nothing was collected, otherwise an error summarising
// the failed files in sorted order.
func (ec *ErrorCollector) Err() error {
	errs := ec.GetErrors()
	if len(errs) == 0 {
		return nil
	}

	files := make([]string, 0, len(errs))
	seen := make(map[string]bool)
	for _, err := range errs {
		if !seen[err.File] {
			seen[err.File] = true
			files = append(files, err.File)
		}
	}
	sort.Strings(files)

	if len(files) == 1 {
		return fmt.Errorf("1 file failed to build: %s", files[0])
	}
	return fmt.Errorf("%d files failed to build: %v", len(files), files)
}
