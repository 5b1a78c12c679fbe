// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
)

// AsyncLogger decouples slow log-file I/O (rotation, disk) from the FUSE
// callback that produced the message: writes are buffered on a channel and
// drained by a single background goroutine. A full buffer drops the
// message rather than blocking the caller.
type AsyncLogger struct {
	w    io.WriteCloser
	ch   chan []byte
	done chan struct{}
}

// NewAsyncLogger starts the drain goroutine and returns a ready-to-use
// AsyncLogger. w is typically a *lumberjack.Logger, which rotates the
// underlying file per cfg.LogRotateConfig.
func NewAsyncLogger(w io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		w:    w,
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for b := range a.ch {
		if _, err := a.w.Write(b); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
		}
	}
}

// Write queues p for the drain goroutine. It never blocks: a full buffer
// drops the message and logs a warning to stderr.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)

	select {
	case a.ch <- b:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains any buffered messages and closes the underlying writer.
func (a *AsyncLogger) Close() error {
	close(a.ch)
	<-a.done
	return a.w.Close()
}
