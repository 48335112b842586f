package motio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/LdDl/sort-go/internal/pipeline"
)

// Writer writes tracker results in MOTChallenge format: frame,id,x,y,w,h,conf,-1,-1,-1
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
}

// NewWriter creates writer over w. Flush must be called after the last frame
func NewWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriter(w)}
}

// Consume implements pipeline.Sink
func (writer *Writer) Consume(ctx context.Context, result pipeline.Result) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	for _, obj := range result.Objects {
		_, err := fmt.Fprintf(writer.buf, "%d,%d,%.2f,%.2f,%.2f,%.2f,%.2f,-1,-1,-1\n",
			result.Frame, obj.ID, obj.BBox.X, obj.BBox.Y, obj.BBox.Width, obj.BBox.Height, obj.Confidence)
		if err != nil {
			return fmt.Errorf("write track %d: %w", obj.ID, err)
		}
	}
	return nil
}

// Flush writes buffered rows to the underlying writer
func (writer *Writer) Flush() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	return writer.buf.Flush()
}
