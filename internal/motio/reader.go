package motio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/LdDl/sort-go/internal/pipeline"
	"github.com/LdDl/sort-go/mot"
)

// Reader parses MOTChallenge detection file: frame,id,x,y,w,h,conf[,class[,...]].
// Rows are grouped into frames by the first column. Rows of a single frame must be contiguous.
type Reader struct {
	csv *csv.Reader
	// ClassNames maps class column to human readable name
	ClassNames map[int]string
	// FillGaps emits empty frames for frame indices missing in the file, so tracks age on every frame
	FillGaps bool
	// ClampConfidence moves detector scores outside of [0, 1] to the nearest bound
	ClampConfidence bool

	pending   *row
	nextIndex int64
	started   bool
	line      int
	done      bool
}

type row struct {
	frame     int64
	detection mot.Detection
}

// NewReader creates reader over r
func NewReader(r io.Reader) *Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	return &Reader{
		csv:             reader,
		FillGaps:        true,
		ClampConfidence: true,
	}
}

// Next implements pipeline.Source
func (reader *Reader) Next(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if reader.pending == nil && !reader.done {
		first, err := reader.readRow()
		if err != nil {
			return pipeline.Frame{}, err
		}
		reader.pending = first
	}
	if reader.pending == nil {
		return pipeline.Frame{}, io.EOF
	}

	if reader.FillGaps && reader.started && reader.pending.frame > reader.nextIndex {
		frame := pipeline.Frame{Index: reader.nextIndex, Detections: []mot.Detection{}}
		reader.nextIndex++
		return frame, nil
	}

	frame := pipeline.Frame{
		Index:      reader.pending.frame,
		Detections: []mot.Detection{reader.pending.detection},
	}
	for {
		next, err := reader.readRow()
		if err != nil {
			return pipeline.Frame{}, err
		}
		if next == nil || next.frame != frame.Index {
			reader.pending = next
			break
		}
		frame.Detections = append(frame.Detections, next.detection)
	}
	reader.started = true
	reader.nextIndex = frame.Index + 1
	return frame, nil
}

// readRow returns nil row at the end of input
func (reader *Reader) readRow() (*row, error) {
	for {
		record, err := reader.csv.Read()
		if errors.Is(err, io.EOF) {
			reader.done = true
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read detections: %w", err)
		}
		reader.line++
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		parsed, err := reader.parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", reader.line, err)
		}
		return parsed, nil
	}
}

func (reader *Reader) parseRecord(record []string) (*row, error) {
	if len(record) < 7 {
		return nil, fmt.Errorf("expected at least 7 fields, got %d", len(record))
	}
	frameIndex, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	values := make([]float64, 5)
	for i := range values {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(record[i+2]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse field %d: %w", i+3, err)
		}
	}
	x, y, w, h, conf := values[0], values[1], values[2], values[3], values[4]
	if reader.ClampConfidence {
		conf = math.Min(math.Max(conf, 0), 1)
	}
	det := mot.Detection{
		BBox:       mot.NewRect(x, y, w, h),
		Confidence: conf,
	}
	// MOTChallenge files use -1 for unknown class
	if len(record) > 7 {
		classID, err := strconv.ParseFloat(strings.TrimSpace(record[7]), 64)
		if err == nil && classID >= 0 {
			det.ClassID = int(classID)
			det.ClassName = reader.ClassNames[det.ClassID]
		}
	}
	return &row{frame: int64(frameIndex), detection: det}, nil
}
