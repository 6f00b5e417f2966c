// Package trace records executed instructions and exports them as a table.
//
// A Recorder is installed on a machine with vm.SetTracer. After the run,
// Frame returns one row per dispatched instruction and Export writes the rows
// as CSV, JSON, or Parquet depending on the file extension.
package trace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/loggo"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

var logger = loggo.GetLogger("simpletron.trace")

// Column names of the trace frame, in order.
const (
	ColStep        = "step"
	ColAddress     = "address"
	ColWord        = "word"
	ColOpcode      = "opcode"
	ColOperand     = "operand"
	ColAccumulator = "accumulator"
	ColState       = "state"
)

// ErrUnsupportedFormat is returned for an unknown export extension.
var ErrUnsupportedFormat = errors.New("unsupported trace format")

// Recorder collects trace events. It is not safe for concurrent use; a
// machine records from a single goroutine.
type Recorder struct {
	events  []vm.TraceEvent
	limit   int
	dropped int
}

// NewRecorder creates a recorder keeping at most limit events. Zero means
// unlimited.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Record implements vm.Tracer.
func (r *Recorder) Record(ev vm.TraceEvent) {
	if r.limit > 0 && len(r.events) >= r.limit {
		if r.dropped == 0 {
			logger.Warningf("trace limit of %d events reached, dropping the rest", r.limit)
		}
		r.dropped++
		return
	}
	r.events = append(r.events, ev)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Dropped returns the number of events discarded after the limit.
func (r *Recorder) Dropped() int {
	return r.dropped
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []vm.TraceEvent {
	out := make([]vm.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.events = nil
	r.dropped = 0
}

// Frame returns the recorded events as a DataFrame.
func (r *Recorder) Frame() *dataframe.DataFrame {
	n := len(r.events)
	steps := make([]interface{}, n)
	addrs := make([]interface{}, n)
	words := make([]interface{}, n)
	opcodes := make([]interface{}, n)
	operands := make([]interface{}, n)
	accs := make([]interface{}, n)
	states := make([]interface{}, n)

	for i, ev := range r.events {
		steps[i] = ev.Step
		addrs[i] = int64(ev.Address)
		words[i] = ev.Word.String()
		opcodes[i] = ev.Opcode.String()
		operands[i] = int64(ev.Operand)
		accs[i] = int64(ev.Accumulator)
		states[i] = ev.State.String()
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64(ColStep, nil, steps...),
		dataframe.NewSeriesInt64(ColAddress, nil, addrs...),
		dataframe.NewSeriesString(ColWord, nil, words...),
		dataframe.NewSeriesString(ColOpcode, nil, opcodes...),
		dataframe.NewSeriesInt64(ColOperand, nil, operands...),
		dataframe.NewSeriesInt64(ColAccumulator, nil, accs...),
		dataframe.NewSeriesString(ColState, nil, states...),
	)
}

// Export writes df to path, choosing the format from the extension.
func Export(ctx context.Context, df *dataframe.DataFrame, path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = exportFile(path, func(f *os.File) error {
			return exports.ExportToCSV(ctx, f, df)
		})
	case ".json":
		err = exportFile(path, func(f *os.File) error {
			return exports.ExportToJSON(ctx, f, df)
		})
	case ".parquet":
		err = exportParquet(ctx, df, path)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return simerr.IO("exporting trace "+path, err)
	}
	logger.Infof("wrote %d trace rows to %s", df.NRows(), path)
	return nil
}

// Export writes the recorded events to path.
func (r *Recorder) Export(ctx context.Context, path string) error {
	return Export(ctx, r.Frame(), path)
}

func exportFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportParquet(ctx context.Context, df *dataframe.DataFrame, path string) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := exports.ExportToParquet(ctx, fw, df); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
