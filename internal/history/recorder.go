// internal/history/recorder.go
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/hv-supervisor/internal/check"
)

// Recorder is the append-only sink for timestamped device readings.
// Records arrive in chronological order; a failed append is surfaced to the
// caller, never retried here.
type Recorder interface {
	Append(res check.Result) error
	Close() error
}

// fileRecorder appends one CSV row per completed device poll.
type fileRecorder struct {
	file *os.File
	w    *csv.Writer
}

var header = []string{"time", "device", "enabled", "v_set", "v_mes", "i_mes", "i_lim", "verdict"}

// NewFileRecorder opens (or creates) the history file for appending. The
// header row is written only when the file is empty.
func NewFileRecorder(path string) (Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "history: open")
	}

	r := &fileRecorder{file: f, w: csv.NewWriter(f)}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "history: stat")
	}
	if st.Size() == 0 {
		if err := r.w.Write(header); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "history: write header")
		}
		r.w.Flush()
	}

	logrus.WithField("path", path).Info("history recorder started")
	return r, nil
}

// Append writes one record and flushes it, so a crash loses at most the row
// being written.
func (r *fileRecorder) Append(res check.Result) error {
	row := []string{
		res.At.UTC().Format(time.RFC3339),
		res.DeviceID,
		fmt.Sprintf("%t", res.Reading.Enabled),
		fmt.Sprintf("%.1f", res.Reading.SetVoltage),
		fmt.Sprintf("%.1f", res.Reading.MeasuredVoltage),
		fmt.Sprintf("%.1f", res.Reading.MeasuredCurrent),
		fmt.Sprintf("%.1f", res.Reading.CurrentLimit),
		res.Verdict.String(),
	}

	if err := r.w.Write(row); err != nil {
		return errors.Wrap(err, "history: append")
	}
	r.w.Flush()
	return errors.Wrap(r.w.Error(), "history: flush")
}

func (r *fileRecorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		_ = r.file.Close()
		return errors.Wrap(err, "history: flush")
	}
	return errors.Wrap(r.file.Close(), "history: close")
}
