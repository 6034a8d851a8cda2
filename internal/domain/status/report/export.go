// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/metrics"
)

const (
	// ExportFilename is the attachment name offered to browsers.
	ExportFilename = "status_logs.csv"

	// TimeLayout renders UTC with millisecond precision.
	TimeLayout = "2006-01-02T15:04:05.000Z"

	activeLabel = "Active"
)

var exportHeader = []string{"Status", "Start Time", "End Time", "Duration (ms)"}

// FormatTime renders unix milliseconds in TimeLayout.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeLayout)
}

// ExportCSV writes every session of the agent starting in [from, to], newest
// first. Open sessions show "Active" as end time and 0 as duration. Rows are
// separated by "\n" and the output has no trailing newline.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, userID string, from, to *int64) error {
	if userID == "" {
		return model.ErrMissingUser
	}
	rng := model.Range{From: from, To: to}
	if err := rng.Validate(); err != nil {
		return err
	}

	var rows []model.Session
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		rows, err = tx.QuerySessions(ctx, userID, ports.Filter{Range: rng}, ports.OrderStartDesc, 0, 0)
		return err
	})
	if err != nil {
		return storageErr("export", err)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range rows {
		if err := cw.Write(exportRecord(&rows[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	metrics.AddExportedRows(len(rows))
	return nil
}

func exportRecord(s *model.Session) []string {
	end, duration := activeLabel, "0"
	if !s.IsOpen() {
		end = FormatTime(*s.EndTime)
		duration = strconv.FormatInt(*s.DurationMs, 10)
	}
	return []string{string(s.Status), FormatTime(s.StartTime), end, duration}
}
