package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"adminguard/internal/audit/models"
	dErrors "adminguard/pkg/domain-errors"
)

// Query returns one page of records matching filter, newest first.
func (s *Service) Query(ctx context.Context, filter models.Filter, page models.Page) (*models.PageResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	after, err := models.DecodeCursor(page.Cursor)
	if err != nil {
		return nil, err
	}
	size := page.Size()

	records, err := s.store.Query(ctx, filter, after, size+1)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit query failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit log")
	}
	result := &models.PageResult{Records: records}
	if len(records) > size {
		result.Records = records[:size]
		result.NextCursor = models.CursorFor(records[size-1]).Encode()
	}
	return result, nil
}

// Export renders every record in [from, to) newest first. The range must not exceed the
// configured export span.
func (s *Service) Export(ctx context.Context, from, to time.Time, format models.Format) ([]byte, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	if to.Sub(from) > s.maxExportSpan {
		days := int(s.maxExportSpan / (24 * time.Hour))
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("export range cannot exceed %d days", days))
	}

	filter := models.Filter{From: from, To: to}
	var (
		records = []models.Record{}
		after   *models.Cursor
	)
	for {
		batch, err := s.store.Query(ctx, filter, after, models.MaxPageSize)
		if err != nil {
			s.logger.ErrorContext(ctx, "audit export failed", "error", err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export audit log")
		}
		records = append(records, batch...)
		if len(batch) < models.MaxPageSize {
			break
		}
		c := models.CursorFor(batch[len(batch)-1])
		after = &c
	}

	var (
		out []byte
		err error
	)
	switch format {
	case models.FormatCSV:
		out, err = encodeCSV(records)
	case models.FormatJSON:
		out, err = json.Marshal(records)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "format must be csv or json")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit export")
	}
	s.logger.InfoContext(ctx, "audit log exported",
		"from", from, "to", to, "format", string(format), "records", len(records))
	return out, nil
}

var csvHeader = []string{
	"id", "timestamp", "actor_id", "actor_email", "action", "resource_type",
	"resource_id", "source_address", "session_id", "request_id", "details",
}

func encodeCSV(records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		details, err := json.Marshal(r.Details)
		if err != nil {
			return nil, err
		}
		row := []string{
			r.ID.String(),
			r.Timestamp.Format(time.RFC3339Nano),
			r.ActorID.String(),
			r.ActorEmail,
			string(r.Action),
			string(r.ResourceType),
			r.ResourceID,
			r.SourceAddress,
			r.SessionID.String(),
			r.RequestID,
			string(details),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
