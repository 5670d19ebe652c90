// Package stream provides DynamoDB Streams handlers for cascade operations.
//
// The handler consumes the stream of the table backing a kv.DynamoDB store.
// Each stream record is one table snapshot write; records whose ids vanished
// between the old and new image have their registered children removed.
// Removing children writes their tables, which emits new stream records, so
// the cascade descends one level per invocation.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/doctable/kv"
	"github.com/jacentio/doctable/store"
)

// Handler processes DynamoDB stream events for cascade removals.
type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to remove the
// children of removed records.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// INSERT is a table's first write; nothing can have been removed.
	if record.EventName != "MODIFY" && record.EventName != "REMOVE" {
		return nil
	}

	key := getStringAttr(record.Change.Keys, kv.AttrKey)
	table, ok := h.store.TableForKey(key)
	if !ok || !h.store.Registry().HasChildren(table) {
		return nil
	}

	removed := removedIDs(
		h.imageIDs(table, record.Change.OldImage),
		h.imageIDs(table, record.Change.NewImage),
	)
	if len(removed) == 0 {
		return nil
	}

	h.logger.Info("processing cascade removal",
		"table", table,
		"removed", len(removed),
	)

	children, err := h.store.RemoveChildren(ctx, table, removed)
	if err != nil {
		return fmt.Errorf("remove children of %s: %w", table, err)
	}

	total := 0
	for _, ids := range children {
		total += len(ids)
	}
	h.logger.Info("cascade removal completed",
		"table", table,
		"childTables", len(children),
		"childrenRemoved", total,
	)
	return nil
}

// imageIDs returns the record ids held in a stream image. Images that do not
// hold a table, such as a raw object saved over one, hold no ids.
func (h *Handler) imageIDs(table string, image map[string]events.DynamoDBAttributeValue) []int64 {
	raw := getStringAttr(image, kv.AttrValue)
	if raw == "" {
		return nil
	}
	records, err := store.ParseTable(table, []byte(raw))
	if err != nil {
		h.logger.Warn("ignoring unreadable table image",
			"table", table,
			"error", err,
		)
		return nil
	}
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if id, ok := rec.ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// removedIDs returns the ids in before that are missing from after, in
// before's order.
func removedIDs(before, after []int64) []int64 {
	var out []int64
	for _, id := range before {
		if !slices.Contains(after, id) {
			out = append(out, id)
		}
	}
	return out
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
