// Package ingest validates and atomically persists batches of analytics
// events for authenticated apps.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/attolytics/attolytics/internal/schema"
	"github.com/attolytics/attolytics/internal/store"
	"github.com/attolytics/attolytics/internal/types"
)

var (
	// ErrAppNotFound: the app id is not in the catalog.
	ErrAppNotFound = errors.New("app not found")
	// ErrForbidden: the submitted secret key does not match the app's.
	ErrForbidden = errors.New("secret key mismatch")
	// ErrTableNotAuthorized: an event targets a table the app may not write.
	// Callers surface this as not-found.
	ErrTableNotAuthorized = errors.New("table not authorized for app")
	// ErrBadRequest: an event is missing the table field or it is not a string.
	ErrBadRequest = errors.New("bad request")
)

// Ingestor persists event batches against the shared table catalog. It is
// stateless between calls and safe for concurrent use: the schema is
// read-only and every call runs in its own transaction.
type Ingestor struct {
	schema *schema.Schema
	store  store.Store
}

func New(s *schema.Schema, st store.Store) *Ingestor {
	return &Ingestor{schema: s, store: st}
}

// Ingest persists one batch for one app. Events are raw JSON objects (decoded
// with UseNumber) whose "_t" field names the destination table; all other
// fields are candidate column values. Either every event is committed or none
// is.
//
// Table authorization is checked for the whole batch up front, but per-column
// conversion only happens inside the transaction, event by event. A late
// conversion failure therefore rolls back rows that were already staged; that
// ordering is deliberate and load-bearing for mixed-failure batches.
func (ing *Ingestor) Ingest(ctx context.Context, appID, secretKey string, headers http.Header, events []map[string]any) error {
	app, ok := ing.schema.Apps[appID]
	if !ok {
		return ErrAppNotFound
	}
	// TODO: decide whether the secret comparison should be constant-time
	// (subtle.ConstantTimeCompare); plain equality matches current behavior.
	if secretKey != app.SecretKey {
		return ErrForbidden
	}

	tables := make([]string, len(events))
	for i, event := range events {
		name, ok := event[schema.TableField].(string)
		if !ok {
			return fmt.Errorf("event %d: field %q missing or not a string: %w", i, schema.TableField, ErrBadRequest)
		}
		if !app.Authorized(name) {
			return fmt.Errorf("event %d: table %q: %w", i, name, ErrTableNotAuthorized)
		}
		tables[i] = name
	}

	err := ing.store.RunInTx(ctx, func(ctx context.Context, w store.RowWriter) error {
		for i, event := range events {
			table, ok := ing.schema.Tables[tables[i]]
			if !ok {
				// Authorization passed, so the catalog must contain the table.
				return fmt.Errorf("table %q authorized for app %q but absent from catalog", tables[i], appID)
			}
			values, err := convertRow(table, event, headers)
			if err != nil {
				return fmt.Errorf("event %d, table %q: %w", i, table.Name, err)
			}
			if err := w.InsertRow(ctx, table.Name, values); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("app", appID).Int("events", len(events)).Msg("batch rejected")
		return err
	}
	return nil
}

// convertRow coerces every declared column of the table from the event body
// or the header map. Event fields with no matching column are ignored.
func convertRow(t *schema.Table, event map[string]any, headers http.Header) (map[string]any, error) {
	values := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		var v types.Value
		var err error
		if c.FromHeader != "" {
			present := len(headers.Values(c.FromHeader)) > 0
			v, err = types.CoerceHeader(c.Type, c.Name, headers.Get(c.FromHeader), present, c.Required)
		} else {
			v, err = types.Coerce(c.Type, c.Name, event[c.Name], c.Required)
		}
		if err != nil {
			return nil, err
		}
		values[c.Name] = v.Bind()
	}
	return values, nil
}
