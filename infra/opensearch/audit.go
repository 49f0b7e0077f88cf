package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/coursehub/paygate/infra/logger"
)

// AuditEvent is one indexed audit document
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id"`
	Category  string         `json:"category"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// AuditLogger ships order audit events to OpenSearch. Delivery is
// asynchronous and best effort: an indexing failure is warned about and
// dropped, it never reaches the operation that produced the event.
type AuditLogger struct {
	client *Client
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(client *Client) *AuditLogger {
	return &AuditLogger{client: client}
}

// Record indexes one audit event
func (a *AuditLogger) Record(ctx context.Context, category string, fields map[string]any) {
	if a == nil || a.client == nil || !a.client.IsEnabled() {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		RequestID: uuid.New().String(),
		Category:  category,
		Fields:    fields,
	}

	go func() {
		if err := a.index(event); err != nil {
			logger.Warn("failed to index audit event", logger.LogContext{
				Fields: map[string]any{
					"category": category,
					"error":    err.Error(),
				},
			})
		}
	}()
}

func (a *AuditLogger) index(event AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := opensearchapi.IndexRequest{
		Index:      AuditIndexName,
		DocumentID: event.RequestID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, a.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}
