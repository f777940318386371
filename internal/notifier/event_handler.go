package notifier

import (
	"context"
	"log/slog"

	"github.com/docuflow/document-workflow/internal/core/events"
)

// EventHandler bridges the in-process event bus and webhook delivery.
type EventHandler struct {
	client *Client
	logger *slog.Logger
}

func NewEventHandler(client *Client, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		client: client,
		logger: logger,
	}
}

func (h *EventHandler) HandleDocumentEvent(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload().(map[string]interface{})

	var documentID int64
	if payload != nil {
		if id, ok := payload["document_id"].(int64); ok {
			documentID = id
		}
	}

	job := WebhookJob{
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		DocumentID: documentID,
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	}

	return h.client.Enqueue(job)
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	types := []string{
		events.EventTypeDocumentCreated,
		events.EventTypeDocumentAdvanced,
		events.EventTypeDocumentApproved,
		events.EventTypeDocumentRejected,
		events.EventTypeDocumentCompleted,
	}
	for _, eventType := range types {
		eventBus.Subscribe(eventType, h.HandleDocumentEvent)
	}

	h.logger.Info("notifier event handlers registered", "handlers", types)
}
