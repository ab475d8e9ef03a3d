// --- File: internal/pipeline/transformer.go ---
// Package pipeline contains the batch dispatch engine and the Pub/Sub ingress
// stages that feed it.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// BatchRequest is the Pub/Sub message body: {"urls": ["https://..."]}.
type BatchRequest struct {
	URLs []string `json:"urls"`
}

// BatchRequestTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a BatchRequest. Blank entries are dropped here so the
// processor only sees usable URLs.
func BatchRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*BatchRequest, bool, error) {
	var req BatchRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// skip=true lets the StreamingService Nack/DLQ the message.
		return nil, true, fmt.Errorf("failed to unmarshal batch request from message %s: %w", msg.ID, err)
	}

	cleaned := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	req.URLs = cleaned
	return &req, false, nil
}
