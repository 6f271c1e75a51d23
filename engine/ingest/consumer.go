package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/pkg/natsutil"
)

const (
	// Subject carries ingest requests from the API server.
	Subject = "engine.ingest"
	// DLQSubject receives requests that keep failing.
	DLQSubject = "engine.ingest.dlq"
	// MaxRetries before a request goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage wraps a failed request with its terminal error.
type dlqMessage struct {
	Request domain.IngestRequest `json:"request"`
	Error   string               `json:"error"`
	Retries int                  `json:"retries"`
}

// StartConsumer subscribes the service to the ingest subject. Failed
// requests are re-published with an incremented retry header and end up on
// the DLQ after MaxRetries. When a request carries Depth > 0, the page's
// internal links are re-published with Depth-1, giving a bounded crawl.
func (s *Service) StartConsumer(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var req domain.IngestRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.logger.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		stats, err := s.Ingest(ctx, req.URL)
		if err != nil {
			retries++
			s.logger.Error("ingest: request failed", "url", req.URL, "retry", retries, "error", err)

			if retries >= MaxRetries {
				dlq := dlqMessage{Request: req, Error: err.Error(), Retries: retries}
				if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
					s.logger.Error("ingest: DLQ publish failed", "error", perr)
				}
				return
			}

			retryMsg := nats.NewMsg(Subject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if perr := nc.PublishMsg(retryMsg); perr != nil {
				s.logger.Error("ingest: retry publish failed", "error", perr)
			}
			return
		}

		s.logger.Info("ingest: request done", "url", req.URL, "inserted", stats.Inserted, "skipped", stats.Skipped)

		if req.Depth > 0 {
			s.followLinks(ctx, nc, req, stats.InternalLinks)
		}
	})
}

// followLinks re-publishes the page's internal links one hop shallower,
// giving a bounded breadth-first crawl without a dedicated crawler.
func (s *Service) followLinks(ctx context.Context, nc *nats.Conn, req domain.IngestRequest, links []string) {
	for _, link := range links {
		next := domain.IngestRequest{URL: link, Depth: req.Depth - 1}
		if err := natsutil.Publish(ctx, nc, Subject, next); err != nil {
			s.logger.Warn("ingest: link follow publish failed", "url", link, "error", err)
		}
	}
}
