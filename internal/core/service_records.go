package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/store"
)

// RecordView is a stored record with contact links for the viewer.
type RecordView struct {
	store.Record
	CallLink     string `json:"call_link,omitempty"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
}

// UnmarshalJSON decodes the record and its links. Without it the embedded
// Record's decoder would be promoted and the links dropped.
func (v *RecordView) UnmarshalJSON(data []byte) error {
	if err := v.Record.UnmarshalJSON(data); err != nil {
		return err
	}
	var links struct {
		CallLink     string `json:"call_link"`
		WhatsAppLink string `json:"whatsapp_link"`
	}
	if err := json.Unmarshal(data, &links); err != nil {
		return err
	}
	v.CallLink = links.CallLink
	v.WhatsAppLink = links.WhatsAppLink
	return nil
}

func viewsOf(records []store.Record) []RecordView {
	out := make([]RecordView, len(records))
	for i, r := range records {
		out[i] = RecordView{
			Record:       r,
			CallLink:     store.CallLink(r.GuarantorCell),
			WhatsAppLink: store.WhatsAppLink(r.GuarantorCell),
		}
	}
	return out
}

// SearchRecords returns records whose Client ID, Name, CO Name or Branch
// contains query. An empty query returns nothing.
func (s *Service) SearchRecords(ctx context.Context, query string) ([]RecordView, error) {
	records, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return viewsOf(records), nil
}

// AllRecords returns every stored record.
func (s *Service) AllRecords(ctx context.Context) ([]RecordView, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return viewsOf(records), nil
}

// CountRecords returns the number of stored records.
func (s *Service) CountRecords(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// DeleteRecords clears the store.
func (s *Service) DeleteRecords(ctx context.Context) error {
	n, _ := s.store.Count(ctx)
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	logging.WithFields(ctx,
		"records", n,
		"client_ip", ClientIP(ctx),
		"user_agent", UserAgent(ctx),
	).Info("deleted all records")
	return nil
}

// Ping checks the record store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
