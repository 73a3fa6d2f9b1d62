// services/sse_stream.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"radcoin-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamUserTransactionsSSE streams the authenticated user's new ledger
// transactions in real time, so the balance widget updates without
// polling.
func (s *LedgerService) StreamUserTransactionsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastCreatedAt time.Time
		var lastID string

		// Initialize cursor at the user's latest transaction so only new
		// activity is streamed.
		var latest models.Transaction
		if err := s.DB.
			Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			First(&latest).Error; err == nil {
			lastCreatedAt = latest.CreatedAt
			lastID = latest.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				newTxs, err := s.transactionsAfter(userID, lastCreatedAt, lastID)
				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(newTxs) == 0 {
					continue
				}

				last := newTxs[len(newTxs)-1]
				lastCreatedAt, lastID = last.CreatedAt, last.ID

				for _, tx := range newTxs {
					payload, _ := json.Marshal(tx)
					fmt.Fprintf(w, "event: transaction\ndata: %s\n\n", payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}

// transactionsAfter returns a user's transactions strictly after the
// (created_at, id) cursor, oldest first. The pair disambiguates rows
// sharing a timestamp, e.g. same-second bulk grants; a created_at-only
// cursor would skip the later siblings.
func (s *LedgerService) transactionsAfter(userID string, after time.Time, afterID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.DB.
		Where("user_id = ?", userID).
		Where("(created_at > ?) OR (created_at = ? AND id > ?)", after, after, afterID).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	return txs, err
}
