package stores

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/calebres/aidesk/models"
)

func messageToRow(sessionID string, seq int, m *models.Message) MessageRow {
	attachmentsJSON := ""
	if len(m.Attachments) > 0 {
		b, err := json.Marshal(m.Attachments)
		if err != nil {
			log.Printf("Warning: failed to marshal attachments for message %s: %v", m.ID, err)
		} else {
			attachmentsJSON = string(b)
		}
	}

	return MessageRow{
		MessageID:       m.ID,
		SessionID:       sessionID,
		Sequence:        seq,
		Role:            string(m.Role),
		Content:         m.Text,
		AttachmentsJSON: attachmentsJSON,
		Pinned:          m.Pinned,
		SentAt:          m.CreatedAt.UnixNano(),
	}
}

func rowToMessage(row MessageRow) *models.Message {
	var attachments []models.Attachment
	if row.AttachmentsJSON != "" {
		if err := json.Unmarshal([]byte(row.AttachmentsJSON), &attachments); err != nil {
			log.Printf("Warning: failed to unmarshal attachments for message %s: %v", row.MessageID, err)
		}
	}

	msg := &models.Message{
		ID:          row.MessageID,
		Role:        models.Role(row.Role),
		Text:        row.Content,
		Attachments: attachments,
		CreatedAt:   time.Unix(0, row.SentAt),
		Pinned:      row.Pinned,
	}
	// Anything loaded from disk belongs to a finished turn.
	msg.Seal()
	return msg
}

func sessionToRow(s *models.Session) (SessionRow, error) {
	paramsJSON, err := json.Marshal(s.Params)
	if err != nil {
		return SessionRow{}, fmt.Errorf("failed to marshal params snapshot: %w", err)
	}

	return SessionRow{
		SessionID:    s.ID,
		Title:        s.Title,
		MessageCount: len(s.Messages),
		ParamsJSON:   string(paramsJSON),
	}, nil
}

func rowToSession(row SessionRow, msgRows []MessageRow) *models.Session {
	params := models.DefaultParams()
	if row.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(row.ParamsJSON), &params); err != nil {
			log.Printf("Warning: failed to unmarshal params for session %s: %v", row.SessionID, err)
			params = models.DefaultParams()
		}
	}

	session := &models.Session{
		ID:        row.SessionID,
		Title:     row.Title,
		Params:    params.Clamp(),
		UpdatedAt: row.UpdatedAt,
	}
	for _, mr := range msgRows {
		session.Messages = append(session.Messages, rowToMessage(mr))
	}
	return session
}

// upsertSessionTx writes the session row and swaps its transcript inside one
// transaction so a partial write is never observable.
func upsertSessionTx(db *gorm.DB, session *models.Session) error {
	row, err := sessionToRow(session)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SessionRow{}).Where("session_id = ?", session.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for session: %w", err)
		}

		if count == 0 {
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create session record: %w", err)
			}
		} else {
			updates := map[string]interface{}{
				"title":         row.Title,
				"message_count": row.MessageCount,
				"params_json":   row.ParamsJSON,
			}
			if err := tx.Model(&SessionRow{}).Where("session_id = ?", session.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update session record: %w", err)
			}
		}

		return replaceMessagesInTx(tx, session.ID, session.Messages)
	})
}

func replaceMessagesInTx(tx *gorm.DB, sessionID string, messages []*models.Message) error {
	if err := tx.Unscoped().Where("session_id = ?", sessionID).Delete(&MessageRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	for i, m := range messages {
		row := messageToRow(sessionID, i+1, m)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to write message %d: %w", i+1, err)
		}
	}
	return nil
}

func getSessionFromDB(db *gorm.DB, sessionID string) (*models.Session, error) {
	var row SessionRow
	if err := db.Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	var msgRows []MessageRow
	if err := db.Where("session_id = ?", sessionID).Order("sequence ASC").Find(&msgRows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return rowToSession(row, msgRows), nil
}

func listSessionsFromDB(db *gorm.DB) ([]models.SessionInfo, error) {
	var rows []SessionRow
	if err := db.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	infos := make([]models.SessionInfo, len(rows))
	for i, r := range rows {
		infos[i] = models.SessionInfo{
			ID:           r.SessionID,
			Title:        r.Title,
			MessageCount: r.MessageCount,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return infos, nil
}

func deleteSessionFromDB(db *gorm.DB, sessionID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("session_id = ?", sessionID).Delete(&MessageRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete session messages: %w", err)
		}
		if err := tx.Unscoped().Where("session_id = ?", sessionID).Delete(&SessionRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete session record: %w", err)
		}
		return nil
	})
}
