package directoryapi

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/purvisolanki/userdir/storage/model"
)

// auditor writes directory changes to the events store. Failing to record
// an event never fails the request that caused it.
type auditor struct {
	store model.EventsStore
}

func (a *auditor) record(c *fiber.Ctx, eventType, userID string, details fiber.Map) {
	if a == nil || a.store == nil {
		return
	}
	event := model.UserEvent{
		UserID:    userID,
		Timestamp: time.Now().Unix(),
		Type:      eventType,
	}
	if id, ok := identityFrom(c); ok {
		event.Actor = id.UserID
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err == nil {
			event.Details = datatypes.JSON(raw)
		}
	}
	if err := a.store.Record(event); err != nil {
		log.WithError(err).WithFields(
			log.Fields{
				"type": eventType,
				"user": userID,
			},
		).Warn("could not record audit event")
	}
}
