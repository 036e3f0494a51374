package service

import (
	"context"

	"github.com/LeventeLantos/sheet-messaging/internal/metrics"
	"github.com/LeventeLantos/sheet-messaging/internal/model"
	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

// ContactSyncer re-submits every contact row to the provider and flips Added on
// the first accepted upsert.
type ContactSyncer struct {
	gateway    Gateway
	normalizer Normalizer
	pacer      Pacer
	recorder   Recorder
	columns    model.ContactColumns
}

func NewContactSyncer(gw Gateway, n Normalizer, pacer Pacer, cols model.ContactColumns, rec Recorder) *ContactSyncer {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &ContactSyncer{
		gateway:    gw,
		normalizer: n,
		pacer:      pacer,
		recorder:   rec,
		columns:    cols,
	}
}

// Sync processes contacts in order. Per-record failures are logged and counted;
// only context cancellation stops the loop early.
func (s *ContactSyncer) Sync(ctx context.Context, ws sheet.Worksheet, contacts []model.Contact) (model.ContactReport, error) {
	rep := model.ContactReport{Rows: len(contacts)}
	table := ws.Title()

	for _, c := range contacts {
		phone := s.normalizer.Normalize(c.Phone)
		log := recordLogger(model.StageContactSync, table, c.Row, phone)
		if phone == "" {
			rep.Skipped++
			s.recorder.Contact(metrics.OutcomeSkipped)
			log.Warn("contact skipped: no phone number", "raw_phone", c.Phone)
			continue
		}

		if err := s.pacer.Wait(ctx); err != nil {
			return rep, err
		}

		res, err := s.gateway.UpsertContact(ctx, phone, c.Name, c.AllowBroadcast)
		if err != nil {
			if isCanceled(ctx, err) {
				return rep, ctx.Err()
			}
			rep.Failed++
			s.recorder.Contact(metrics.OutcomeFailed)
			log.Error("contact upsert failed", providerDetail(err)...)
			continue
		}
		if !res.Accepted {
			rep.Failed++
			s.recorder.Contact(metrics.OutcomeFailed)
			log.Error("contact upsert not accepted", "status", res.StatusCode, "body", res.Body)
			continue
		}

		if !c.Added {
			if err := ws.WriteCell(ctx, c.Row, s.columns.Added, true); err != nil {
				rep.Failed++
				s.recorder.Contact(metrics.OutcomeFailed)
				recordLogger(model.StageWriteBack, table, c.Row, phone).Error("contact accepted but added flag not written", "status", res.StatusCode, "error", err)
				continue
			}
			rep.Marked++
		}

		rep.Accepted++
		s.recorder.Contact(metrics.OutcomeAccepted)
		log.Info("contact synced", "status", res.StatusCode, "name", c.Name, "allow_broadcast", c.AllowBroadcast)
	}

	return rep, nil
}
