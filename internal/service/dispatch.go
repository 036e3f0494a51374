package service

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/sheet-messaging/internal/cache"
	"github.com/LeventeLantos/sheet-messaging/internal/client"
	"github.com/LeventeLantos/sheet-messaging/internal/config"
	"github.com/LeventeLantos/sheet-messaging/internal/metrics"
	"github.com/LeventeLantos/sheet-messaging/internal/model"
	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

// LastSentLayout is the write-back format of the last-sent timestamp.
const LastSentLayout = "2006-01-02 15:04:05"

type DispatcherOptions struct {
	Gateway      Gateway
	Normalizer   Normalizer
	ContactPacer Pacer
	MessagePacer Pacer
	Location     *time.Location
	Now          func() time.Time
	Receipts     cache.ReceiptCache
	Recorder     Recorder
}

// Dispatcher sends one template message per unsent campaign record and marks
// the row sent on success. A sent row is never revisited.
type Dispatcher struct {
	gateway      Gateway
	normalizer   Normalizer
	contactPacer Pacer
	messagePacer Pacer
	location     *time.Location
	now          func() time.Time
	receipts     cache.ReceiptCache
	recorder     Recorder
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		gateway:      opts.Gateway,
		normalizer:   opts.Normalizer,
		contactPacer: opts.ContactPacer,
		messagePacer: opts.MessagePacer,
		location:     opts.Location,
		now:          opts.Now,
		receipts:     opts.Receipts,
		recorder:     opts.Recorder,
	}
	if d.location == nil {
		d.location = time.Local
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	return d
}

// Dispatch walks records in stored order. Only context cancellation ends the
// table early; every other failure is isolated to its record.
func (d *Dispatcher) Dispatch(ctx context.Context, tbl config.CampaignTable, ws sheet.Worksheet, records []model.CampaignRecord) (model.TableReport, error) {
	rep := model.TableReport{Table: tbl.Name, Rows: len(records)}

	for _, rec := range records {
		outcome, err := d.dispatchOne(ctx, tbl, ws, rec)
		if err != nil {
			return rep, err
		}

		switch outcome {
		case metrics.OutcomeAlreadySent:
			rep.AlreadySent++
		case metrics.OutcomeSent:
			rep.Sent++
		case metrics.OutcomeContactMissing:
			rep.ContactMissing++
		default:
			rep.Failed++
		}
		d.recorder.Message(tbl.Name, outcome)
	}

	return rep, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tbl config.CampaignTable, ws sheet.Worksheet, rec model.CampaignRecord) (string, error) {
	if rec.Sent {
		return metrics.OutcomeAlreadySent, nil
	}

	phone := d.normalizer.Normalize(rec.Phone)
	if phone == "" {
		recordLogger(model.StageSend, tbl.Name, rec.Row, phone).Warn("record skipped: no phone number", "raw_phone", rec.Phone)
		return metrics.OutcomeFailed, nil
	}

	lookupLog := recordLogger(model.StageLookup, tbl.Name, rec.Row, phone)
	if err := d.contactPacer.Wait(ctx); err != nil {
		return "", err
	}
	found, err := d.gateway.LookupContact(ctx, phone)
	if err != nil {
		if isCanceled(ctx, err) {
			return "", ctx.Err()
		}
		lookupLog.Error("contact lookup failed, send skipped", providerDetail(err)...)
		return metrics.OutcomeFailed, nil
	}
	if !found {
		lookupLog.Warn("contact not found on provider, send skipped")
		return metrics.OutcomeContactMissing, nil
	}

	template := tbl.TemplateFor(rec.Language)
	params := resolveParams(tbl, rec)

	sendLog := recordLogger(model.StageSend, tbl.Name, rec.Row, phone).With("template", template)
	if err := d.messagePacer.Wait(ctx); err != nil {
		return "", err
	}
	res, err := d.gateway.SendTemplateMessage(ctx, phone, template, tbl.BroadcastName, params)
	if err != nil {
		if isCanceled(ctx, err) {
			return "", ctx.Err()
		}
		sendLog.Error("template send failed", providerDetail(err)...)
		return metrics.OutcomeFailed, nil
	}
	if !res.Success {
		sendLog.Error("template send not confirmed", "status", res.StatusCode, "body", res.Body)
		return metrics.OutcomeFailed, nil
	}

	sentAt := d.now().In(d.location)
	stamp := sentAt.Format(LastSentLayout)

	wbLog := recordLogger(model.StageWriteBack, tbl.Name, rec.Row, phone)
	if err := ws.WriteCell(ctx, rec.Row, tbl.Columns.Sent, true); err != nil {
		wbLog.Error("message sent but row not marked", "column", tbl.Columns.Sent, "error", err)
		return metrics.OutcomeFailed, nil
	}
	if err := ws.WriteCell(ctx, rec.Row, tbl.Columns.LastSentDate, stamp); err != nil {
		wbLog.Error("message sent but last sent date not written", "column", tbl.Columns.LastSentDate, "error", err)
		return metrics.OutcomeFailed, nil
	}

	sendLog.Info("template message sent", "status", res.StatusCode, "last_sent_date", stamp)
	d.storeReceipt(ctx, tbl.Name, rec.Row, phone, template, sentAt)
	return metrics.OutcomeSent, nil
}

func (d *Dispatcher) storeReceipt(ctx context.Context, table string, row int, phone, template string, sentAt time.Time) {
	if d.receipts == nil {
		return
	}
	err := d.receipts.StoreReceipt(ctx, cache.Receipt{
		Table:    table,
		Row:      row,
		Phone:    phone,
		Template: template,
		SentAt:   sentAt,
	})
	if err != nil {
		recordLogger(model.StageWriteBack, table, row, phone).Warn("receipt not cached", "error", err)
	}
}

// resolveParams maps each configured parameter to its column. Missing cells
// resolve to "".
func resolveParams(tbl config.CampaignTable, rec model.CampaignRecord) []client.Parameter {
	params := make([]client.Parameter, 0, len(tbl.Parameters))
	for _, p := range tbl.Parameters {
		params = append(params, client.Parameter{Name: p.Name, Value: rec.Field(p.Column)})
	}
	return params
}

func isCanceled(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return ctxErr != nil && errors.Is(err, ctxErr)
}
