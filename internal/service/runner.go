package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/sheet-messaging/internal/config"
	"github.com/LeventeLantos/sheet-messaging/internal/model"
	"github.com/LeventeLantos/sheet-messaging/internal/repo"
	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

// RunObserver is told about every finished run. *metrics.Recorder satisfies it.
type RunObserver interface {
	ObserveRun(d time.Duration, err error)
}

type RunnerOptions struct {
	Opener      sheet.Opener
	Spreadsheet string
	Campaigns   config.CampaignConfig
	Syncer      *ContactSyncer
	Dispatcher  *Dispatcher
	Runs        repo.RunRepository
	Observer    RunObserver
	Now         func() time.Time
}

// Runner performs one full pass: contacts first, then each campaign table in
// configured order.
type Runner struct {
	opener      sheet.Opener
	spreadsheet string
	campaigns   config.CampaignConfig
	syncer      *ContactSyncer
	dispatcher  *Dispatcher
	runs        repo.RunRepository
	observer    RunObserver
	now         func() time.Time
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Opener == nil {
		return nil, errors.New("opener must not be nil")
	}
	if opts.Spreadsheet == "" {
		return nil, errors.New("spreadsheet identifier must not be empty")
	}
	if opts.Campaigns.Contacts.IsEnabled() && opts.Syncer == nil {
		return nil, errors.New("contact syncer required when contacts table is enabled")
	}
	if len(opts.Campaigns.Tables) > 0 && opts.Dispatcher == nil {
		return nil, errors.New("dispatcher required when campaign tables are configured")
	}

	r := &Runner{
		opener:      opts.Opener,
		spreadsheet: opts.Spreadsheet,
		campaigns:   opts.Campaigns,
		syncer:      opts.Syncer,
		dispatcher:  opts.Dispatcher,
		runs:        opts.Runs,
		observer:    opts.Observer,
		now:         opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

type loadedContacts struct {
	ws      sheet.Worksheet
	records []model.Contact
}

type loadedCampaign struct {
	table   config.CampaignTable
	ws      sheet.Worksheet
	records []model.CampaignRecord
}

// Run loads and validates every configured table before the first write, so a
// missing tab, missing column or empty table aborts the run with the spreadsheet
// untouched.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	rep := &model.RunReport{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Tables:    []model.TableReport{},
	}
	log := slog.With("run_id", rep.ID)
	log.Info("run started", "spreadsheet", r.spreadsheet)

	err := r.run(ctx, rep)

	rep.FinishedAt = r.now()
	if err != nil {
		rep.Error = err.Error()
		log.Error("run aborted", "error", err, "duration_ms", rep.Duration().Milliseconds())
	} else {
		log.Info("run finished",
			"duration_ms", rep.Duration().Milliseconds(),
			"contacts_accepted", rep.Contacts.Accepted,
			"contacts_failed", rep.Contacts.Failed,
			"tables", len(rep.Tables),
		)
	}

	if r.observer != nil {
		r.observer.ObserveRun(rep.Duration(), err)
	}
	if r.runs != nil {
		if saveErr := r.runs.Save(context.WithoutCancel(ctx), *rep); saveErr != nil {
			log.Warn("run report not stored", "error", saveErr)
		}
	}

	return rep, err
}

func (r *Runner) run(ctx context.Context, rep *model.RunReport) error {
	ss, err := r.opener.Open(ctx, r.spreadsheet)
	if err != nil {
		return fmt.Errorf("open spreadsheet %q: %w", r.spreadsheet, err)
	}

	contacts, campaigns, err := r.load(ctx, ss)
	if err != nil {
		return err
	}

	if contacts != nil {
		cr, err := r.syncer.Sync(ctx, contacts.ws, contacts.records)
		rep.Contacts = cr
		if err != nil {
			return fmt.Errorf("contact sync: %w", err)
		}
	}

	for _, c := range campaigns {
		tr, err := r.dispatcher.Dispatch(ctx, c.table, c.ws, c.records)
		rep.Tables = append(rep.Tables, tr)
		if err != nil {
			return fmt.Errorf("dispatch %q: %w", c.table.Name, err)
		}
		slog.Info("campaign table processed",
			"table", tr.Table,
			"rows", tr.Rows,
			"sent", tr.Sent,
			"already_sent", tr.AlreadySent,
			"contact_missing", tr.ContactMissing,
			"failed", tr.Failed,
		)
	}
	return nil
}

func (r *Runner) load(ctx context.Context, ss sheet.Spreadsheet) (*loadedContacts, []loadedCampaign, error) {
	var contacts *loadedContacts

	if ct := r.campaigns.Contacts; ct.IsEnabled() {
		ws, tbl, err := readTab(ctx, ss, ct.Name)
		if err != nil {
			return nil, nil, err
		}
		records, err := model.ParseContacts(ct.Name, tbl.Header, tbl.Rows, ct.Columns)
		if err != nil {
			return nil, nil, err
		}
		contacts = &loadedContacts{ws: ws, records: records}
	}

	campaigns := make([]loadedCampaign, 0, len(r.campaigns.Tables))
	for _, ct := range r.campaigns.Tables {
		ws, tbl, err := readTab(ctx, ss, ct.Name)
		if err != nil {
			return nil, nil, err
		}
		records, err := model.ParseCampaign(ct.Name, tbl.Header, tbl.Rows, ct.Columns, ct.RequiredColumns()...)
		if err != nil {
			return nil, nil, err
		}
		campaigns = append(campaigns, loadedCampaign{table: ct, ws: ws, records: records})
	}

	return contacts, campaigns, nil
}

func readTab(ctx context.Context, ss sheet.Spreadsheet, name string) (sheet.Worksheet, sheet.Table, error) {
	ws, err := ss.Worksheet(ctx, name)
	if err != nil {
		return nil, sheet.Table{}, fmt.Errorf("table %q: %w", name, err)
	}
	tbl, err := ws.ReadAll(ctx)
	if err != nil {
		return nil, sheet.Table{}, fmt.Errorf("table %q: read: %w", name, err)
	}
	if len(tbl.Rows) == 0 {
		return nil, sheet.Table{}, fmt.Errorf("table %q: %w", name, model.ErrEmptyTable)
	}
	return ws, tbl, nil
}
