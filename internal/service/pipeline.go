package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/biz/usecase"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// Pipeline is the run orchestrator: it walks the source's dialogs in order, processes each one
// in isolation and exports the batch at the end.
type Pipeline struct {
	source   repo.DialogSource
	dialogUC *usecase.DialogUsecase
	sinks    []repo.RecordSink
	notifier repo.Notifier
}

// NewPipeline creates a new pipeline
func NewPipeline(source repo.DialogSource, dialogUC *usecase.DialogUsecase, sinks ...repo.RecordSink) *Pipeline {
	return &Pipeline{
		source:   source,
		dialogUC: dialogUC,
		sinks:    sinks,
	}
}

// WithNotifier sets the run-report notifier (optional)
func (p *Pipeline) WithNotifier(n repo.Notifier) *Pipeline {
	p.notifier = n
	return p
}

// Run executes one batch. Only a failure to enumerate dialogs is returned;
// per-dialog failures are recorded in the report and never stop the loop.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	log := logger.Component("pipeline")

	dialogs, err := p.source.Dialogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}
	log.Info().Int("dialogs", len(dialogs)).Msg("Run started")

	report := &domain.RunReport{}
	for _, dialog := range dialogs {
		outcome, err := p.processDialog(ctx, dialog)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", dialog.ID).Str("chat", dialog.DisplayName()).Msg("Dialog skipped")
			report.Skipped = append(report.Skipped, domain.SkippedDialog{
				ChatID: dialog.ID,
				Name:   dialog.DisplayName(),
				Err:    err,
			})
			continue
		}
		report.Unread = report.Unread.Merge(outcome.Unread)
		report.Records = append(report.Records, outcome.Record)
	}

	for _, sink := range p.sinks {
		if err := sink.Export(ctx, report.Records); err != nil {
			log.Error().Err(err).Msg("Export failed")
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, report); err != nil {
			log.Error().Err(err).Msg("Run report failed")
		}
	}

	log.Info().
		Int("processed", report.Processed()).
		Int("skipped", len(report.Skipped)).
		Int("private_unread", report.Unread.Private).
		Int("group_unread", report.Unread.Group).
		Msg("Run finished")
	return report, nil
}

// processDialog turns a panic in any stage into an error so the dialog is skipped
func (p *Pipeline) processDialog(ctx context.Context, dialog domain.Dialog) (outcome *usecase.DialogOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Component("pipeline").Debug().Bytes("stack", debug.Stack()).Msg("Recovered panic")
			outcome = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.dialogUC.Process(ctx, dialog)
}
